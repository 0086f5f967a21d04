package retrieval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
)

// QdrantIndex implements Index on a Qdrant server. The dense branch is a
// nearest-neighbour query; the lexical branch is a scroll with a full-text
// match condition on the text field.
type QdrantIndex struct {
	client     *qdrant.Client
	textField  string
	priceField string
}

// NewQdrantIndex wraps an explicitly constructed client. Close closes it.
func NewQdrantIndex(client *qdrant.Client, textField, priceField string) *QdrantIndex {
	if textField == "" {
		textField = "text"
	}
	if priceField == "" {
		priceField = "price"
	}
	return &QdrantIndex{client: client, textField: textField, priceField: priceField}
}

func (q *QdrantIndex) DenseSearch(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]Candidate, error) {
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	points, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, errx.WrapQdrant(fmt.Errorf("query %s: %w", collection, err))
	}

	out := make([]Candidate, 0, len(points))
	for _, p := range points {
		out = append(out, q.candidate(p.GetId(), p.GetPayload(), float64(p.GetScore())))
	}
	return out, nil
}

func (q *QdrantIndex) LexicalSearch(ctx context.Context, collection string, text string, limit int, filter *Filter) ([]Candidate, error) {
	f := buildFilter(filter)
	if f == nil {
		f = &qdrant.Filter{}
	}
	f.Must = append(f.Must, qdrant.NewMatchText(q.textField, text))

	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         f,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errx.WrapQdrant(fmt.Errorf("scroll %s: %w", collection, err))
	}

	out := make([]Candidate, 0, len(points))
	for _, p := range points {
		out = append(out, q.candidate(p.GetId(), p.GetPayload(), 0))
	}
	return out, nil
}

func (q *QdrantIndex) Get(ctx context.Context, collection string, id string) (*Record, error) {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errx.WrapQdrant(fmt.Errorf("get %s/%s: %w", collection, id, err))
	}
	if len(points) == 0 {
		return nil, nil
	}
	return &Record{ID: idString(points[0].GetId()), Payload: convertPayload(points[0].GetPayload())}, nil
}

// Upsert stores one point; used by catalog seeding.
func (q *QdrantIndex) Upsert(ctx context.Context, collection string, id string, vector []float32, payload map[string]any) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return errx.WrapQdrant(fmt.Errorf("check collection %s: %w", collection, err))
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(len(vector)),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return errx.WrapQdrant(fmt.Errorf("create collection %s: %w", collection, err))
		}
	}

	values, err := qdrant.TryValueMap(payload)
	if err != nil {
		return fmt.Errorf("convert payload for %s: %w", id, err)
	}
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      pointID(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: values,
		}},
	})
	if err != nil {
		return errx.WrapQdrant(fmt.Errorf("upsert %s/%s: %w", collection, id, err))
	}
	return nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func (q *QdrantIndex) candidate(id *qdrant.PointId, payload map[string]*qdrant.Value, score float64) Candidate {
	meta := convertPayload(payload)
	text, _ := meta[q.textField].(string)
	return Candidate{
		ID:      idString(id),
		Text:    text,
		Price:   PriceOf(meta[q.priceField]),
		Score:   score,
		Payload: meta,
	}
}

func buildFilter(f *Filter) *qdrant.Filter {
	if f.Empty() {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchKeywords(f.Field, f.AnyOf...)},
	}
}

// pointID maps numeric ids to numeric points and anything else to UUID points.
func pointID(id string) *qdrant.PointId {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n)
	}
	return qdrant.NewID(id)
}

func idString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	}
	return ""
}

func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = convertValue(v)
	}
	return out
}

func convertValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_ListValue:
		list := make([]any, 0, len(k.ListValue.GetValues()))
		for _, item := range k.ListValue.GetValues() {
			list = append(list, convertValue(item))
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayload(k.StructValue.GetFields())
	default:
		return nil
	}
}

var _ Index = (*QdrantIndex)(nil)
