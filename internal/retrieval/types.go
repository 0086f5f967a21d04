// Package retrieval implements hybrid search over the product and review
// corpora: a dense vector branch and a lexical branch fused with reciprocal
// rank fusion.
package retrieval

import (
	"context"
	"strconv"
)

// Candidate is one item returned by a single retrieval branch.
type Candidate struct {
	ID      string
	Text    string
	Price   *float64
	Score   float64
	Payload map[string]any
}

// Record is an item fetched by id.
type Record struct {
	ID      string
	Payload map[string]any
}

// Filter restricts candidates to items whose Field equals one of AnyOf.
type Filter struct {
	Field string
	AnyOf []string
}

// Empty reports whether the filter restricts nothing.
func (f *Filter) Empty() bool {
	return f == nil || f.Field == ""
}

// Matches reports whether payload passes the filter.
func (f *Filter) Matches(payload map[string]any) bool {
	if f.Empty() {
		return true
	}
	v, ok := payload[f.Field]
	if !ok {
		return false
	}
	s := stringify(v)
	for _, want := range f.AnyOf {
		if s == want {
			return true
		}
	}
	return false
}

// Index is a searchable corpus store.
type Index interface {
	// DenseSearch returns up to limit nearest neighbours of vector, best first.
	DenseSearch(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]Candidate, error)
	// LexicalSearch returns up to limit items whose text contains query. The
	// order carries no similarity meaning beyond being stable.
	LexicalSearch(ctx context.Context, collection string, query string, limit int, filter *Filter) ([]Candidate, error)
	// Get fetches one item by id; it returns (nil, nil) when the id is unknown.
	Get(ctx context.Context, collection string, id string) (*Record, error)
	Close() error
}

// Query is a hybrid search request.
type Query struct {
	Collection string
	Text       string
	TopK       int
	Filter     *Filter
}

// Result holds the fused ranking as parallel slices; index i of every slice
// describes the item at rank i.
type Result struct {
	IDs    []string
	Texts  []string
	Prices []*float64
	Scores []float64
}

// Len returns the number of ranked items.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.IDs)
}

func resultFromCandidates(cands []Candidate) *Result {
	res := &Result{
		IDs:    make([]string, 0, len(cands)),
		Texts:  make([]string, 0, len(cands)),
		Prices: make([]*float64, 0, len(cands)),
		Scores: make([]float64, 0, len(cands)),
	}
	for _, c := range cands {
		res.IDs = append(res.IDs, c.ID)
		res.Texts = append(res.Texts, c.Text)
		res.Prices = append(res.Prices, c.Price)
		res.Scores = append(res.Scores, c.Score)
	}
	return res
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// PriceOf reads a numeric price from a payload value.
func PriceOf(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int64:
		f = float64(t)
	case int:
		f = float64(t)
	case string:
		p, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	return &f
}
