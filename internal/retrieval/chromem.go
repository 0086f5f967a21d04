package retrieval

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemIndex implements Index in process with chromem-go. Vectors are
// supplied by the caller; the lexical branch scans documents in insertion
// order with a case-insensitive substring match.
type ChromemIndex struct {
	db         *chromem.DB
	textField  string
	priceField string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	order       map[string][]string
}

// NewChromemIndex creates an empty in-memory index.
func NewChromemIndex(textField, priceField string) *ChromemIndex {
	if textField == "" {
		textField = "text"
	}
	if priceField == "" {
		priceField = "price"
	}
	return &ChromemIndex{
		db:          chromem.NewDB(),
		textField:   textField,
		priceField:  priceField,
		collections: make(map[string]*chromem.Collection),
		order:       make(map[string][]string),
	}
}

func precomputed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("chromem index expects precomputed embeddings")
}

func (c *ChromemIndex) collection(name string, create bool) (*chromem.Collection, error) {
	c.mu.RLock()
	col, ok := c.collections[name]
	c.mu.RUnlock()
	if ok {
		return col, nil
	}
	if !create {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	col, err := c.db.GetOrCreateCollection(name, nil, precomputed)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %q: %w", name, err)
	}
	c.collections[name] = col
	return col, nil
}

// Upsert stores one document with its vector and payload.
func (c *ChromemIndex) Upsert(ctx context.Context, collection string, id string, vector []float32, payload map[string]any) error {
	col, err := c.collection(collection, true)
	if err != nil {
		return err
	}

	meta := make(map[string]string, len(payload))
	for k, v := range payload {
		if s := stringify(v); s != "" {
			meta[k] = s
		}
	}
	text := meta[c.textField]

	doc := chromem.Document{ID: id, Content: text, Metadata: meta, Embedding: vector}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add document %s: %w", id, err)
	}

	c.mu.Lock()
	if !containsString(c.order[collection], id) {
		c.order[collection] = append(c.order[collection], id)
	}
	c.mu.Unlock()
	return nil
}

func (c *ChromemIndex) DenseSearch(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]Candidate, error) {
	col, err := c.collection(collection, false)
	if err != nil || col == nil {
		return nil, err
	}
	n := col.Count()
	if n == 0 || limit <= 0 {
		return nil, nil
	}
	// chromem filters on single values only; rank everything and filter here
	want := limit
	if !filter.Empty() || want > n {
		want = n
	}

	results, err := col.QueryEmbedding(ctx, vector, want, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	out := make([]Candidate, 0, limit)
	for _, r := range results {
		payload := metaPayload(r.Metadata)
		if !filter.Matches(payload) {
			continue
		}
		out = append(out, c.candidate(r.ID, r.Content, payload, float64(r.Similarity)))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *ChromemIndex) LexicalSearch(ctx context.Context, collection string, query string, limit int, filter *Filter) ([]Candidate, error) {
	col, err := c.collection(collection, false)
	if err != nil || col == nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || limit <= 0 {
		return nil, nil
	}

	c.mu.RLock()
	ids := append([]string(nil), c.order[collection]...)
	c.mu.RUnlock()

	out := make([]Candidate, 0, limit)
	for _, id := range ids {
		doc, err := col.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
		}
		if !strings.Contains(strings.ToLower(doc.Content), needle) {
			continue
		}
		payload := metaPayload(doc.Metadata)
		if !filter.Matches(payload) {
			continue
		}
		out = append(out, c.candidate(doc.ID, doc.Content, payload, 0))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *ChromemIndex) Get(ctx context.Context, collection string, id string) (*Record, error) {
	col, err := c.collection(collection, false)
	if err != nil || col == nil {
		return nil, err
	}
	c.mu.RLock()
	known := containsString(c.order[collection], id)
	c.mu.RUnlock()
	if !known {
		return nil, nil
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return &Record{ID: doc.ID, Payload: metaPayload(doc.Metadata)}, nil
}

func (c *ChromemIndex) Close() error {
	return nil
}

func (c *ChromemIndex) candidate(id, text string, payload map[string]any, score float64) Candidate {
	return Candidate{
		ID:      id,
		Text:    text,
		Price:   PriceOf(payload[c.priceField]),
		Score:   score,
		Payload: payload,
	}
}

func metaPayload(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var _ Index = (*ChromemIndex)(nil)
