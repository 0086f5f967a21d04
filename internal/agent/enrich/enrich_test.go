package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/retrieval"
)

type fakeLookup struct {
	records map[string]*retrieval.Record
	fail    map[string]bool
	calls   []string
}

func (f *fakeLookup) Get(_ context.Context, collection, id string) (*retrieval.Record, error) {
	f.calls = append(f.calls, collection+"/"+id)
	if f.fail[id] {
		return nil, errors.New("index down")
	}
	return f.records[id], nil
}

func TestEnrich(t *testing.T) {
	lookup := &fakeLookup{
		records: map[string]*retrieval.Record{
			"B01": {ID: "B01", Payload: map[string]any{"first_large_image": "https://img/b01.jpg", "price": 39.99}},
			"B02": {ID: "B02", Payload: map[string]any{"price": 12.0}},
			"B03": {ID: "B03", Payload: map[string]any{"first_large_image": "https://img/b03.jpg"}},
			"B04": {ID: "B04", Payload: map[string]any{"first_large_image": "https://img/b04.jpg", "price": "19.5"}},
		},
		fail: map[string]bool{"B05": true},
	}
	e := NewEnricher(lookup, model.RetrievalConfig{ItemsCollection: "items"}, nil)

	got := e.Enrich(context.Background(), []model.ReferencedItem{
		{ID: "B01", Description: "red runner"},
		{ID: "B02", Description: "no image"},
		{ID: "B03", Description: "no price"},
		{ID: "missing", Description: "unknown"},
		{ID: "B05", Description: "lookup fails"},
		{ID: "B01", Description: "duplicate"},
		{ID: "B04", Description: "string price"},
	})

	require.Len(t, got, 3)
	assert.Equal(t, "https://img/b01.jpg", got[0].ImageURL)
	require.NotNil(t, got[0].Price)
	assert.Equal(t, 39.99, *got[0].Price)
	assert.Equal(t, "red runner", got[0].Description)

	assert.Equal(t, "https://img/b03.jpg", got[1].ImageURL)
	assert.Nil(t, got[1].Price)

	require.NotNil(t, got[2].Price)
	assert.Equal(t, 19.5, *got[2].Price)

	assert.Equal(t, "items/B01", lookup.calls[0])
	assert.Len(t, lookup.calls, 6)
}

func TestEnrichEmpty(t *testing.T) {
	e := NewEnricher(&fakeLookup{}, model.RetrievalConfig{}, nil)
	got := e.Enrich(context.Background(), nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
