package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
)

type fakeEmbedder struct {
	calls atomic.Int32
	err   error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 1}
	}
	return out, nil
}

type fakeIndex struct {
	dense, lexical       []Candidate
	denseErr, lexicalErr error
	lastLimit            int
	lastFilter           *Filter
	records              map[string]*Record
}

func (f *fakeIndex) DenseSearch(_ context.Context, _ string, _ []float32, limit int, filter *Filter) ([]Candidate, error) {
	f.lastLimit = limit
	f.lastFilter = filter
	return f.dense, f.denseErr
}

func (f *fakeIndex) LexicalSearch(_ context.Context, _ string, _ string, _ int, _ *Filter) ([]Candidate, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeIndex) Get(_ context.Context, _ string, id string) (*Record, error) {
	return f.records[id], nil
}

func (f *fakeIndex) Close() error { return nil }

func TestEngineSearchFusesBranches(t *testing.T) {
	idx := &fakeIndex{dense: cands("a", "b", "c"), lexical: cands("c")}
	eng := NewEngine(idx, &fakeEmbedder{}, Options{})

	res, err := eng.Search(context.Background(), Query{Collection: "items", Text: "red shoes", TopK: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "a"}, res.IDs)
	assert.Len(t, res.Texts, 2)
	assert.Len(t, res.Prices, 2)
	assert.Len(t, res.Scores, 2)
	assert.Equal(t, DefaultPrefetchLimit, idx.lastLimit)
}

func TestEngineSearchDefaultsTopK(t *testing.T) {
	idx := &fakeIndex{dense: cands("1", "2", "3", "4", "5", "6", "7")}
	eng := NewEngine(idx, &fakeEmbedder{}, Options{PrefetchLimit: 7})

	res, err := eng.Search(context.Background(), Query{Collection: "items", Text: "lamp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, res.IDs)
	assert.Equal(t, 7, idx.lastLimit)
}

func TestEngineSearchPassesFilter(t *testing.T) {
	idx := &fakeIndex{}
	eng := NewEngine(idx, &fakeEmbedder{}, Options{})
	filter := &Filter{Field: "item_id", AnyOf: []string{"a", "b"}}

	res, err := eng.Search(context.Background(), Query{Collection: "reviews", Text: "comfy", Filter: filter})
	require.NoError(t, err)
	assert.Zero(t, res.Len())
	assert.Same(t, filter, idx.lastFilter)
}

func TestEngineSearchBranchFailureIsRetrievalError(t *testing.T) {
	idx := &fakeIndex{dense: cands("a"), lexicalErr: errors.New("connection refused")}
	eng := NewEngine(idx, &fakeEmbedder{}, Options{})

	_, err := eng.Search(context.Background(), Query{Collection: "items", Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errx.ErrRetrievalBackend)
}

func TestEngineSearchEmbedFailureIsRetrievalError(t *testing.T) {
	eng := NewEngine(&fakeIndex{}, &fakeEmbedder{err: errors.New("quota")}, Options{})

	_, err := eng.Search(context.Background(), Query{Collection: "items", Text: "x"})
	assert.ErrorIs(t, err, errx.ErrRetrievalBackend)
}

func TestEngineSearchRejectsEmptyQuery(t *testing.T) {
	emb := &fakeEmbedder{}
	eng := NewEngine(&fakeIndex{}, emb, Options{})

	_, err := eng.Search(context.Background(), Query{Collection: "items", Text: "   "})
	assert.ErrorIs(t, err, errx.ErrValidation)
	assert.Zero(t, emb.calls.Load())
}
