package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/retrieval"
)

type fakeSearcher struct {
	queries []retrieval.Query
	result  *retrieval.Result
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, q retrieval.Query) (*retrieval.Result, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &retrieval.Result{}, nil
	}
	return f.result, nil
}

func price(v float64) *float64 { return &v }

func testConfig() model.RetrievalConfig {
	return model.RetrievalConfig{
		ItemsCollection:   "items",
		ReviewsCollection: "reviews",
		ReviewItemField:   "parent_asin",
		TopK:              5,
		ReviewTopK:        15,
	}
}

func TestItemSearchFormatsRankedLines(t *testing.T) {
	s := &fakeSearcher{result: &retrieval.Result{
		IDs:    []string{"B01", "B02"},
		Texts:  []string{"Red running shoes,\nmesh upper", "Blue trail shoes"},
		Prices: []*float64{price(39.99), nil},
		Scores: []float64{0.03, 0.01},
	}}
	tl := NewItemSearchTool(s, testConfig())

	out, err := tl.InvokableRun(context.Background(), `{"query":"  red running shoes "}`)
	require.NoError(t, err)

	assert.Equal(t, "- B01, price: 39.99, Red running shoes, mesh upper\n- B02, price: N/A, Blue trail shoes\n", out)
	require.Len(t, s.queries, 1)
	assert.Equal(t, retrieval.Query{Collection: "items", Text: "red running shoes", TopK: 5}, s.queries[0])
}

func TestItemSearchCoercesTopK(t *testing.T) {
	s := &fakeSearcher{}
	tl := NewItemSearchTool(s, testConfig())

	out, err := tl.InvokableRun(context.Background(), `{"query":"lamp","top_k":"3"}`)
	require.NoError(t, err)
	assert.Equal(t, noItemsFound, out)
	assert.Equal(t, 3, s.queries[0].TopK)
}

func TestItemSearchRejectsBadArguments(t *testing.T) {
	tl := NewItemSearchTool(&fakeSearcher{}, testConfig())

	cases := map[string]string{
		"missing query": `{"top_k": 3}`,
		"blank query":   `{"query": "  "}`,
		"not an object": `["lamp"]`,
		"zero top_k":    `{"query": "lamp", "top_k": 0}`,
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tl.InvokableRun(context.Background(), args)
			assert.Error(t, err)
		})
	}
}

func TestReviewSearchFiltersByItemList(t *testing.T) {
	s := &fakeSearcher{result: &retrieval.Result{
		IDs:    []string{"r9"},
		Texts:  []string{"Runs small"},
		Prices: []*float64{nil},
		Scores: []float64{0.02},
	}}
	tl := NewReviewSearchTool(s, testConfig())

	out, err := tl.InvokableRun(context.Background(), `{"query":"sizing","item_list":["B01", 42, " "]}`)
	require.NoError(t, err)
	assert.Equal(t, "- r9, Runs small\n", out)

	require.Len(t, s.queries, 1)
	q := s.queries[0]
	assert.Equal(t, "reviews", q.Collection)
	assert.Equal(t, 15, q.TopK)
	require.NotNil(t, q.Filter)
	assert.Equal(t, "parent_asin", q.Filter.Field)
	assert.Equal(t, []string{"B01", "42"}, q.Filter.AnyOf)
}

func TestReviewSearchRequiresItems(t *testing.T) {
	s := &fakeSearcher{}
	tl := NewReviewSearchTool(s, testConfig())

	_, err := tl.InvokableRun(context.Background(), `{"query":"sizing","item_list":[]}`)
	assert.Error(t, err)
	_, err = tl.InvokableRun(context.Background(), `{"query":"sizing"}`)
	assert.Error(t, err)
	assert.Empty(t, s.queries)
}

func TestValidateManifests(t *testing.T) {
	valid := ItemSearchManifest(5)
	require.NoError(t, ValidateManifests([]model.ToolManifest{valid, ReviewSearchManifest(15)}))

	dup := []model.ToolManifest{valid, valid}
	assert.ErrorContains(t, ValidateManifests(dup), "duplicate")

	undeclared := ItemSearchManifest(5)
	undeclared.Required = []string{"query", "color"}
	assert.ErrorContains(t, ValidateManifests([]model.ToolManifest{undeclared}), "color")

	badType := ItemSearchManifest(5)
	badType.Parameters = map[string]model.ParamSpec{"query": {Type: "text", Description: "q"}}
	assert.ErrorContains(t, ValidateManifests([]model.ToolManifest{badType}), "unknown type")

	badDefault := ItemSearchManifest(5)
	badDefault.Parameters = map[string]model.ParamSpec{
		"query": {Type: "string", Description: "q"},
		"top_k": {Type: "integer", Description: "k", Default: "five"},
	}
	assert.ErrorContains(t, ValidateManifests([]model.ToolManifest{badDefault}), "default")
}

func TestRegistryGuardsFailingTools(t *testing.T) {
	s := &fakeSearcher{err: errors.New("index unreachable")}
	reg, err := NewRetrievalRegistry(s, testConfig(), nil, nil)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, m := range reg.Manifests() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{ToolItemSearch, ToolReviewSearch}, names)

	base := reg.BaseTools()
	require.Len(t, base, 2)
	info, err := base[0].Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ToolItemSearch, info.Name)

	guarded := base[0].(*guardedTool)
	out, err := guarded.InvokableRun(context.Background(), `{"query":"shoes"}`)
	require.NoError(t, err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "tool_execution_error", payload["error"])
	assert.Equal(t, ToolItemSearch, payload["name"])
	assert.Contains(t, payload["message"], "index unreachable")
}

func TestToolCallMessage(t *testing.T) {
	msg, err := ToolCallMessage([]model.ToolCall{
		{ID: "call_1_0", Name: ToolItemSearch, Arguments: map[string]any{"query": "shoes"}},
	})
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_1_0", msg.ToolCalls[0].ID)
	assert.Equal(t, ToolItemSearch, msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"query":"shoes"}`, msg.ToolCalls[0].Function.Arguments)
}
