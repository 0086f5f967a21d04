package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/retrieval"
)

const defaultReviewTopK = 15

type ReviewSearchInput struct {
	Query    string   `json:"query"`
	ItemList []string `json:"item_list"`
	TopK     int      `json:"top_k,omitempty"`
}

// ReviewSearchTool searches reviews restricted to a caller-supplied item list.
type ReviewSearchTool struct {
	searcher   Searcher
	collection string
	itemField  string
	manifest   model.ToolManifest
}

func NewReviewSearchTool(searcher Searcher, cfg model.RetrievalConfig) *ReviewSearchTool {
	topK := cfg.ReviewTopK
	if topK <= 0 {
		topK = defaultReviewTopK
	}
	itemField := cfg.ReviewItemField
	if itemField == "" {
		itemField = "item_id"
	}
	return &ReviewSearchTool{
		searcher:   searcher,
		collection: cfg.ReviewsCollection,
		itemField:  itemField,
		manifest:   ReviewSearchManifest(topK),
	}
}

func (t *ReviewSearchTool) Manifest() model.ToolManifest {
	return t.manifest
}

func (t *ReviewSearchTool) Info(context.Context) (*schema.ToolInfo, error) {
	return toolInfo(t.manifest), nil
}

func (t *ReviewSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in ReviewSearchInput
	if err := decodeArgs(t.manifest, argumentsInJSON, &in); err != nil {
		return "", err
	}
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return "", fmt.Errorf("query is required")
	}
	items := make([]string, 0, len(in.ItemList))
	for _, id := range in.ItemList {
		if id = strings.TrimSpace(id); id != "" {
			items = append(items, id)
		}
	}
	if len(items) == 0 {
		return "", fmt.Errorf("item_list must contain at least one item id")
	}
	if in.TopK <= 0 {
		return "", fmt.Errorf("top_k must be positive, got %d", in.TopK)
	}

	res, err := t.searcher.Search(ctx, retrieval.Query{
		Collection: t.collection,
		Text:       in.Query,
		TopK:       in.TopK,
		Filter:     &retrieval.Filter{Field: t.itemField, AnyOf: items},
	})
	if err != nil {
		return "", err
	}
	return FormatReviews(res), nil
}

var _ Tool = (*ReviewSearchTool)(nil)
