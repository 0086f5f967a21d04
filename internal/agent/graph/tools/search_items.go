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

// ===================================
// Item Search Tool
// ===================================

type ItemSearchInput struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// ItemSearchTool searches the items collection.
type ItemSearchTool struct {
	searcher   Searcher
	collection string
	manifest   model.ToolManifest
}

func NewItemSearchTool(searcher Searcher, cfg model.RetrievalConfig) *ItemSearchTool {
	topK := cfg.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	return &ItemSearchTool{
		searcher:   searcher,
		collection: cfg.ItemsCollection,
		manifest:   ItemSearchManifest(topK),
	}
}

func (t *ItemSearchTool) Manifest() model.ToolManifest {
	return t.manifest
}

func (t *ItemSearchTool) Info(context.Context) (*schema.ToolInfo, error) {
	return toolInfo(t.manifest), nil
}

func (t *ItemSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in ItemSearchInput
	if err := decodeArgs(t.manifest, argumentsInJSON, &in); err != nil {
		return "", err
	}
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return "", fmt.Errorf("query is required")
	}
	if in.TopK <= 0 {
		return "", fmt.Errorf("top_k must be positive, got %d", in.TopK)
	}

	res, err := t.searcher.Search(ctx, retrieval.Query{
		Collection: t.collection,
		Text:       in.Query,
		TopK:       in.TopK,
	})
	if err != nil {
		return "", err
	}
	return FormatItems(res), nil
}

var _ Tool = (*ItemSearchTool)(nil)
