package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
)

// GeminiEmbedder embeds text with the Gemini embedding API.
type GeminiEmbedder struct {
	client   *genai.Client
	model    string
	dims     int32
	taskType string
}

// NewGeminiEmbedder creates an embedder for query text.
func NewGeminiEmbedder(client *genai.Client, cfg model.EmbeddingConfig) *GeminiEmbedder {
	return &GeminiEmbedder{
		client:   client,
		model:    cfg.Model,
		dims:     cfg.Dimensions,
		taskType: "RETRIEVAL_QUERY",
	}
}

// ForDocuments returns a copy of the embedder that embeds corpus text.
func (e *GeminiEmbedder) ForDocuments() *GeminiEmbedder {
	cp := *e
	cp.taskType = "RETRIEVAL_DOCUMENT"
	return &cp
}

// EmbedStrings implements embedding.Embedder.
func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	cfg := &genai.EmbedContentConfig{TaskType: e.taskType}
	if e.dims > 0 {
		dims := e.dims
		cfg.OutputDimensionality = &dims
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed content: expected %d embeddings", len(texts))
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}

var _ embedding.Embedder = (*GeminiEmbedder)(nil)

// embedOne embeds a single text and converts it to the index vector type.
func embedOne(ctx context.Context, emb embedding.Embedder, text string) ([]float32, error) {
	vecs, err := emb.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vecs))
	}
	out := make([]float32, len(vecs[0]))
	for i, v := range vecs[0] {
		out[i] = float32(v)
	}
	return out, nil
}
