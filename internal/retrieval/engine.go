package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"golang.org/x/sync/errgroup"

	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

const (
	DefaultPrefetchLimit = 20
	DefaultTopK          = 5
)

// Options tune the hybrid engine.
type Options struct {
	PrefetchLimit int
	RRFConstant   float64
	Sink          *telemetry.Sink
	Metrics       *telemetry.Metrics
}

// Engine runs hybrid dense + lexical retrieval and fuses the branches.
type Engine struct {
	index         Index
	embedder      embedding.Embedder
	prefetchLimit int
	rrfConstant   float64
	sink          *telemetry.Sink
	metrics       *telemetry.Metrics
}

// NewEngine creates an Engine over index using embedder for the dense branch.
func NewEngine(index Index, embedder embedding.Embedder, opts Options) *Engine {
	if opts.PrefetchLimit <= 0 {
		opts.PrefetchLimit = DefaultPrefetchLimit
	}
	if opts.RRFConstant <= 0 {
		opts.RRFConstant = DefaultRRFConstant
	}
	return &Engine{
		index:         index,
		embedder:      embedder,
		prefetchLimit: opts.PrefetchLimit,
		rrfConstant:   opts.RRFConstant,
		sink:          opts.Sink,
		metrics:       opts.Metrics,
	}
}

// Index returns the underlying index.
func (e *Engine) Index() Index {
	return e.index
}

// Search embeds q.Text, runs both branches concurrently and returns the
// top-k fused ranking. An empty branch is not an error; a failing branch is
// reported as a retrieval backend error.
func (e *Engine) Search(ctx context.Context, q Query) (res *Result, err error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, errx.Validation("query text is required")
	}
	if q.Collection == "" {
		return nil, errx.Validation("collection is required")
	}
	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	ctx, span := e.sink.Start(ctx, "retrieve_top_n", telemetry.KindRetriever)
	defer func() {
		meta := map[string]any{"collection": q.Collection, "top_k": topK}
		if res != nil {
			meta["retrieved_context_ids"] = res.IDs
		}
		span.End(err, meta)
	}()

	vector, err := e.embed(ctx, text)
	if err != nil {
		return nil, errx.RetrievalBackend(fmt.Errorf("embed query: %w", err))
	}

	var dense, lexical []Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		defer func() { e.metrics.RetrievalBranch(q.Collection, "dense", time.Since(start)) }()
		var err error
		dense, err = e.index.DenseSearch(gctx, q.Collection, vector, e.prefetchLimit, q.Filter)
		if err != nil {
			return fmt.Errorf("dense branch: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		defer func() { e.metrics.RetrievalBranch(q.Collection, "lexical", time.Since(start)) }()
		var err error
		lexical, err = e.index.LexicalSearch(gctx, q.Collection, text, e.prefetchLimit, q.Filter)
		if err != nil {
			return fmt.Errorf("lexical branch: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		var app *errx.AppError
		if errors.As(err, &app) && app.Code == errx.CodeRetrievalBackend {
			return nil, err
		}
		return nil, errx.RetrievalBackend(err)
	}

	fused := Fuse(topK, e.rrfConstant, dense, lexical)
	logx.Ctx(ctx).Debug().
		Str("collection", q.Collection).
		Int("dense", len(dense)).
		Int("lexical", len(lexical)).
		Int("fused", len(fused)).
		Msg("hybrid retrieval")

	return resultFromCandidates(fused), nil
}

func (e *Engine) embed(ctx context.Context, text string) (vec []float32, err error) {
	ctx, span := e.sink.Start(ctx, "embed_query", telemetry.KindEmbedding)
	defer func() { span.End(err, map[string]any{"dimensions": len(vec)}) }()
	return embedOne(ctx, e.embedder, text)
}

// Get fetches one record by id from collection.
func (e *Engine) Get(ctx context.Context, collection, id string) (*Record, error) {
	rec, err := e.index.Get(ctx, collection, id)
	if err != nil {
		return nil, errx.RetrievalBackend(err)
	}
	return rec, nil
}
