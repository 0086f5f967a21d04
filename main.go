package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/enrich"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/nodes"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/tools"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/repo"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/api"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/core"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/retrieval"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
	pkgqdrant "github.com/Chative-core-poc-v1/shopping-agent/pkg/qdrant"
	pkgredis "github.com/Chative-core-poc-v1/shopping-agent/pkg/redis"
)

// AppConfig defines all configurable parameters of the service, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis  pkgredis.Config
	Qdrant pkgqdrant.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Agent      model.AgentModelConfig
	Embedding  model.EmbeddingConfig
	Retrieval  model.RetrievalConfig
	Checkpoint model.CheckpointConfig
	Feedback   model.FeedbackConfig
	Tools      model.ToolsConfig
	Prompt     model.ResponsePromptConfig

	Telemetry telemetry.Config
	API       api.Config
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logx.Fatal().Err(err).Msg("service stopped")
	}
	logx.Info().Msg("service stopped")
}

func run(ctx context.Context, cfg AppConfig) error {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logx.Warn().Err(err).Msg("close failed")
			}
		}
	}()

	// ====================================================
	// Telemetry
	tp, shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	closers = append(closers, func() error { return shutdownTracer(context.Background()) })
	sink := telemetry.NewSink(tp)
	metrics := telemetry.NewMetrics()

	// ====================================================
	// Infrastructure
	var rdb *goredis.Client
	if needsRedis(cfg) {
		rdb, err = cfg.Redis.New(ctx)
		if err != nil {
			return fmt.Errorf("initialise redis client: %w", err)
		}
		closers = append(closers, rdb.Close)
		logx.Info().Msg("Connected to Redis successfully")
	}

	genaiClient, err := nodes.NewGenAIClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return err
	}
	embedder := retrieval.NewGeminiEmbedder(genaiClient, cfg.Embedding)

	index, err := newIndex(ctx, cfg, embedder)
	if err != nil {
		return err
	}
	closers = append(closers, index.Close)

	engine := retrieval.NewEngine(index, embedder, retrieval.Options{
		PrefetchLimit: cfg.Retrieval.PrefetchLimit,
		RRFConstant:   cfg.Retrieval.RRFConstant,
		Sink:          sink,
		Metrics:       metrics,
	})

	var cmdable goredis.UniversalClient
	if rdb != nil {
		cmdable = rdb
	}
	checkpoints, err := repo.NewCheckpointStore(ctx, cfg.Checkpoint, cmdable)
	if err != nil {
		return fmt.Errorf("initialise checkpoint store: %w", err)
	}
	closers = append(closers, checkpoints.Close)

	feedback := newFeedbackRepository(cfg.Feedback, rdb)

	// ====================================================
	// Agent graph
	chatModel, err := nodes.NewAgentChatModel(ctx, genaiClient, cfg.Agent)
	if err != nil {
		return err
	}
	registry, err := tools.NewRetrievalRegistry(engine, cfg.Retrieval, sink, metrics)
	if err != nil {
		return err
	}

	runner, err := graph.BuildAgentGraph(ctx, graph.Config{
		ChatModel:   chatModel,
		Agent:       cfg.Agent,
		Prompt:      cfg.Prompt,
		Tools:       cfg.Tools,
		Registry:    registry,
		Checkpoints: checkpoints,
		Enricher:    enrich.NewEnricher(engine, cfg.Retrieval, sink),
		Sink:        sink,
		Metrics:     metrics,
	})
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	// ====================================================
	// HTTP
	srv := api.NewServer(cfg.API, runner, feedback, sink, metrics)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logx.Info().Msg("shutting down")
		return srv.Shutdown(context.Background())
	}
}

func needsRedis(cfg AppConfig) bool {
	return strings.EqualFold(cfg.Checkpoint.Backend, "redis") || strings.EqualFold(cfg.Feedback.Backend, "redis")
}

// newIndex connects to Qdrant, or builds an in-process chromem index seeded
// from the configured JSONL catalogs.
func newIndex(ctx context.Context, cfg AppConfig, embedder *retrieval.GeminiEmbedder) (retrieval.Index, error) {
	switch strings.ToLower(cfg.Retrieval.Backend) {
	case "qdrant":
		client, err := cfg.Qdrant.New()
		if err != nil {
			return nil, err
		}
		return retrieval.NewQdrantIndex(client, cfg.Retrieval.TextField, cfg.Retrieval.PriceField), nil
	case "chromem":
		idx := retrieval.NewChromemIndex(cfg.Retrieval.TextField, cfg.Retrieval.PriceField)
		docs := embedder.ForDocuments()
		seeds := []struct{ collection, path string }{
			{cfg.Retrieval.ItemsCollection, cfg.Retrieval.ItemsCatalogPath},
			{cfg.Retrieval.ReviewsCollection, cfg.Retrieval.ReviewsCatalogPath},
		}
		for _, s := range seeds {
			if s.path == "" {
				continue
			}
			if _, err := retrieval.SeedCatalog(ctx, idx, docs, s.collection, s.path, cfg.Retrieval.TextField); err != nil {
				return nil, fmt.Errorf("seed %s: %w", s.collection, err)
			}
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown retrieval backend %q", cfg.Retrieval.Backend)
	}
}

func newFeedbackRepository(cfg model.FeedbackConfig, rdb *goredis.Client) model.FeedbackRepository {
	if strings.EqualFold(cfg.Backend, "redis") && rdb != nil {
		return repo.NewRedisFeedbackRepository(rdb, cfg.Stream)
	}
	logx.Warn().Str("backend", cfg.Backend).Msg("feedback kept in memory")
	return repo.NewMemoryFeedbackRepository()
}
