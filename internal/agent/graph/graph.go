package graph

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/compose"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/google/uuid"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/enrich"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/nodes"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/observers"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/tools"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

// Runner executes one query against a thread and returns the enriched result.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.RAGResult, error)
}

// Config holds everything needed to compose the agent graph end-to-end.
type Config struct {
	ChatModel   einomodel.BaseChatModel
	Agent       model.AgentModelConfig
	Prompt      model.ResponsePromptConfig
	Tools       model.ToolsConfig
	Registry    *tools.Registry
	Checkpoints model.CheckpointStore
	Enricher    *enrich.Enricher
	Sink        *telemetry.Sink
	Metrics     *telemetry.Metrics
}

// GraphBuilder handles the construction of the agent graph
type GraphBuilder struct {
	config  *Config
	manager *conversations.Manager
	graph   *compose.Graph[*model.ConversationState, *model.ConversationState]
}

type graphRunner struct {
	runnable compose.Runnable[*model.ConversationState, *model.ConversationState]
	manager  *conversations.Manager
	config   *Config
}

// BuildAgentGraph validates cfg, builds the AGENT <-> TOOLS graph and
// returns a Runner.
func BuildAgentGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store is nil")
	}
	if cfg.Enricher == nil {
		return nil, fmt.Errorf("enricher is nil")
	}
	if cfg.Agent.MaxIterations <= 0 {
		cfg.Agent.MaxIterations = nodes.DefaultMaxIterations
	}

	b := &GraphBuilder{
		config:  &cfg,
		manager: conversations.NewManager(cfg.Checkpoints, cfg.Metrics),
		graph:   compose.NewGraph[*model.ConversationState, *model.ConversationState](),
	}
	if err := b.addNodes(ctx); err != nil {
		return nil, err
	}
	b.addEdges()
	if err := b.addBranches(); err != nil {
		return nil, err
	}
	runnable, err := b.compile(ctx)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Agent graph built successfully")
	return &graphRunner{runnable: runnable, manager: b.manager, config: b.config}, nil
}

// addNodes adds the agent and tools nodes to the graph
func (b *GraphBuilder) addNodes(ctx context.Context) error {
	agentNode := nodes.NewAgentNode(nodes.AgentConfig{
		ChatModel:     b.config.ChatModel,
		ModelName:     b.config.Agent.Model,
		Temperature:   b.config.Agent.Temperature,
		SchemaRetries: b.config.Agent.SchemaRetries,
		MaxIterations: b.config.Agent.MaxIterations,
		Prompt:        b.config.Prompt,
		Manager:       b.manager,
		Sink:          b.config.Sink,
		Metrics:       b.config.Metrics,
	})
	if err := b.graph.AddLambdaNode(nodes.NodeAgent, agentNode, compose.WithNodeName(nodes.NodeAgent)); err != nil {
		return fmt.Errorf("add agent node: %w", err)
	}

	toolsNode, err := nodes.NewToolsNode(ctx, nodes.ToolsConfig{
		Registry:            b.config.Registry,
		ExecuteSequentially: b.config.Tools.ExecuteSequentially,
		Manager:             b.manager,
	})
	if err != nil {
		return err
	}
	if err := b.graph.AddLambdaNode(nodes.NodeTools, toolsNode, compose.WithNodeName(nodes.NodeTools)); err != nil {
		return fmt.Errorf("add tools node: %w", err)
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeAgent},
		{nodes.NodeTools, nodes.NodeAgent},
	}
	for _, edge := range edges {
		_ = b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches routes after every agent turn
func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewAgentCondition(b.config.Agent.MaxIterations),
		map[string]bool{
			nodes.NodeTools: true,
			compose.END:     true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeAgent, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.ConversationState, *model.ConversationState], error) {
	// at most MaxIterations+1 agent turns, each but the last followed by tools
	maxSteps := 2*(b.config.Agent.MaxIterations+1) + 2

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps), compose.WithGraphName("shopping_agent"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Int("max_steps", maxSteps).Msg("Graph compiled successfully")
	return runnable, nil
}

// Invoke validates the input, runs the loop under the thread lock and
// enriches the terminal state.
func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (res *model.RAGResult, err error) {
	threadID := strings.TrimSpace(in.ThreadID)
	query := strings.TrimSpace(in.Query)
	if threadID == "" {
		return nil, errx.Validation("thread_id is required")
	}
	if query == "" {
		return nil, errx.Validation("query is required")
	}

	ctx, span := r.config.Sink.Start(ctx, "rag_agent", telemetry.KindChain)
	defer func() {
		meta := map[string]any{"thread_id": threadID}
		if res != nil {
			meta["iterations"] = res.Iterations
			meta["used_images"] = len(res.UsedImageURLs)
		}
		span.End(err, meta)
	}()

	traceID := in.TraceID
	if traceID == "" {
		traceID = telemetry.TraceID(ctx)
	}
	if traceID == "" {
		traceID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	ctx = logx.WithFields(ctx, logx.Fields{ThreadID: threadID, TraceID: traceID})

	unlock := r.manager.Lock(threadID)
	defer unlock()

	st, err := r.manager.Initialize(ctx, threadID, query, r.config.Registry.Manifests())
	if err != nil {
		return nil, err
	}

	out, err := r.runnable.Invoke(ctx, st, compose.WithCallbacks(observers.NewAllCallbacks(r.config.Sink)))
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Msg("agent loop failed")
		return nil, unwrapNodeError(err)
	}
	r.config.Metrics.LoopFinished(out.Iteration)

	used := r.config.Enricher.Enrich(ctx, out.RetrievedContextIDs)
	logx.Ctx(ctx).Info().
		Int("iterations", out.Iteration).
		Bool("final_answer", out.FinalAnswer).
		Int("used_images", len(used)).
		Msg("query answered")

	return &model.RAGResult{
		Answer:        out.Answer,
		UsedImageURLs: used,
		TraceID:       traceID,
		Iterations:    out.Iteration,
	}, nil
}

// unwrapNodeError returns the AppError raised inside a node; the graph wraps
// node errors with its own context.
func unwrapNodeError(err error) error {
	if errx.CodeOf(err) != errx.CodeInternal {
		return err
	}
	return errx.New(err, http.StatusInternalServerError, errx.SystemErrorMessage)
}
