package nodes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/compose"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/parsers"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/prompts"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

// AgentConfig holds the collaborators of the agent node.
type AgentConfig struct {
	ChatModel     einomodel.BaseChatModel
	ModelName     string
	Temperature   float32
	SchemaRetries int
	MaxIterations int
	Prompt        model.ResponsePromptConfig
	Manager       *conversations.Manager
	Sink          *telemetry.Sink
	Metrics       *telemetry.Metrics
}

// NewAgentNode creates the decision node: one model call producing a
// validated AgentResponse, merged into the state and checkpointed.
func NewAgentNode(cfg AgentConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		systemPrompt, err := prompts.RenderAgentSystem(ctx, cfg.Prompt, st.AvailableTools)
		if err != nil {
			return nil, fmt.Errorf("render agent system prompt: %w", err)
		}

		resp, err := cfg.decide(ctx, conversations.BuildAgentContext(systemPrompt, st))
		if err != nil {
			cfg.Metrics.AgentTurn("error")
			return nil, err
		}

		next := st.Clone()
		route := ApplyAgentResponse(next, resp, cfg.MaxIterations)
		if err := cfg.Manager.Save(ctx, next); err != nil {
			return nil, err
		}

		outcome := "tools"
		switch {
		case next.FinalAnswer:
			outcome = "final"
		case route == compose.END && len(resp.ToolCalls) > 0:
			outcome = "capped"
		case route == compose.END:
			outcome = "no_tools"
		}
		cfg.Metrics.AgentTurn(outcome)

		logx.Ctx(ctx).Debug().
			Str("node", NodeAgent).
			Int("iteration", next.Iteration).
			Bool("final_answer", next.FinalAnswer).
			Int("tool_calls", len(next.ToolCalls)).
			Int("retrieved_context_ids", len(next.RetrievedContextIDs)).
			Str("route", route).
			Msg("agent turn")
		return next, nil
	})
}

// NewAgentCondition routes after the agent node.
func NewAgentCondition(maxIterations int) func(context.Context, *model.ConversationState) (string, error) {
	return func(ctx context.Context, st *model.ConversationState) (string, error) {
		return Route(st, maxIterations), nil
	}
}

// ApplyAgentResponse merges resp into st and returns the next route.
// Iteration grows by one; answer, final_answer, tool_calls and
// retrieved_context_ids are replaced; one assistant message is appended.
// Tool calls are dropped when the turn ends the loop.
func ApplyAgentResponse(st *model.ConversationState, resp *model.AgentResponse, maxIterations int) string {
	st.Iteration++
	st.Answer = resp.Answer
	st.FinalAnswer = resp.FinalAnswer
	st.RetrievedContextIDs = append([]model.ReferencedItem{}, resp.RetrievedContextIDs...)

	st.ToolCalls = []model.ToolCall{}
	if !resp.FinalAnswer {
		for i, tc := range resp.ToolCalls {
			st.ToolCalls = append(st.ToolCalls, model.ToolCall{
				ID:        fmt.Sprintf("call_%d_%d", st.Iteration, i),
				Name:      tc.Name,
				Arguments: tc.Arguments,
			})
		}
	}

	route := Route(st, maxIterations)
	if route == compose.END {
		st.ToolCalls = []model.ToolCall{}
	}

	msg := model.Message{Role: model.RoleAssistant, Content: resp.Answer, FinalAnswer: resp.FinalAnswer}
	if len(st.ToolCalls) > 0 {
		msg.ToolCalls = append([]model.ToolCall(nil), st.ToolCalls...)
	}
	st.Messages = append(st.Messages, msg)
	return route
}

// decide calls the model and validates its output, re-prompting up to
// SchemaRetries times. Corrective turns live only in this request.
func (c *AgentConfig) decide(ctx context.Context, messages []*schema.Message) (*model.AgentResponse, error) {
	retries := c.SchemaRetries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		out, err := c.generate(ctx, messages)
		if err != nil {
			return nil, err
		}
		resp, err := parsers.ParseAgentResponse(out.Content)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		logx.Ctx(ctx).Warn().Err(err).Int("attempt", attempt+1).Msg("agent output failed schema validation")
		messages = append(messages,
			schema.AssistantMessage(out.Content, nil),
			schema.UserMessage(prompts.SchemaReminder(err)),
		)
	}
	return nil, lastErr
}

func (c *AgentConfig) generate(ctx context.Context, messages []*schema.Message) (out *schema.Message, err error) {
	ctx, span := c.Sink.Start(ctx, "agent_decision", telemetry.KindLLM)
	meta := map[string]any{"model": c.ModelName, "temperature": float64(c.Temperature)}
	defer func() { span.End(err, meta) }()

	out, err = c.ChatModel.Generate(ctx, messages, einomodel.WithTemperature(c.Temperature))
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Str("model", c.ModelName).Msg("agent model call failed")
		return nil, errx.New(fmt.Errorf("generate: %w", err), http.StatusBadGateway, "generative model call failed")
	}
	if out == nil {
		return nil, errx.ModelOutputSchema(fmt.Errorf("model returned no message"))
	}

	if usage, ok := model.UsageFromMessage(c.ModelName, out); ok {
		meta["prompt_tokens"] = usage.PromptTokens
		meta["completion_tokens"] = usage.CompletionTokens
		meta["total_tokens"] = usage.TotalTokens
		meta["total_cost_usd"] = usage.TotalCostUSD
		c.Metrics.LLMUsage(c.ModelName, usage.PromptTokens, usage.CompletionTokens, usage.TotalCostUSD)
		logx.Ctx(ctx).Debug().
			Str("node", NodeAgent).
			Str("model", c.ModelName).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Int("total_tokens", usage.TotalTokens).
			Float64("input_cost_usd", usage.InputCostUSD).
			Float64("output_cost_usd", usage.OutputCostUSD).
			Float64("total_cost_usd", usage.TotalCostUSD).
			Msg("LLM usage")
	}
	return out, nil
}
