package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/conversations"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/tools"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

// ToolsConfig holds the collaborators of the tools node.
type ToolsConfig struct {
	Registry            *tools.Registry
	ExecuteSequentially bool
	Manager             *conversations.Manager
}

// NewToolsNode creates the node running every pending tool call of a turn.
// Calls run concurrently unless ExecuteSequentially is set; results are
// appended in call order.
func NewToolsNode(ctx context.Context, cfg ToolsConfig) (*compose.Lambda, error) {
	tn, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               cfg.Registry.BaseTools(),
		ExecuteSequentially: cfg.ExecuteSequentially,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Ctx(ctx).Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown tool call; returning error result")
			return tools.UnknownToolResult(name), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			return trimArguments(arguments), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return nil, fmt.Errorf("failed to create tools node: %w", err)
	}

	return compose.InvokableLambda(func(ctx context.Context, st *model.ConversationState) (*model.ConversationState, error) {
		if len(st.ToolCalls) == 0 {
			return st, nil
		}
		call, err := tools.ToolCallMessage(st.ToolCalls)
		if err != nil {
			return nil, errx.ToolExecution(NodeTools, err)
		}
		results, err := tn.Invoke(ctx, call)
		if err != nil {
			return nil, errx.ToolExecution(NodeTools, err)
		}

		next := st.Clone()
		next.Messages = append(next.Messages, ToolResultMessages(st.ToolCalls, results)...)
		if err := cfg.Manager.Save(ctx, next); err != nil {
			return nil, err
		}

		logx.Ctx(ctx).Debug().
			Str("node", NodeTools).
			Int("iteration", next.Iteration).
			Int("tool_calls", len(st.ToolCalls)).
			Msg("tools turn")
		return next, nil
	}), nil
}

// ToolResultMessages pairs tool outputs with their calls, in call order.
func ToolResultMessages(calls []model.ToolCall, results []*schema.Message) []model.Message {
	byID := make(map[string]string, len(results))
	for _, r := range results {
		if r != nil {
			byID[r.ToolCallID] = r.Content
		}
	}
	out := make([]model.Message, 0, len(calls))
	for _, c := range calls {
		content, ok := byID[c.ID]
		if !ok {
			content = tools.ErrorResult(c.Name, fmt.Errorf("no result for call %s", c.ID))
		}
		out = append(out, model.Message{
			Role:       model.RoleTool,
			Content:    content,
			ToolCallID: c.ID,
			ToolName:   c.Name,
		})
	}
	return out
}

// trimArguments trims top-level string arguments; anything unparseable is
// passed through for the tool to reject.
func trimArguments(arguments string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments
	}
	for k, v := range m {
		if s, ok := v.(string); ok {
			m[k] = strings.TrimSpace(s)
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return arguments
	}
	return string(b)
}
