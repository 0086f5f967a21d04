// Package tools holds the retrieval tools the agent can call and the
// registry that exposes them to the tools node.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/mitchellh/mapstructure"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/retrieval"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

// Searcher runs a hybrid query. *retrieval.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, q retrieval.Query) (*retrieval.Result, error)
}

// Tool is an invokable tool with a static manifest.
type Tool interface {
	tool.InvokableTool
	Manifest() model.ToolManifest
}

// Registry is the immutable set of tools available to the agent.
type Registry struct {
	tools   map[string]Tool
	order   []string
	sink    *telemetry.Sink
	metrics *telemetry.Metrics
}

// NewRegistry validates the manifests of tools and indexes them by name.
func NewRegistry(sink *telemetry.Sink, metrics *telemetry.Metrics, tools ...Tool) (*Registry, error) {
	manifests := make([]model.ToolManifest, 0, len(tools))
	for _, t := range tools {
		manifests = append(manifests, t.Manifest())
	}
	if err := ValidateManifests(manifests); err != nil {
		return nil, fmt.Errorf("invalid tool manifests: %w", err)
	}

	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		order:   make([]string, 0, len(tools)),
		sink:    sink,
		metrics: metrics,
	}
	for _, t := range tools {
		name := t.Manifest().Name
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// NewRetrievalRegistry builds the default item and review search tools.
func NewRetrievalRegistry(searcher Searcher, cfg model.RetrievalConfig, sink *telemetry.Sink, metrics *telemetry.Metrics) (*Registry, error) {
	return NewRegistry(sink, metrics,
		NewItemSearchTool(searcher, cfg),
		NewReviewSearchTool(searcher, cfg),
	)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Manifests returns the manifests in registration order.
func (r *Registry) Manifests() []model.ToolManifest {
	out := make([]model.ToolManifest, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Manifest())
	}
	return out
}

// BaseTools returns the tools wrapped so that a failing call yields an
// error-bearing result instead of aborting the batch.
func (r *Registry) BaseTools() []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, &guardedTool{Tool: r.tools[name], sink: r.sink, metrics: r.metrics})
	}
	return out
}

type guardedTool struct {
	Tool
	sink    *telemetry.Sink
	metrics *telemetry.Metrics
}

func (g *guardedTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	name := g.Manifest().Name
	start := time.Now()
	ctx, span := g.sink.Start(ctx, name, telemetry.KindTool)

	out, err := g.Tool.InvokableRun(ctx, argumentsInJSON, opts...)
	g.metrics.ToolCall(name, time.Since(start), err)
	span.End(err, map[string]any{"arguments": argumentsInJSON})
	if err != nil {
		logx.Ctx(ctx).Warn().Err(err).Str("tool_name", name).Msg("tool call failed")
		return ErrorResult(name, err), nil
	}
	return out, nil
}

// ErrorResult is the tool message content reported for a failed call.
func ErrorResult(name string, err error) string {
	b, _ := json.Marshal(map[string]string{
		"error":   "tool_execution_error",
		"name":    name,
		"message": err.Error(),
	})
	return string(b)
}

// UnknownToolResult is the tool message content reported for a call to an
// undeclared tool.
func UnknownToolResult(name string) string {
	b, _ := json.Marshal(map[string]string{
		"error": "unknown_tool",
		"name":  name,
	})
	return string(b)
}

// decodeArgs checks required arguments, applies manifest defaults and
// decodes the result into out. Numbers and strings are coerced where the
// target type needs it.
func decodeArgs(m model.ToolManifest, argumentsInJSON string, out any) error {
	args := map[string]any{}
	if s := strings.TrimSpace(argumentsInJSON); s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &args); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}
	for _, name := range m.Required {
		if v, ok := args[name]; !ok || v == nil {
			return fmt.Errorf("missing required argument %q", name)
		}
	}
	for name, p := range m.Parameters {
		if v, ok := args[name]; (!ok || v == nil) && p.Default != nil {
			args[name] = p.Default
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// ToolCallMessage builds the assistant message carrying calls for the tools node.
func ToolCallMessage(calls []model.ToolCall) (*schema.Message, error) {
	out := make([]schema.ToolCall, 0, len(calls))
	for _, c := range calls {
		args, err := json.Marshal(c.Arguments)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments of %s: %w", c.ID, err)
		}
		out = append(out, schema.ToolCall{
			ID:       c.ID,
			Type:     "function",
			Function: schema.FunctionCall{Name: c.Name, Arguments: string(args)},
		})
	}
	return schema.AssistantMessage("", out), nil
}
