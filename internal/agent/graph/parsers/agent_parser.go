package parsers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxToolCalls  = 16
	maxReferenced = 50
	maxErrSnippet = 200
)

type rawToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rawReferenced struct {
	ID          json.RawMessage `json:"id"`
	Description string          `json:"description"`
}

type rawResponse struct {
	Answer              *string         `json:"answer"`
	ToolCalls           []rawToolCall   `json:"tool_calls"`
	FinalAnswer         *bool           `json:"final_answer"`
	RetrievedContextIDs []rawReferenced `json:"retrieved_context_ids"`
}

// ParseAgentResponse validates raw model output against the agent response
// schema. Any failure is returned as a model_output_schema_error; the
// caller decides whether to re-prompt.
func ParseAgentResponse(content string) (resp *model.AgentResponse, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "agent_parser").Msgf("panic recovered: %v", r)
			resp = nil
			err = errx.ModelOutputSchema(fmt.Errorf("agent parser panic"))
		}
	}()

	if len(content) > maxContentLen {
		return nil, schemaErr("output too large (%d bytes)", len(content))
	}
	if !utf8.ValidString(content) {
		return nil, schemaErr("output is not valid utf8")
	}

	body := extractJSON(content)
	if body == "" {
		return nil, schemaErr("no JSON object in output: %q", snippet(content))
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	var raw rawResponse
	if err := dec.Decode(&raw); err != nil {
		return nil, schemaErr("decode: %v in %q", err, snippet(body))
	}
	if dec.More() {
		return nil, schemaErr("trailing data after JSON object")
	}

	if raw.Answer == nil {
		return nil, schemaErr("missing field answer")
	}
	if raw.FinalAnswer == nil {
		return nil, schemaErr("missing field final_answer")
	}
	if len(raw.ToolCalls) > maxToolCalls {
		return nil, schemaErr("too many tool calls (%d)", len(raw.ToolCalls))
	}
	if len(raw.RetrievedContextIDs) > maxReferenced {
		return nil, schemaErr("too many referenced items (%d)", len(raw.RetrievedContextIDs))
	}

	out := &model.AgentResponse{
		Answer:              strings.TrimSpace(*raw.Answer),
		FinalAnswer:         *raw.FinalAnswer,
		ToolCalls:           make([]model.ToolCallRequest, 0, len(raw.ToolCalls)),
		RetrievedContextIDs: make([]model.ReferencedItem, 0, len(raw.RetrievedContextIDs)),
	}
	for i, tc := range raw.ToolCalls {
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			return nil, schemaErr("tool_calls[%d]: name is required", i)
		}
		args := tc.Arguments
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCallRequest{Name: name, Arguments: args})
	}
	for i, ref := range raw.RetrievedContextIDs {
		id, err := parseID(ref.ID)
		if err != nil {
			return nil, schemaErr("retrieved_context_ids[%d]: %v", i, err)
		}
		out.RetrievedContextIDs = append(out.RetrievedContextIDs, model.ReferencedItem{
			ID:          id,
			Description: strings.TrimSpace(ref.Description),
		})
	}
	if !out.FinalAnswer && len(out.ToolCalls) == 0 && out.Answer == "" {
		return nil, schemaErr("empty answer without tool calls")
	}
	return out, nil
}

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			// drop the language tag line
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("id is required")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", errors.New("id is empty")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("id must be a string or number, got %s", snippet(string(raw)))
}

func schemaErr(format string, args ...any) *errx.AppError {
	return errx.ModelOutputSchema(fmt.Errorf(format, args...))
}

func snippet(s string) string {
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet] + "..."
}
