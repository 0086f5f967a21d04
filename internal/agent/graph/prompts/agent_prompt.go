package prompts

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/invopop/jsonschema"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/graph/tools"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
)

//go:embed template/agent_prompt.txt
var agentSystemPrompt string

var (
	schemaOnce sync.Once
	schemaText string
	schemaErr  error
)

// ResponseSchema returns the JSON schema of model.AgentResponse.
func ResponseSchema() (string, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
		s := r.Reflect(&model.AgentResponse{})
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			schemaErr = fmt.Errorf("marshal response schema: %w", err)
			return
		}
		schemaText = string(b)
	})
	return schemaText, schemaErr
}

// RenderAgentSystem renders the agent system prompt and triggers prompt callbacks.
func RenderAgentSystem(ctx context.Context, config model.ResponsePromptConfig, manifests []model.ToolManifest) (string, error) {
	toolsJSON, err := json.MarshalIndent(manifests, "", "  ")
	if err != nil {
		return "", fmt.Errorf("agent prompt tools: %w", err)
	}
	responseSchema, err := ResponseSchema()
	if err != nil {
		return "", err
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(agentSystemPrompt),
	)
	vars := map[string]any{
		"BusinessType": config.BusinessType,
		"BusinessName": config.BusinessName,
		"ItemTool":     tools.ToolItemSearch,
		"ReviewTool":   tools.ToolReviewSearch,
		"Tools":        string(toolsJSON),
		"Schema":       responseSchema,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("agent prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("agent prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// SchemaReminder is appended to the request after output that failed to
// parse.
func SchemaReminder(problem error) string {
	return fmt.Sprintf("Your previous reply could not be used: %v. "+
		"Reply again with only a JSON object that validates against the schema in the system prompt.", problem)
}
