package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
)

// NewAllCallbacks aggregates all observer handlers (nodes, model, tools,
// prompt) into one callbacks.Handler. Attach it via compose.WithCallbacks.
func NewAllCallbacks(sink *telemetry.Sink) einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		Lambda(newNodeHandler(sink)).
		ChatModel(newModelHandler()).
		Tool(newToolHandler()).
		Prompt(newPromptHandler()).
		Handler()
}
