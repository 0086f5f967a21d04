package nodes

import (
	"github.com/cloudwego/eino/compose"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
)

// Node names
const (
	NodeAgent = "agent"
	NodeTools = "tools"
)

// DefaultMaxIterations is the number of agent turns after which the loop
// stops even when tools are still requested.
const DefaultMaxIterations = 2

func normalizeMaxIterations(n int) int {
	if n <= 0 {
		return DefaultMaxIterations
	}
	return n
}

// Route decides the step after an agent turn. Checks run in priority order:
// a final answer ends the loop, then the iteration cap, then pending tool
// calls send the loop to the tools node. Anything else ends the loop.
func Route(st *model.ConversationState, maxIterations int) string {
	switch {
	case st.FinalAnswer:
		return compose.END
	case st.Iteration > normalizeMaxIterations(maxIterations):
		return compose.END
	case len(st.ToolCalls) > 0:
		return NodeTools
	default:
		return compose.END
	}
}
