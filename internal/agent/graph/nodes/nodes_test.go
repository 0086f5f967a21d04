package nodes

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
)

func TestRoute(t *testing.T) {
	calls := []model.ToolCall{{ID: "call_1_0", Name: "get_formatted_item_context"}}

	tests := []struct {
		name  string
		state model.ConversationState
		want  string
	}{
		{"final answer ends", model.ConversationState{FinalAnswer: true, Iteration: 1, ToolCalls: calls}, compose.END},
		{"cap reached ends", model.ConversationState{Iteration: 3, ToolCalls: calls}, compose.END},
		{"pending tools", model.ConversationState{Iteration: 2, ToolCalls: calls}, NodeTools},
		{"nothing to do", model.ConversationState{Iteration: 1}, compose.END},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.state
			assert.Equal(t, tt.want, Route(&st, 2))
		})
	}

	t.Run("non-positive cap falls back to default", func(t *testing.T) {
		st := model.ConversationState{Iteration: DefaultMaxIterations, ToolCalls: calls}
		assert.Equal(t, NodeTools, Route(&st, 0))
		st.Iteration++
		assert.Equal(t, compose.END, Route(&st, -1))
	})
}

func TestApplyAgentResponseToolTurn(t *testing.T) {
	st := model.NewConversationState("t1")
	st.Messages = append(st.Messages, model.Message{Role: model.RoleUser, Content: "red shoes"})
	st.RetrievedContextIDs = []model.ReferencedItem{{ID: "OLD"}}

	route := ApplyAgentResponse(st, &model.AgentResponse{
		Answer: "searching",
		ToolCalls: []model.ToolCallRequest{
			{Name: "get_formatted_item_context", Arguments: map[string]any{"query": "red shoes"}},
			{Name: "get_formatted_reviews_context", Arguments: map[string]any{"query": "comfort", "item_list": []any{"B01"}}},
		},
	}, 2)

	assert.Equal(t, NodeTools, route)
	assert.Equal(t, 1, st.Iteration)
	assert.Equal(t, "searching", st.Answer)
	assert.Empty(t, st.RetrievedContextIDs)
	require.Len(t, st.ToolCalls, 2)
	assert.Equal(t, "call_1_0", st.ToolCalls[0].ID)
	assert.Equal(t, "call_1_1", st.ToolCalls[1].ID)

	last := st.LastMessage()
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, st.ToolCalls, last.ToolCalls)
}

func TestApplyAgentResponseFinalDropsToolCalls(t *testing.T) {
	st := model.NewConversationState("t1")
	st.Iteration = 1

	route := ApplyAgentResponse(st, &model.AgentResponse{
		Answer:              "B01 fits.",
		FinalAnswer:         true,
		ToolCalls:           []model.ToolCallRequest{{Name: "get_formatted_item_context"}},
		RetrievedContextIDs: []model.ReferencedItem{{ID: "B01", Description: "red"}},
	}, 2)

	assert.Equal(t, compose.END, route)
	assert.Equal(t, 2, st.Iteration)
	assert.True(t, st.FinalAnswer)
	assert.Empty(t, st.ToolCalls)
	assert.Equal(t, []model.ReferencedItem{{ID: "B01", Description: "red"}}, st.RetrievedContextIDs)
	assert.Empty(t, st.LastMessage().ToolCalls)
	assert.True(t, st.LastMessage().FinalAnswer)
}

func TestApplyAgentResponseAtCapDropsToolCalls(t *testing.T) {
	st := model.NewConversationState("t1")
	st.Iteration = 2

	route := ApplyAgentResponse(st, &model.AgentResponse{
		Answer:    "still looking",
		ToolCalls: []model.ToolCallRequest{{Name: "get_formatted_item_context", Arguments: map[string]any{"query": "x"}}},
	}, 2)

	assert.Equal(t, compose.END, route)
	assert.Equal(t, 3, st.Iteration)
	assert.False(t, st.FinalAnswer)
	assert.Empty(t, st.ToolCalls)
	assert.Equal(t, "still looking", st.LastMessage().Content)
	assert.Empty(t, st.LastMessage().ToolCalls)
	assert.False(t, st.LastMessage().FinalAnswer)
}

func TestAgentCondition(t *testing.T) {
	cond := NewAgentCondition(2)
	next, err := cond(context.Background(), &model.ConversationState{
		Iteration: 1,
		ToolCalls: []model.ToolCall{{ID: "call_1_0", Name: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, NodeTools, next)
}

func TestToolResultMessagesKeepCallOrder(t *testing.T) {
	calls := []model.ToolCall{
		{ID: "call_1_0", Name: "a"},
		{ID: "call_1_1", Name: "b"},
		{ID: "call_1_2", Name: "c"},
	}
	results := []*schema.Message{
		schema.ToolMessage("from b", "call_1_1"),
		schema.ToolMessage("from a", "call_1_0"),
		nil,
	}

	msgs := ToolResultMessages(calls, results)
	require.Len(t, msgs, 3)
	assert.Equal(t, "from a", msgs[0].Content)
	assert.Equal(t, "a", msgs[0].ToolName)
	assert.Equal(t, "from b", msgs[1].Content)
	assert.Equal(t, "call_1_2", msgs[2].ToolCallID)
	assert.Contains(t, msgs[2].Content, `"error":"tool_execution_error"`)
	for _, m := range msgs {
		assert.Equal(t, model.RoleTool, m.Role)
	}
}

func TestTrimArguments(t *testing.T) {
	assert.JSONEq(t, `{"query":"red shoes","top_k":3}`, trimArguments(`{"query":"  red shoes\n","top_k":3}`))
	assert.Equal(t, "not json", trimArguments("not json"))
}
