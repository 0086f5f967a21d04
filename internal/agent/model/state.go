package model

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a thread's history. Messages are never mutated
// after they are appended.
type Message struct {
	Role        Role       `json:"role"`
	Content     string     `json:"content"`
	ToolCallID  string     `json:"tool_call_id,omitempty"`
	ToolName    string     `json:"tool_name,omitempty"`
	ToolCalls   []ToolCall `json:"tool_calls,omitempty"`
	FinalAnswer bool       `json:"final_answer,omitempty"`
}

// ToolCall is a tool invocation requested by the agent. ID is unique within a turn.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ReferencedItem is a corpus item the agent used to build its answer.
type ReferencedItem struct {
	ID          string `json:"id" jsonschema:"description=Corpus id of the item exactly as it appeared in the tool output"`
	Description string `json:"description" jsonschema:"description=Short description of the item and why it is relevant"`
}

// ConversationState is the durable per-thread record driving the agent loop.
//
// Merge rules applied after each step:
//   - Messages: append only.
//   - Answer, FinalAnswer: replaced by every agent turn.
//   - Iteration: +1 per agent turn, reset to 0 when a new query starts.
//   - ToolCalls: replaced by every agent turn, emptied when the turn is final.
//   - RetrievedContextIDs: replaced by every agent turn.
//   - AvailableTools: set when the query starts, read-only afterwards.
type ConversationState struct {
	ThreadID            string           `json:"thread_id"`
	Version             int64            `json:"version"`
	Messages            []Message        `json:"messages"`
	Answer              string           `json:"answer"`
	Iteration           int              `json:"iteration"`
	FinalAnswer         bool             `json:"final_answer"`
	AvailableTools      []ToolManifest   `json:"available_tools"`
	ToolCalls           []ToolCall       `json:"tool_calls"`
	RetrievedContextIDs []ReferencedItem `json:"retrieved_context_ids"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// NewConversationState returns an empty state for threadID.
func NewConversationState(threadID string) *ConversationState {
	return &ConversationState{
		ThreadID:            threadID,
		Messages:            []Message{},
		ToolCalls:           []ToolCall{},
		RetrievedContextIDs: []ReferencedItem{},
	}
}

// Clone returns a deep copy of the state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		// every field is plain data; marshal cannot fail
		panic(err)
	}
	out := &ConversationState{}
	if err := json.Unmarshal(b, out); err != nil {
		panic(err)
	}
	return out
}

// LastMessage returns the most recent message or nil.
func (s *ConversationState) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// AgentResponse is the structured record the generative model must produce
// on every agent turn.
type AgentResponse struct {
	Answer              string            `json:"answer" jsonschema:"description=Answer to the user or a short note on what is being looked up"`
	ToolCalls           []ToolCallRequest `json:"tool_calls" jsonschema:"description=Tools to call before answering; empty when final_answer is true"`
	FinalAnswer         bool              `json:"final_answer" jsonschema:"description=True when the answer is complete and no more tools are needed"`
	RetrievedContextIDs []ReferencedItem  `json:"retrieved_context_ids" jsonschema:"description=Items from the tool outputs used in the answer"`
}

// ToolCallRequest is a tool call as emitted by the model, before an id is assigned.
type ToolCallRequest struct {
	Name      string         `json:"name" jsonschema:"description=Name of one of the available tools"`
	Arguments map[string]any `json:"arguments" jsonschema:"description=Arguments keyed by parameter name"`
}

// QueryInput is the public input of one request.
type QueryInput struct {
	ThreadID string `json:"thread_id"`
	Query    string `json:"query"`
	TraceID  string `json:"trace_id,omitempty"`
}

// UsedImage is an enriched referenced item returned to the caller.
type UsedImage struct {
	ImageURL    string   `json:"image_url"`
	Price       *float64 `json:"price"`
	Description string   `json:"description"`
}

// RAGResult is the payload built from a terminal state.
type RAGResult struct {
	Answer        string      `json:"answer"`
	UsedImageURLs []UsedImage `json:"used_image_urls"`
	TraceID       string      `json:"trace_id"`
	Iterations    int         `json:"-"`
}
