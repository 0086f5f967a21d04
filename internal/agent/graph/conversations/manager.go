package conversations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

// Manager owns the lifecycle of conversation state: loading, starting a
// new query and checkpointing after every graph step.
type Manager struct {
	store   model.CheckpointStore
	metrics *telemetry.Metrics
	locks   *threadLocks
	now     func() time.Time
}

func NewManager(store model.CheckpointStore, metrics *telemetry.Metrics) *Manager {
	return &Manager{
		store:   store,
		metrics: metrics,
		locks:   newThreadLocks(),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Lock serializes loops on threadID within this process. The returned
// function releases the lock.
func (m *Manager) Lock(threadID string) func() {
	return m.locks.lock(threadID)
}

// Load returns the latest snapshot of threadID or a fresh state.
func (m *Manager) Load(ctx context.Context, threadID string) (*model.ConversationState, error) {
	st, err := m.store.Load(ctx, threadID)
	if err != nil {
		return nil, errx.Persistence(err)
	}
	if st == nil {
		logx.Ctx(ctx).Debug().Msg("no checkpoint, starting fresh thread")
		return model.NewConversationState(threadID), nil
	}
	return st, nil
}

// Initialize loads threadID, starts a new query on it and persists the
// result before any agent step runs.
func (m *Manager) Initialize(ctx context.Context, threadID, query string, manifests []model.ToolManifest) (*model.ConversationState, error) {
	st, err := m.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	st.Iteration = 0
	st.FinalAnswer = false
	st.Answer = ""
	st.ToolCalls = []model.ToolCall{}
	st.AvailableTools = append([]model.ToolManifest(nil), manifests...)
	st.Messages = append(st.Messages, model.Message{Role: model.RoleUser, Content: query})

	if err := m.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Save checkpoints st. Failures are fatal to the request.
func (m *Manager) Save(ctx context.Context, st *model.ConversationState) error {
	st.UpdatedAt = m.now()
	err := m.store.Save(ctx, st.ThreadID, st)
	m.metrics.CheckpointWrite(err)
	if err != nil {
		logx.Ctx(ctx).Error().Err(err).Int64("version", st.Version).Msg("checkpoint write failed")
		return errx.Persistence(err)
	}
	logx.Ctx(ctx).Debug().Int64("version", st.Version).Int("iteration", st.Iteration).Msg("checkpoint saved")
	return nil
}

// BuildAgentContext renders the system prompt and the thread history as the
// request for the agent model. Assistant turns are replayed in the response
// format the model is asked to produce; tool results are replayed as user
// turns tagged with their call id.
func BuildAgentContext(systemPrompt string, st *model.ConversationState) []*schema.Message {
	messages := make([]*schema.Message, 0, len(st.Messages)+1)
	messages = append(messages, schema.SystemMessage(systemPrompt))

	for _, msg := range st.Messages {
		switch msg.Role {
		case model.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case model.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(replayAssistant(msg), nil))
		case model.RoleTool:
			messages = append(messages, schema.UserMessage(
				fmt.Sprintf("Tool result for %s (%s):\n%s", msg.ToolCallID, msg.ToolName, strings.TrimSpace(msg.Content)),
			))
		}
	}
	return messages
}

func replayAssistant(msg model.Message) string {
	calls := make([]model.ToolCallRequest, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, model.ToolCallRequest{Name: tc.Name, Arguments: tc.Arguments})
	}
	b, err := json.Marshal(map[string]any{
		"answer":       msg.Content,
		"tool_calls":   calls,
		"final_answer": msg.FinalAnswer,
	})
	if err != nil {
		return msg.Content
	}
	return string(b)
}

// ====================== Per-thread locks ======================
type threadLock struct {
	mu   sync.Mutex
	refs int
}

type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

func (t *threadLocks) lock(key string) func() {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &threadLock{}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			t.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(t.locks, key)
			}
			t.mu.Unlock()
		})
	}
}
