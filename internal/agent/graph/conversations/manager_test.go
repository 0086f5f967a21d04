package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/repo"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
)

type brokenStore struct{}

func (brokenStore) Load(context.Context, string) (*model.ConversationState, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (brokenStore) Save(context.Context, string, *model.ConversationState) error {
	return errors.New("dial tcp: connection refused")
}

func (brokenStore) Close() error { return nil }

var manifests = []model.ToolManifest{{Name: "get_formatted_item_context", Description: "items"}}

func TestInitializeStartsQuery(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryCheckpointStore()
	m := NewManager(store, nil)

	prev := model.NewConversationState("t1")
	prev.Messages = []model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
	}
	prev.Iteration = 3
	prev.FinalAnswer = true
	prev.Answer = "hello"
	prev.ToolCalls = []model.ToolCall{{ID: "call_3_0", Name: "x"}}
	prev.RetrievedContextIDs = []model.ReferencedItem{{ID: "B01"}}
	require.NoError(t, store.Save(ctx, "t1", prev))

	st, err := m.Initialize(ctx, "t1", "red shoes", manifests)
	require.NoError(t, err)

	assert.Equal(t, 0, st.Iteration)
	assert.False(t, st.FinalAnswer)
	assert.Empty(t, st.Answer)
	assert.Empty(t, st.ToolCalls)
	assert.Equal(t, manifests, st.AvailableTools)
	require.Len(t, st.Messages, 3)
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "red shoes"}, st.Messages[2])
	assert.Equal(t, int64(2), st.Version)
	assert.False(t, st.UpdatedAt.IsZero())
	assert.Equal(t, time.UTC, st.UpdatedAt.Location())

	stored, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, st, stored)
}

func TestInitializeFreshThread(t *testing.T) {
	m := NewManager(repo.NewMemoryCheckpointStore(), nil)

	st, err := m.Initialize(context.Background(), "new", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", st.ThreadID)
	assert.Len(t, st.Messages, 1)
	assert.Equal(t, int64(1), st.Version)
}

func TestStoreFailuresArePersistenceErrors(t *testing.T) {
	m := NewManager(brokenStore{}, nil)

	_, err := m.Load(context.Background(), "t1")
	assert.ErrorIs(t, err, errx.ErrPersistence)

	err = m.Save(context.Background(), model.NewConversationState("t1"))
	assert.ErrorIs(t, err, errx.ErrPersistence)
}

func TestStaleSaveIsConflict(t *testing.T) {
	ctx := context.Background()
	m := NewManager(repo.NewMemoryCheckpointStore(), nil)

	st, err := m.Initialize(ctx, "t1", "q", nil)
	require.NoError(t, err)
	stale := st.Clone()
	require.NoError(t, m.Save(ctx, st))

	err = m.Save(ctx, stale)
	assert.ErrorIs(t, err, errx.ErrConflict)
}

func TestLockSerializesThread(t *testing.T) {
	m := NewManager(repo.NewMemoryCheckpointStore(), nil)

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("t1")
			defer unlock()
			n := active.Add(1)
			for {
				cur := maxActive.Load()
				if n <= cur || maxActive.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())

	// other threads are not blocked
	unlock := m.Lock("t1")
	done := make(chan struct{})
	go func() {
		m.Lock("t2")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on t2 blocked by t1")
	}
	unlock()
	unlock()
	assert.Empty(t, m.locks.locks)
}

func TestBuildAgentContext(t *testing.T) {
	st := model.NewConversationState("t1")
	st.Messages = []model.Message{
		{Role: model.RoleUser, Content: "red shoes"},
		{Role: model.RoleAssistant, Content: "searching", ToolCalls: []model.ToolCall{
			{ID: "call_1_0", Name: "get_formatted_item_context", Arguments: map[string]any{"query": "red shoes"}},
		}},
		{Role: model.RoleTool, Content: "- B01, price: 10, red\n", ToolCallID: "call_1_0", ToolName: "get_formatted_item_context"},
		{Role: model.RoleAssistant, Content: "B01.", FinalAnswer: true},
		{Role: model.RoleUser, Content: "and boots?"},
		{Role: model.RoleAssistant, Content: "still looking"},
	}

	msgs := BuildAgentContext("SYSTEM", st)
	require.Len(t, msgs, 7)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "SYSTEM", msgs[0].Content)
	assert.Equal(t, schema.User, msgs[1].Role)

	assert.Equal(t, schema.Assistant, msgs[2].Role)
	var replay map[string]any
	require.NoError(t, json.Unmarshal([]byte(msgs[2].Content), &replay))
	assert.Equal(t, "searching", replay["answer"])
	assert.Equal(t, false, replay["final_answer"])
	assert.Len(t, replay["tool_calls"], 1)

	assert.Equal(t, schema.User, msgs[3].Role)
	assert.Equal(t, "Tool result for call_1_0 (get_formatted_item_context):\n- B01, price: 10, red", msgs[3].Content)

	require.NoError(t, json.Unmarshal([]byte(msgs[4].Content), &replay))
	assert.Equal(t, true, replay["final_answer"])

	// capped turn without tool calls is not final
	replay = nil
	require.NoError(t, json.Unmarshal([]byte(msgs[6].Content), &replay))
	assert.Equal(t, false, replay["final_answer"])
	assert.Empty(t, replay["tool_calls"])
}
