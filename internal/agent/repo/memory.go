package repo

import (
	"context"
	"sync"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
)

// MemoryCheckpointStore keeps checkpoints in process. Snapshots are stored
// serialized so callers never share state with the store.
type MemoryCheckpointStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{records: make(map[string][]byte)}
}

func (m *MemoryCheckpointStore) Load(_ context.Context, threadID string) (*model.ConversationState, error) {
	m.mu.Lock()
	raw, ok := m.records[threadID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, errx.Persistence(err)
	}
	return rec.state()
}

func (m *MemoryCheckpointStore) Save(_ context.Context, threadID string, state *model.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	if raw, ok := m.records[threadID]; ok {
		rec, err := decodeRecord(raw)
		if err != nil {
			return errx.Persistence(err)
		}
		current = rec.Version
	}
	if current != state.Version {
		return errx.Conflict(threadID)
	}

	b, err := encodeRecord(threadID, state, current+1)
	if err != nil {
		return errx.Persistence(err)
	}
	m.records[threadID] = b
	state.Version = current + 1
	return nil
}

func (m *MemoryCheckpointStore) Close() error {
	return nil
}

var _ model.CheckpointStore = (*MemoryCheckpointStore)(nil)
