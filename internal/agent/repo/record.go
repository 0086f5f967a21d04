// Package repo implements the checkpoint and feedback stores.
package repo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
)

// checkpointRecord is the stored form of a thread snapshot.
type checkpointRecord struct {
	ThreadID  string          `json:"thread_id"`
	Version   int64           `json:"version"`
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// encodeRecord serializes state as it will read back once stored under version.
func encodeRecord(threadID string, state *model.ConversationState, version int64) ([]byte, error) {
	st, err := marshalState(state, version)
	if err != nil {
		return nil, err
	}
	return json.Marshal(checkpointRecord{
		ThreadID:  threadID,
		Version:   version,
		State:     st,
		UpdatedAt: state.UpdatedAt,
	})
}

func marshalState(state *model.ConversationState, version int64) ([]byte, error) {
	cp := *state
	cp.Version = version
	b, err := json.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return b, nil
}

func decodeRecord(raw []byte) (*checkpointRecord, error) {
	var rec checkpointRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &rec, nil
}

func (r *checkpointRecord) state() (*model.ConversationState, error) {
	return unmarshalState(r.State, r.Version)
}

func unmarshalState(raw []byte, version int64) (*model.ConversationState, error) {
	var st model.ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	st.Version = version
	return &st, nil
}
