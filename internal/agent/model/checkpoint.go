package model

import "context"

// CheckpointStore persists the latest ConversationState per thread.
type CheckpointStore interface {
	// Load returns the latest snapshot for threadID, or (nil, nil) when the
	// thread has never been saved.
	Load(ctx context.Context, threadID string) (*ConversationState, error)

	// Save overwrites the snapshot for threadID. The write only succeeds when
	// state.Version equals the stored version; on success state.Version is set
	// to the new version.
	Save(ctx context.Context, threadID string, state *ConversationState) error

	// Close releases the store's resources.
	Close() error
}

// Feedback is a user rating of one answer.
type Feedback struct {
	TraceID            string `json:"trace_id"`
	ThreadID           string `json:"thread_id"`
	FeedbackScore      *int   `json:"feedback_score"`
	FeedbackText       string `json:"feedback_text"`
	FeedbackSourceType string `json:"feedback_source_type"`
}

// FeedbackRepository stores submitted feedback.
type FeedbackRepository interface {
	Submit(ctx context.Context, fb Feedback) error
}
