package repo

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

const DefaultFeedbackStream = "feedback"

// RedisFeedbackRepository appends feedback to a Redis stream.
type RedisFeedbackRepository struct {
	rdb    redis.Cmdable
	stream string
}

func NewRedisFeedbackRepository(rdb redis.Cmdable, stream string) *RedisFeedbackRepository {
	if stream == "" {
		stream = DefaultFeedbackStream
	}
	return &RedisFeedbackRepository{rdb: rdb, stream: stream}
}

func (r *RedisFeedbackRepository) Submit(ctx context.Context, fb model.Feedback) error {
	score := ""
	if fb.FeedbackScore != nil {
		score = strconv.Itoa(*fb.FeedbackScore)
	}
	err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"trace_id":             fb.TraceID,
			"thread_id":            fb.ThreadID,
			"feedback_score":       score,
			"feedback_text":        fb.FeedbackText,
			"feedback_source_type": fb.FeedbackSourceType,
			"submitted_at":         time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		logx.Error().Err(err).Str("stream", r.stream).Str("trace_id", fb.TraceID).Msg("failed to append feedback")
		return errx.WrapRedis(err)
	}
	return nil
}

// MemoryFeedbackRepository keeps feedback in process.
type MemoryFeedbackRepository struct {
	mu      sync.Mutex
	entries []model.Feedback
}

func NewMemoryFeedbackRepository() *MemoryFeedbackRepository {
	return &MemoryFeedbackRepository{}
}

func (m *MemoryFeedbackRepository) Submit(_ context.Context, fb model.Feedback) error {
	m.mu.Lock()
	m.entries = append(m.entries, fb)
	m.mu.Unlock()
	return nil
}

// Entries returns a copy of the stored feedback.
func (m *MemoryFeedbackRepository) Entries() []model.Feedback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Feedback(nil), m.entries...)
}

var (
	_ model.FeedbackRepository = (*RedisFeedbackRepository)(nil)
	_ model.FeedbackRepository = (*MemoryFeedbackRepository)(nil)
)
