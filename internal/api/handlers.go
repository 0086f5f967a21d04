package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

const maxBodyBytes = 1 << 20

const (
	statusSuccess = "success"
	statusError   = "error"
)

type ragRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id"`
}

type ragResponse struct {
	RequestID     string            `json:"request_id"`
	Answer        string            `json:"answer"`
	UsedImageURLs []model.UsedImage `json:"used_image_urls"`
	TraceID       string            `json:"trace_id"`
}

type feedbackRequest struct {
	TraceID            string `json:"trace_id"`
	ThreadID           string `json:"thread_id"`
	FeedbackScore      *int   `json:"feedback_score"`
	FeedbackText       string `json:"feedback_text"`
	FeedbackSourceType string `json:"feedback_source_type"`
}

type feedbackResponse struct {
	Status   string              `json:"status"`
	Error    *errx.EnvelopeError `json:"error,omitempty"`
	TraceID  string              `json:"trace_id,omitempty"`
	ThreadID string              `json:"thread_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRAG(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ragRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, "", "")
		return
	}

	traceID := telemetry.TraceID(ctx)
	if traceID == "" {
		traceID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	ctx = logx.WithFields(ctx, logx.Fields{ThreadID: req.ThreadID, TraceID: traceID})

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	res, err := s.runner.Invoke(ctx, model.QueryInput{ThreadID: req.ThreadID, Query: req.Query, TraceID: traceID})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errx.New(err, http.StatusGatewayTimeout, "request timed out")
		}
		writeError(ctx, w, err, traceID, req.ThreadID)
		return
	}

	used := res.UsedImageURLs
	if used == nil {
		used = []model.UsedImage{}
	}
	writeJSON(w, http.StatusOK, ragResponse{
		RequestID:     requestIDFrom(r),
		Answer:        res.Answer,
		UsedImageURLs: used,
		TraceID:       res.TraceID,
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFeedbackError(ctx, w, err, "", "")
		return
	}
	if err := validateFeedback(&req); err != nil {
		writeFeedbackError(ctx, w, err, req.TraceID, req.ThreadID)
		return
	}

	ctx = logx.WithFields(ctx, logx.Fields{ThreadID: req.ThreadID, TraceID: req.TraceID})
	err := s.feedback.Submit(ctx, model.Feedback{
		TraceID:            req.TraceID,
		ThreadID:           req.ThreadID,
		FeedbackScore:      req.FeedbackScore,
		FeedbackText:       req.FeedbackText,
		FeedbackSourceType: req.FeedbackSourceType,
	})
	if err != nil {
		writeFeedbackError(ctx, w, errx.Persistence(err), req.TraceID, req.ThreadID)
		return
	}
	logx.Ctx(ctx).Info().Msg("feedback submitted")
	writeJSON(w, http.StatusOK, feedbackResponse{Status: statusSuccess})
}

func validateFeedback(req *feedbackRequest) error {
	req.TraceID = strings.TrimSpace(req.TraceID)
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	if req.TraceID == "" {
		return errx.Validation("trace_id is required")
	}
	if req.ThreadID == "" {
		return errx.Validation("thread_id is required")
	}
	if req.FeedbackScore != nil && *req.FeedbackScore != 0 && *req.FeedbackScore != 1 {
		return errx.Validation("feedback_score must be 0, 1 or null")
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errx.Validation("invalid JSON body: %v", err)
	}
	return nil
}

func writeError(ctx context.Context, w http.ResponseWriter, err error, traceID, threadID string) {
	status := errx.StatusOf(err)
	logError(ctx, status, err)
	writeJSON(w, status, errx.NewEnvelope(err, traceID, threadID))
}

func writeFeedbackError(ctx context.Context, w http.ResponseWriter, err error, traceID, threadID string) {
	status := errx.StatusOf(err)
	logError(ctx, status, err)
	env := errx.NewEnvelope(err, traceID, threadID)
	writeJSON(w, status, feedbackResponse{
		Status:   statusError,
		Error:    &env.Error,
		TraceID:  env.TraceID,
		ThreadID: env.ThreadID,
	})
}

func logError(ctx context.Context, status int, err error) {
	ev := logx.Ctx(ctx).Warn()
	if status >= http.StatusInternalServerError {
		ev = logx.Ctx(ctx).Error()
	}
	ev.Err(err).Str("code", errx.CodeOf(err)).Int("status", status).Msg("request failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("encode response")
	}
}
