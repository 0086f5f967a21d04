package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/repo"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	"github.com/Chative-core-poc-v1/shopping-agent/internal/telemetry"
)

type fakeRunner struct {
	res   *model.RAGResult
	err   error
	delay time.Duration
	got   model.QueryInput
	calls int
}

func (f *fakeRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.RAGResult, error) {
	f.calls++
	f.got = in
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.TraceID = in.TraceID
	return &res, nil
}

type failingFeedback struct{}

func (failingFeedback) Submit(context.Context, model.Feedback) error {
	return errx.WrapRedis(errors.New("connection refused"))
}

func newTestServer(runner *fakeRunner, feedback model.FeedbackRepository) (*Server, *telemetry.Metrics) {
	metrics := telemetry.NewMetrics()
	if feedback == nil {
		feedback = repo.NewMemoryFeedbackRepository()
	}
	return NewServer(Config{RequestTimeout: time.Second}, runner, feedback, nil, metrics), metrics
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRAGReturnsAnswer(t *testing.T) {
	price := 39.99
	runner := &fakeRunner{res: &model.RAGResult{
		Answer:        "B01 is red.",
		UsedImageURLs: []model.UsedImage{{ImageURL: "https://img/B01.jpg", Price: &price, Description: "red"}},
	}}
	srv, _ := newTestServer(runner, nil)

	rec := do(t, srv.Routes(), http.MethodPost, "/rag", `{"query":"red shoes","thread_id":"t1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[ragResponse](t, rec)
	assert.Equal(t, "B01 is red.", body.Answer)
	assert.Equal(t, rec.Header().Get(requestIDHeader), body.RequestID)
	assert.NotEmpty(t, body.RequestID)
	assert.Len(t, body.TraceID, 32)
	require.Len(t, body.UsedImageURLs, 1)
	assert.Equal(t, 39.99, *body.UsedImageURLs[0].Price)

	assert.Equal(t, "t1", runner.got.ThreadID)
	assert.Equal(t, "red shoes", runner.got.Query)
	assert.Equal(t, body.TraceID, runner.got.TraceID)
}

func TestRAGKeepsCallerRequestID(t *testing.T) {
	srv, _ := newTestServer(&fakeRunner{res: &model.RAGResult{Answer: "ok"}}, nil)

	rec := do(t, srv.Routes(), http.MethodPost, "/rag", `{"query":"q","thread_id":"t1"}`,
		map[string]string{requestIDHeader: "req-123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))

	body := decode[ragResponse](t, rec)
	assert.Equal(t, "req-123", body.RequestID)
	assert.NotNil(t, body.UsedImageURLs)
}

func TestRAGErrorEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", errx.Validation("thread_id is required"), http.StatusBadRequest, errx.CodeValidation},
		{"schema", errx.ModelOutputSchema(errors.New("bad json")), http.StatusBadGateway, errx.CodeModelOutputSchema},
		{"persistence", errx.Persistence(errors.New("down")), http.StatusServiceUnavailable, errx.CodePersistence},
		{"conflict", errx.Conflict("t1"), http.StatusConflict, errx.CodeConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, errx.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(&fakeRunner{err: tt.err}, nil)

			rec := do(t, srv.Routes(), http.MethodPost, "/rag", `{"query":"q","thread_id":"t9"}`, nil)
			assert.Equal(t, tt.status, rec.Code)

			env := decode[errx.Envelope](t, rec)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
			assert.Equal(t, "t9", env.ThreadID)
			assert.NotEmpty(t, env.TraceID)
		})
	}
}

func TestRAGRejectsMalformedBody(t *testing.T) {
	runner := &fakeRunner{res: &model.RAGResult{}}
	srv, _ := newTestServer(runner, nil)

	rec := do(t, srv.Routes(), http.MethodPost, "/rag", `{"query":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errx.CodeValidation, decode[errx.Envelope](t, rec).Error.Code)
	assert.Zero(t, runner.calls)
}

func TestRAGTimeout(t *testing.T) {
	runner := &fakeRunner{res: &model.RAGResult{}, delay: time.Minute}
	srv := NewServer(Config{RequestTimeout: 20 * time.Millisecond}, runner, repo.NewMemoryFeedbackRepository(), nil, nil)

	rec := do(t, srv.Routes(), http.MethodPost, "/rag", `{"query":"q","thread_id":"t1"}`, nil)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "t1", decode[errx.Envelope](t, rec).ThreadID)
}

func TestSubmitFeedback(t *testing.T) {
	store := repo.NewMemoryFeedbackRepository()
	srv, _ := newTestServer(&fakeRunner{}, store)

	rec := do(t, srv.Routes(), http.MethodPost, "/submit_feedback",
		`{"trace_id":"abc","thread_id":"t1","feedback_score":1,"feedback_text":"great","feedback_source_type":"api"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusSuccess, decode[feedbackResponse](t, rec).Status)

	rec = do(t, srv.Routes(), http.MethodPost, "/submit_feedback",
		`{"trace_id":"abc","thread_id":"t1","feedback_score":null}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 1, *entries[0].FeedbackScore)
	assert.Equal(t, "great", entries[0].FeedbackText)
	assert.Nil(t, entries[1].FeedbackScore)
}

func TestSubmitFeedbackValidation(t *testing.T) {
	store := repo.NewMemoryFeedbackRepository()
	srv, _ := newTestServer(&fakeRunner{}, store)

	for _, body := range []string{
		`{"trace_id":"abc","thread_id":"t1","feedback_score":2}`,
		`{"thread_id":"t1","feedback_score":1}`,
		`{"trace_id":"abc","feedback_score":0}`,
		`not json`,
	} {
		rec := do(t, srv.Routes(), http.MethodPost, "/submit_feedback", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		resp := decode[feedbackResponse](t, rec)
		assert.Equal(t, statusError, resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, errx.CodeValidation, resp.Error.Code)
	}
	assert.Empty(t, store.Entries())

	rec := do(t, srv.Routes(), http.MethodPost, "/submit_feedback", `{"trace_id":" abc ","thread_id":"t1","feedback_score":2}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[feedbackResponse](t, rec)
	assert.Equal(t, "abc", resp.TraceID)
	assert.Equal(t, "t1", resp.ThreadID)
}

func TestSubmitFeedbackStoreFailure(t *testing.T) {
	srv, _ := newTestServer(&fakeRunner{}, failingFeedback{})

	rec := do(t, srv.Routes(), http.MethodPost, "/submit_feedback", `{"trace_id":"abc","thread_id":"t1","feedback_score":0}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[feedbackResponse](t, rec)
	assert.Equal(t, statusError, resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errx.CodePersistence, resp.Error.Code)
	assert.Equal(t, "abc", resp.TraceID)
	assert.Equal(t, "t1", resp.ThreadID)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(&fakeRunner{res: &model.RAGResult{Answer: "ok"}}, nil)
	h := srv.Routes()

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	do(t, h, http.MethodPost, "/rag", `{"query":"q","thread_id":"t1"}`, nil)

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `http_requests_total{code="200",method="POST",route="/rag"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(&fakeRunner{}, nil)
	rec := do(t, srv.Routes(), http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
