package errx

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMatchesSentinelByCode(t *testing.T) {
	err := fmt.Errorf("turn failed: %w", ModelOutputSchema(errors.New("bad json")))

	assert.ErrorIs(t, err, ErrModelOutputSchema)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, CodeModelOutputSchema, CodeOf(err))
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
}

func TestValidationMessageNotRepeated(t *testing.T) {
	err := Validation("feedback_score must be 0, 1 or null")

	assert.Equal(t, "feedback_score must be 0, 1 or null", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "feedback_score must be 0, 1 or null", SafeMessage(err))
}

func TestAppErrorUnwrapsToCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Persistence(cause)

	assert.ErrorIs(t, err, cause)
	var app *AppError
	require.ErrorAs(t, err, &app)
	assert.Equal(t, CodePersistence, app.Code)
}

func TestPersistenceKeepsConflict(t *testing.T) {
	err := Persistence(Conflict("t1"))
	assert.Equal(t, CodeConflict, err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
}

func TestWrapBackends(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"redis nil", WrapRedis(redis.Nil), CodeNotFound},
		{"redis tx failed", WrapRedis(redis.TxFailedErr), CodeConflict},
		{"redis other", WrapRedis(errors.New("io timeout")), CodePersistence},
		{"sql no rows", WrapSQL(sql.ErrNoRows), CodeNotFound},
		{"sql other", WrapSQL(errors.New("broken pipe")), CodePersistence},
		{"qdrant", WrapQdrant(errors.New("unavailable")), CodeRetrievalBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
		})
	}

	assert.NoError(t, WrapRedis(nil))
	assert.NoError(t, WrapSQL(nil))
	assert.NoError(t, WrapQdrant(nil))
}

func TestUnknownErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, SystemErrorMessage, SafeMessage(err))
}

func TestEnvelopeKeepsCorrelationIDs(t *testing.T) {
	env := NewEnvelope(Validation("thread_id is required"), "abc", "t1")
	assert.Equal(t, CodeValidation, env.Error.Code)
	assert.Equal(t, "thread_id is required", env.Error.Message)
	assert.Equal(t, "abc", env.TraceID)
	assert.Equal(t, "t1", env.ThreadID)

	env = NewEnvelope(errors.New("boom"), "", "")
	assert.Equal(t, CodeInternal, env.Error.Code)
	assert.Equal(t, SystemErrorMessage, env.Error.Message)
}
