package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFieldsKeepsEarlierValues(t *testing.T) {
	ctx := WithFields(context.Background(), Fields{RequestID: "r1"})
	ctx = WithFields(ctx, Fields{ThreadID: "t1", TraceID: "abc"})

	f := FieldsFrom(ctx)
	assert.Equal(t, Fields{ThreadID: "t1", TraceID: "abc", RequestID: "r1"}, f)
	assert.Equal(t, Fields{}, FieldsFrom(context.Background()))
}

func TestCtxAddsCorrelationIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	ctx := WithFields(context.Background(), Fields{ThreadID: "t1", TraceID: "abc"})
	Ctx(ctx).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "t1", line["thread_id"])
	assert.Equal(t, "abc", line["trace_id"])
	assert.NotContains(t, line, "request_id")
	assert.Equal(t, "hello", line["message"])
}
