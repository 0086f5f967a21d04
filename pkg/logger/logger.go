package logx

import (
	"context"
	"os"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
}

type ctxKey struct{}

// Fields are correlation ids attached to every log line emitted through Ctx.
type Fields struct {
	ThreadID  string
	TraceID   string
	RequestID string
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	return &opts[0]
}

func Init(opts ...LoggerOpts) {
	if safe(opts...).Environment.IsProduction() {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	} else {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}
}

// WithFields returns a copy of ctx carrying the given correlation ids. Empty
// values keep whatever was already set.
func WithFields(ctx context.Context, f Fields) context.Context {
	prev, _ := ctx.Value(ctxKey{}).(Fields)
	if f.ThreadID == "" {
		f.ThreadID = prev.ThreadID
	}
	if f.TraceID == "" {
		f.TraceID = prev.TraceID
	}
	if f.RequestID == "" {
		f.RequestID = prev.RequestID
	}
	return context.WithValue(ctx, ctxKey{}, f)
}

// FieldsFrom returns the correlation ids stored on ctx.
func FieldsFrom(ctx context.Context) Fields {
	f, _ := ctx.Value(ctxKey{}).(Fields)
	return f
}

// Ctx returns the global logger enriched with the correlation ids on ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	f := FieldsFrom(ctx)
	lc := log.Logger.With()
	if f.ThreadID != "" {
		lc = lc.Str("thread_id", f.ThreadID)
	}
	if f.TraceID != "" {
		lc = lc.Str("trace_id", f.TraceID)
	}
	if f.RequestID != "" {
		lc = lc.Str("request_id", f.RequestID)
	}
	l := lc.Logger()
	return &l
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
