package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// SQLErrorMessage describes relational store failures.
	SQLErrorMessage = "checkpoint database operation failed"
	// QdrantErrorMessage describes search index failures.
	QdrantErrorMessage = "search index operation failed"
	// ConflictMessage is returned when an optimistic checkpoint write loses a race.
	ConflictMessage = "conversation was modified concurrently"
)

// Stable error codes exposed in the error envelope.
const (
	CodeValidation        = "validation_error"
	CodeModelOutputSchema = "model_output_schema_error"
	CodeToolExecution     = "tool_execution_error"
	CodeRetrievalBackend  = "retrieval_backend_error"
	CodePersistence       = "persistence_error"
	CodeConflict          = "checkpoint_conflict"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal_error"
)

// AppError wraps an underlying error with an HTTP status, a stable code and a safe message.
type AppError struct {
	Err     error
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information. The code is
// derived from the status when it is not otherwise known.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

// Is reports whether the target matches the underlying error or carries the same code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) && t != nil && t.Err == nil {
		return t.Code == e.Code
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}

// Sentinels usable with errors.Is; they match any AppError with the same code.
var (
	ErrValidation        = &AppError{Code: CodeValidation, Status: http.StatusBadRequest, Message: "invalid request"}
	ErrModelOutputSchema = &AppError{Code: CodeModelOutputSchema, Status: http.StatusBadGateway, Message: "model output does not match schema"}
	ErrToolExecution     = &AppError{Code: CodeToolExecution, Status: http.StatusBadGateway, Message: "tool execution failed"}
	ErrRetrievalBackend  = &AppError{Code: CodeRetrievalBackend, Status: http.StatusBadGateway, Message: "retrieval backend failed"}
	ErrPersistence       = &AppError{Code: CodePersistence, Status: http.StatusServiceUnavailable, Message: "checkpoint store failed"}
	ErrConflict          = &AppError{Code: CodeConflict, Status: http.StatusConflict, Message: ConflictMessage}
	ErrNotFound          = &AppError{Code: CodeNotFound, Status: http.StatusNotFound, Message: "not found"}
)

func Validation(format string, args ...any) *AppError {
	msg := fmt.Sprintf(format, args...)
	return &AppError{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func ModelOutputSchema(err error) *AppError {
	return &AppError{Err: err, Status: http.StatusBadGateway, Code: CodeModelOutputSchema, Message: ErrModelOutputSchema.Message}
}

func ToolExecution(tool string, err error) *AppError {
	return &AppError{Err: err, Status: http.StatusBadGateway, Code: CodeToolExecution, Message: fmt.Sprintf("tool %q failed", tool)}
}

func RetrievalBackend(err error) *AppError {
	return &AppError{Err: err, Status: http.StatusBadGateway, Code: CodeRetrievalBackend, Message: ErrRetrievalBackend.Message}
}

func Persistence(err error) *AppError {
	if err == nil {
		return nil
	}
	var app *AppError
	if errors.As(err, &app) && (app.Code == CodeConflict || app.Code == CodePersistence) {
		return app
	}
	return &AppError{Err: err, Status: http.StatusServiceUnavailable, Code: CodePersistence, Message: ErrPersistence.Message}
}

func Conflict(threadID string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("thread %s: stale checkpoint version", threadID),
		Status:  http.StatusConflict,
		Code:    CodeConflict,
		Message: ConflictMessage,
	}
}

// CodeOf returns the stable code carried by err, or CodeInternal.
func CodeOf(err error) string {
	var app *AppError
	if errors.As(err, &app) && app.Code != "" {
		return app.Code
	}
	return CodeInternal
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var app *AppError
	if errors.As(err, &app) && app.Status != 0 {
		return app.Status
	}
	return http.StatusInternalServerError
}

// SafeMessage returns the user-facing message for err.
func SafeMessage(err error) string {
	var app *AppError
	if errors.As(err, &app) && app.Message != "" {
		return app.Message
	}
	return SystemErrorMessage
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusServiceUnavailable:
		return CodePersistence
	default:
		return CodeInternal
	}
}
