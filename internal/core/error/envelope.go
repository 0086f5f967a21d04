package errx

// Envelope is the error body returned to callers. Correlation ids are kept
// so a failed request can still be traced.
type Envelope struct {
	Error    EnvelopeError `json:"error"`
	TraceID  string        `json:"trace_id,omitempty"`
	ThreadID string        `json:"thread_id,omitempty"`
}

type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEnvelope builds the caller-visible body for err.
func NewEnvelope(err error, traceID, threadID string) Envelope {
	return Envelope{
		Error: EnvelopeError{
			Code:    CodeOf(err),
			Message: SafeMessage(err),
		},
		TraceID:  traceID,
		ThreadID: threadID,
	}
}
