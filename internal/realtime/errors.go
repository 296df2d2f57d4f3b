package realtime

import "errors"

// Error codes carried in structured error frames. Every frame-level
// failure maps to exactly one of these; transport-level rejections
// (connection limit, strict-mode auth) are signalled with HTTP status
// codes before any frame exists.
const (
	CodeInvalidPayload   = "INVALID_PAYLOAD"
	CodeAuthFailed       = "AUTH_FAILED"
	CodeAuthTimeout      = "AUTH_TIMEOUT"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeRequestsExceeded = "REQUESTS_EXCEEDED"
)

// ErrInvalidMessage is returned when a frame cannot be decoded into a
// message envelope.
var ErrInvalidMessage = errors.New("realtime: invalid message")
