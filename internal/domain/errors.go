package domain

import "fmt"

// Code is a stable machine-readable error classification. Codes are part
// of the tool contract and must not change between releases.
type Code string

const (
	CodeConnection        Code = "CONNECTION_ERROR"
	CodeQuery             Code = "QUERY_ERROR"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodePermission        Code = "PERMISSION_ERROR"
	CodeNotConnected      Code = "NOT_CONNECTED"
	CodeUnsupportedEngine Code = "UNSUPPORTED_ENGINE"
)

// Error carries a classification code, a human message, and optionally
// the underlying driver error that caused it.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ConnectionError wraps a connect/disconnect/reconnect failure,
// preserving the driver error for diagnostics.
func ConnectionError(message string, cause error) *Error {
	return &Error{Code: CodeConnection, Message: message, Cause: cause}
}

// QueryError wraps a statement execution or catalog query failure.
func QueryError(message string, cause error) *Error {
	return &Error{Code: CodeQuery, Message: message, Cause: cause}
}

// ValidationError reports malformed input: an empty query, a bad
// identifier, or a detected injection pattern.
func ValidationError(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// PermissionError reports a statement disallowed by the current query mode.
func PermissionError(format string, args ...any) *Error {
	return &Error{Code: CodePermission, Message: fmt.Sprintf(format, args...)}
}

// NotConnected reports an operation attempted with no live session.
func NotConnected() *Error {
	return &Error{Code: CodeNotConnected, Message: "not connected to a database. Use the connect tool first"}
}

// UnsupportedEngine reports an engine tag outside the supported set.
func UnsupportedEngine(engine string) *Error {
	return &Error{Code: CodeUnsupportedEngine, Message: fmt.Sprintf("unsupported database engine: %q", engine)}
}

// CodeOf extracts the classification code from err, walking the
// wrap chain. Unclassified errors report an empty code.
func CodeOf(err error) Code {
	for err != nil {
		if de, ok := err.(*Error); ok {
			return de.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
