// Package apierror defines the single error shape returned to every caller of the API
// client, whatever the origin of the failure.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// Kind classifies a failure into one of the client's error categories.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated" // No usable session
	KindUnauthorized    Kind = "unauthorized"    // Backend rejected the token (401)
	KindRateLimited     Kind = "rate_limited"    // 429
	KindBackend         Kind = "backend"         // Backend reported a business error
	KindTransport       Kind = "transport"       // No response reached the client
	KindContract        Kind = "contract"        // 2xx with an empty or unparseable body
	KindRefreshFailure  Kind = "refresh_failure" // Refresh endpoint failed or returned partial data
	KindInternal        Kind = "internal"        // Anything unexpected
)

// DefaultCode is used whenever neither the backend nor the classifier supplied a code.
const DefaultCode = "internal"

// User-facing messages.
const (
	MsgUnauthenticated = "Unauthenticated"
	MsgUnauthorized    = "Unauthorized"
	MsgRateLimited     = "Too many requests. Please retry in a moment."
	MsgNetwork         = "There was a network issue. Please check your connection and try again."
	MsgServer          = "There was a server issue. Please try again later."
	MsgGeneric         = "Something went wrong. Please try again later."
	MsgRefreshFailed   = "Your session has expired. Please log in again."
)

var defaultCodes = map[Kind]string{
	KindUnauthenticated: "unauthenticated",
	KindUnauthorized:    "unauthorized",
	KindRateLimited:     "rate_limited",
	KindBackend:         DefaultCode,
	KindTransport:       "network",
	KindContract:        "server",
	KindRefreshFailure:  "refresh_failed",
	KindInternal:        DefaultCode,
}

var defaultMessages = map[Kind]string{
	KindUnauthenticated: MsgUnauthenticated,
	KindUnauthorized:    MsgUnauthorized,
	KindRateLimited:     MsgRateLimited,
	KindBackend:         MsgGeneric,
	KindTransport:       MsgNetwork,
	KindContract:        MsgServer,
	KindRefreshFailure:  MsgRefreshFailed,
	KindInternal:        MsgGeneric,
}

// Error is the normalized error. Fields holds whatever the backend sent so callers can
// reach endpoint-specific details; the normalized keys always win over them.
type Error struct {
	Kind         Kind
	Status       int
	ErrorMessage string
	ErrorCode    string
	Trace        string
	Fields       map[string]any

	cause error
}

// New builds an Error of the given kind. Empty message or code fall back to the
// kind's defaults.
func New(kind Kind, message, code string) *Error {
	e := &Error{Kind: kind, ErrorMessage: message, ErrorCode: code}
	e.fillDefaults()
	return e
}

// WithStatus records the HTTP status that produced the error.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// WithCause attaches the underlying error, exposed through Unwrap.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	if e.Trace == "" {
		e.Trace = stackTrace(err)
	}
	return e
}

// WithFields copies backend-supplied fields onto the error.
func (e *Error) WithFields(fields map[string]any) *Error {
	if len(fields) == 0 {
		return e
	}
	if e.Fields == nil {
		e.Fields = make(map[string]any, len(fields))
	}
	maps.Copy(e.Fields, fields)
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.ErrorMessage, e.ErrorCode, e.cause)
	}
	return fmt.Sprintf("%s (%s)", e.ErrorMessage, e.ErrorCode)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// MarshalJSON renders {...fields, error: true, errorMessage, errorCode, trace?}.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+4)
	maps.Copy(out, e.Fields)
	out["error"] = true
	out["errorMessage"] = e.ErrorMessage
	out["errorCode"] = e.ErrorCode
	if e.Trace != "" {
		out["trace"] = e.Trace
	}
	return json.Marshal(out)
}

func (e *Error) fillDefaults() {
	if e.Kind == "" {
		e.Kind = KindInternal
	}
	if e.ErrorMessage == "" {
		e.ErrorMessage = defaultMessages[e.Kind]
	}
	if e.ErrorCode == "" {
		e.ErrorCode = defaultCodes[e.Kind]
	}
	if e.ErrorCode == "" {
		e.ErrorCode = DefaultCode
	}
}

// Normalize converts any error into an *Error. It is applied once, at the outermost
// call boundary. An *Error anywhere in the chain is returned as is (with defaults
// filled in); context cancellation is treated as a transport failure; everything
// else becomes an internal error carrying the original message and stack.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		apiErr.fillDefaults()
		return apiErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return New(KindTransport, "", "").WithCause(err)
	}

	return New(KindInternal, err.Error(), DefaultCode).WithCause(err)
}

// IsKind reports whether err normalizes to the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
