package apierror

import (
	"fmt"

	"github.com/pkg/errors"
)

// Backend error payloads use either the legacy snake_case keys or camelCase.
var (
	messageKeys = []string{"errorMessage", "error_message"}
	codeKeys    = []string{"errorCode", "error_code"}
)

// HasBackendMessage reports whether a decoded response body carries an explicit error
// message field.
func HasBackendMessage(body map[string]any) bool {
	return stringField(body, messageKeys) != ""
}

// EncodesError reports whether a decoded body describes an error, either through a
// truthy "error" field or an explicit message field.
func EncodesError(body map[string]any) bool {
	if body == nil {
		return false
	}
	switch v := body["error"].(type) {
	case bool:
		if v {
			return true
		}
	case string:
		if v != "" {
			return true
		}
	}
	return HasBackendMessage(body)
}

// FromBackend builds a KindBackend error from a structured backend payload. Every
// original field is preserved; legacy keys are mapped onto errorMessage/errorCode.
func FromBackend(status int, body map[string]any) *Error {
	message := stringField(body, messageKeys)
	code := stringField(body, codeKeys)
	if code == "" {
		if s, ok := body["error"].(string); ok {
			code = s
		}
	}
	return New(KindBackend, message, code).WithStatus(status).WithFields(body)
}

func stringField(body map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := body[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case fmt.Stringer:
			return v.String()
		case float64:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// stackTrace returns the formatted stack of the first pkg/errors frame in err's
// chain, or "" when none was recorded.
func stackTrace(err error) string {
	var st stackTracer
	if !errors.As(err, &st) {
		return ""
	}
	return fmt.Sprintf("%+v", st.StackTrace())
}
