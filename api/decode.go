package api

import (
	"encoding/json"

	"github.com/jrsteele09/go-lms-client/apierror"
)

// Decode converts a Call result into T, passing through any error:
//
//	essays, err := api.Decode[[]Essay](h.Call(ctx, call))
func Decode[T any](v any, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if t, ok := v.(T); ok {
		return t, nil
	}

	var data []byte
	switch b := v.(type) {
	case []byte:
		data = b
	case json.RawMessage:
		data = b
	default:
		if data, err = json.Marshal(v); err != nil {
			return out, apierror.Normalize(err)
		}
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, apierror.New(apierror.KindContract, "", "").WithCause(err)
	}
	return out, nil
}
