package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-querystring/query"
	lmserrors "github.com/jrsteele09/go-lms-client/internal/errors"
)

// EncodeQuery renders a payload as query parameters for GET and DELETE calls. Booleans
// become "1" or "0", maps and structs become JSON text, and arrays use indexed keys
// (key[0], key[1]). Nil values are omitted.
func EncodeQuery(payload map[string]any) (url.Values, error) {
	q := url.Values{}
	for key, v := range payload {
		if err := addQuery(q, key, v); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func addQuery(q url.Values, key string, v any) error {
	if f, ok := asFile(v); ok {
		q.Set(key, f.Name)
		return nil
	}
	switch t := normalize(v).(type) {
	case nil:
		return nil
	case []any:
		for i, item := range t {
			if err := addQuery(q, fmt.Sprintf("%s[%d]", key, i), item); err != nil {
				return err
			}
		}
		return nil
	case bool:
		if t {
			q.Set(key, "1")
		} else {
			q.Set(key, "0")
		}
		return nil
	default:
		s, err := scalar(t)
		if err != nil {
			return fmt.Errorf("[EncodeQuery] %s: %w", key, err)
		}
		q.Set(key, s)
		return nil
	}
}

// scalar renders a non-array value as form text. Maps and structs are JSON encoded.
func scalar(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case fmt.Stringer:
		return t.String(), nil
	}

	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return fmt.Sprint(v), nil
}

// EncodeJSON renders a payload as a JSON body.
func EncodeJSON(payload map[string]any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("[EncodeJSON] %w", err)
	}
	return data, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// EncodeMultipart renders a payload as multipart form data and returns the body with
// its Content-Type. Arrays repeat their key once per item. Keys are written in sorted
// order so the same payload always produces the same parts.
func EncodeMultipart(payload map[string]any) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := writePart(w, key, payload[key]); err != nil {
			return nil, "", fmt.Errorf("[EncodeMultipart] %s: %w", key, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("[EncodeMultipart] %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writePart(w *multipart.Writer, key string, v any) error {
	if f, ok := asFile(v); ok {
		return writeFile(w, key, f)
	}
	if items, ok := normalize(v).([]any); ok {
		for _, item := range items {
			if err := writePart(w, key, item); err != nil {
				return err
			}
		}
		return nil
	}
	if v == nil {
		return nil
	}
	s, err := scalar(normalize(v))
	if err != nil {
		return err
	}
	return w.WriteField(key, s)
}

func writeFile(w *multipart.Writer, key string, f *File) error {
	name := key
	if f.Binary {
		name = key + "_binary"
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(f.Content)
	return err
}

// ToPayload lowers a call input to a payload map. Maps are copied so the caller's value
// is never modified. Structs are lowered through their url tags for query methods and
// through their json tags otherwise.
func ToPayload(method string, input any) (map[string]any, error) {
	switch t := input.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		out := make(map[string]any, len(t)+4)
		for k, v := range t {
			out[k] = v
		}
		return out, nil
	case url.Values:
		return fromValues(t), nil
	}

	rv := reflect.ValueOf(input)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return map[string]any{}, nil
	}
	switch reflect.Indirect(rv).Kind() {
	case reflect.Map:
		if m, ok := normalize(reflect.Indirect(rv).Interface()).(map[string]any); ok {
			return m, nil
		}
	case reflect.Struct:
		if IsQueryMethod(method) {
			values, err := query.Values(input)
			if err != nil {
				return nil, fmt.Errorf("[ToPayload] %w", err)
			}
			return fromValues(values), nil
		}
		return structToMap(input)
	}
	return nil, lmserrors.Wrapf(lmserrors.ErrUnsupported, "[ToPayload] input of type %T", input)
}

func structToMap(input any) (map[string]any, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("[ToPayload] marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out := map[string]any{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("[ToPayload] decode: %w", err)
	}
	return out, nil
}

func fromValues(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for key, vs := range values {
		if len(vs) == 1 {
			out[key] = vs[0]
			continue
		}
		items := make([]any, len(vs))
		for i, v := range vs {
			items[i] = v
		}
		out[key] = items
	}
	return out
}

// IsQueryMethod reports whether method carries its payload in the query string.
func IsQueryMethod(method string) bool {
	m := strings.ToUpper(method)
	return m == "GET" || m == "DELETE"
}
