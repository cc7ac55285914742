package request

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Flatten rewrites nested maps and arrays into bracket-indexed keys, so
// {"a": {"b": 1, "c": [2, 3]}} becomes {"a[b]": 1, "a[c][0]": 2, "a[c][1]": 3}.
// Files are leaves and are never descended into. Empty maps and arrays produce no keys.
func Flatten(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, v := range payload {
		flattenInto(out, key, v)
	}
	return out
}

func flattenInto(out map[string]any, key string, v any) {
	if _, ok := asFile(v); ok {
		out[key] = v
		return
	}
	switch t := normalize(v).(type) {
	case map[string]any:
		for child, cv := range t {
			flattenInto(out, fmt.Sprintf("%s[%s]", key, child), cv)
		}
	case []any:
		for i, cv := range t {
			flattenInto(out, fmt.Sprintf("%s[%d]", key, i), cv)
		}
	default:
		out[key] = v
	}
}

// normalize widens typed slices and string-keyed maps to []any and map[string]any so
// callers can pass []string, map[string]int and the like. Byte slices stay scalar.
func normalize(v any) any {
	switch v.(type) {
	case nil, string, bool, json.Number, []byte, []any, map[string]any, *File, File:
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return m
	}
	return v
}
