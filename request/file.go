package request

// File is a binary value in a payload. Any File in a payload, directly or inside an
// array, switches the call to multipart encoding.
type File struct {
	Name        string
	ContentType string
	Content     []byte
	// Binary sends the file under "<key>_binary" instead of "<key>", for endpoints
	// that distinguish raw uploads from documents.
	Binary bool
}

func asFile(v any) (*File, bool) {
	switch f := v.(type) {
	case *File:
		return f, f != nil
	case File:
		return &f, true
	}
	return nil, false
}

// HasFile reports whether payload holds a File at the top level or inside an array.
func HasFile(payload map[string]any) bool {
	for _, v := range payload {
		if containsFile(v) {
			return true
		}
	}
	return false
}

func containsFile(v any) bool {
	if _, ok := asFile(v); ok {
		return true
	}
	if items, ok := normalize(v).([]any); ok {
		for _, item := range items {
			if containsFile(item) {
				return true
			}
		}
	}
	return false
}
