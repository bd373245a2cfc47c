package docstore

import (
	"time"
)

// ID returns the document id or "".
func (d Document) ID() string { return d.String(IDField) }

func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

func (d Document) Float(key string) float64 {
	switch n := d[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func (d Document) Int(key string) int { return int(d.Float(key)) }

func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Time parses a stored timestamp. Missing or malformed values yield the zero time.
func (d Document) Time(key string) time.Time {
	s := d.String(key)
	if s == "" {
		return time.Time{}
	}
	t, err := ParseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// TimePtr is Time for optional timestamps.
func (d Document) TimePtr(key string) *time.Time {
	t := d.Time(key)
	if t.IsZero() {
		return nil
	}
	return &t
}

// Doc returns a nested object as a Document, or nil.
func (d Document) Doc(key string) Document {
	switch m := d[key].(type) {
	case map[string]any:
		return Document(m)
	case Document:
		return m
	}
	return nil
}

// Docs returns a nested array of objects.
func (d Document) Docs(key string) []Document {
	arr, _ := d[key].([]any)
	out := make([]Document, 0, len(arr))
	for _, v := range arr {
		switch m := v.(type) {
		case map[string]any:
			out = append(out, Document(m))
		case Document:
			out = append(out, m)
		}
	}
	return out
}

// Strings returns a nested array of strings, skipping other element types.
func (d Document) Strings(key string) []string {
	switch arr := d[key].(type) {
	case []any:
		out := make([]string, 0, len(arr))
		for _, v := range arr {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), arr...)
	}
	return []string{}
}
