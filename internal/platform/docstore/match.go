package docstore

import (
	"reflect"
	"sort"
	"strings"
)

// Match reports whether a normalized document satisfies every filter.
// Drivers that cannot push a filter down evaluate it with Match.
func Match(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !matchOne(doc, f) {
			return false
		}
	}
	return true
}

func matchOne(doc Document, f Filter) bool {
	got := fieldValue(doc, f.Field)
	switch f.Op {
	case OpEq:
		want, err := NormalizeValue(f.Value)
		if err != nil {
			return false
		}
		return reflect.DeepEqual(got, want)
	case OpIn:
		values, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			want, err := NormalizeValue(v)
			if err == nil && reflect.DeepEqual(got, want) {
				return true
			}
		}
		return false
	case OpContains:
		s, ok := got.(string)
		if !ok {
			return false
		}
		sub, _ := f.Value.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	}
	return false
}

func fieldValue(doc Document, field string) any {
	return doc[field]
}

// Compare orders two canonical values: nil first, then numbers, strings and
// booleans. Values of different kinds order by kind.
func Compare(a, b any) int {
	ka, kb := kind(a), kind(b)
	if ka != kb {
		return ka - kb
	}
	switch x := a.(type) {
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		if x == y {
			return 0
		}
		if !x {
			return -1
		}
		return 1
	}
	return 0
}

func kind(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	default:
		return 4
	}
}

// Apply filters, sorts and pages docs in memory.
func Apply(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if Match(d, q.Where) {
			out = append(out, d)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := Compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	return Page(out, q.Limit, q.Offset)
}

// Page slices docs by limit and offset. A non-positive limit means no limit.
func Page(docs []Document, limit, offset int) []Document {
	if offset > 0 {
		if offset >= len(docs) {
			return []Document{}
		}
		docs = docs[offset:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
