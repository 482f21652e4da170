package search

import (
	"strconv"
	"strings"
)

// FieldValue resolves a field from a document. Dotted field names descend
// into nested objects; "_all" and "*" resolve to the document itself.
func FieldValue(doc map[string]any, field string) (any, bool) {
	if field == "_all" || field == "*" {
		return doc, true
	}

	var current any = doc
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// FilterSource applies a _source specification to a document body.
//
// Supported forms:
//   - nil or true: the full document
//   - false: an empty object
//   - ["field1", "field2"]: only the listed top-level fields
//   - {"includes": [...], "excludes": [...]}: exclude first, then include
func FilterSource(doc map[string]any, filter any) map[string]any {
	switch f := filter.(type) {
	case nil:
		return doc
	case bool:
		if f {
			return doc
		}
		return map[string]any{}
	case []any:
		result := make(map[string]any)
		for _, name := range f {
			field, ok := name.(string)
			if !ok {
				continue
			}
			if value, present := doc[field]; present {
				result[field] = value
			}
		}
		return result
	case map[string]any:
		result := make(map[string]any, len(doc))
		for k, v := range doc {
			result[k] = v
		}
		if excludes, ok := f["excludes"].([]any); ok {
			for _, name := range excludes {
				if field, ok := name.(string); ok {
					delete(result, field)
				}
			}
		}
		if includes, ok := f["includes"].([]any); ok {
			included := make(map[string]any)
			for _, name := range includes {
				field, ok := name.(string)
				if !ok {
					continue
				}
				if value, present := result[field]; present {
					included[field] = value
				}
			}
			result = included
		}
		return result
	}
	return doc
}

// CompareValues orders two JSON values: numbers numerically, strings
// lexicographically, and a present value after an absent one.
func CompareValues(a, b any) int {
	if na, aok := NumericValue(a); aok {
		if nb, bok := NumericValue(b); bok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}
	if sa, aok := a.(string); aok {
		if sb, bok := b.(string); bok {
			return strings.Compare(sa, sb)
		}
	}
	switch {
	case a != nil && b == nil:
		return 1
	case a == nil && b != nil:
		return -1
	}
	return 0
}

// NumericValue extracts a float64 from a JSON value, parsing numeric strings.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// stringValue renders a scalar field value for text matching. Objects and
// arrays have no text form.
func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}
