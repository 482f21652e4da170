package search

import (
	"regexp"
	"strings"
)

// Matchers evaluate a single query clause against one document and return a
// relevance score in [0, 1]. A score of 0 means the document does not match.
//
// The match heuristic is deliberately simple: an exact full-field match scores
// 1.0, a contained substring 0.8, and partial word overlap 0.5 scaled by the
// fraction of query words found. It is deterministic and order-preserving, not
// an approximation of BM25.

// MatchField scores a case-insensitive text match of queryText against field.
// Numbers and booleans are matched via their string rendering. The "_all" and
// "*" fields probe every value in the document.
func MatchField(doc map[string]any, field, queryText string) float64 {
	if queryText == "" {
		return 1.0
	}
	if field == "_all" || field == "*" {
		return MatchAnyField(doc, queryText)
	}

	value, ok := FieldValue(doc, field)
	if !ok {
		return 0
	}
	text, ok := stringValue(value)
	if !ok {
		return 0
	}
	return scoreText(strings.ToLower(text), strings.ToLower(queryText))
}

// MatchAnyField scores queryText against every value in the document,
// descending into nested objects and arrays, and returns the best score.
func MatchAnyField(doc map[string]any, queryText string) float64 {
	if queryText == "" {
		return 1.0
	}
	return searchValue(doc, strings.ToLower(queryText))
}

func searchValue(value any, query string) float64 {
	switch v := value.(type) {
	case string:
		return scoreText(strings.ToLower(v), query)
	case float64, bool:
		text, _ := stringValue(v)
		if strings.Contains(strings.ToLower(text), query) {
			return 0.5
		}
	case map[string]any:
		best := 0.0
		for _, nested := range v {
			if score := searchValue(nested, query); score > best {
				best = score
			}
		}
		return best
	case []any:
		best := 0.0
		for _, nested := range v {
			if score := searchValue(nested, query); score > best {
				best = score
			}
		}
		return best
	}
	return 0
}

func scoreText(fieldText, query string) float64 {
	if fieldText == query {
		return 1.0
	}
	if strings.Contains(fieldText, query) {
		return 0.8
	}

	words := strings.Fields(query)
	if len(words) == 0 {
		return 0
	}
	fieldWords := strings.Fields(fieldText)
	matched := 0
	for _, w := range words {
		for _, fw := range fieldWords {
			if strings.Contains(fw, w) {
				matched++
				break
			}
		}
	}
	if matched == 0 {
		return 0
	}
	return 0.5 * float64(matched) / float64(len(words))
}

// MatchPhraseField requires the phrase words to appear contiguously in order
// (case-insensitive) within the field value.
func MatchPhraseField(doc map[string]any, field, phrase string) float64 {
	if phrase == "" {
		return 1.0
	}
	if field == "_all" || field == "*" {
		return matchPhraseAnyField(doc, strings.ToLower(phrase))
	}

	value, ok := FieldValue(doc, field)
	if !ok {
		return 0
	}
	text, ok := stringValue(value)
	if !ok {
		return 0
	}
	return scorePhrase(strings.ToLower(text), strings.ToLower(phrase))
}

func scorePhrase(fieldText, phrase string) float64 {
	if strings.Contains(fieldText, phrase) {
		return 1.0
	}
	return 0
}

func matchPhraseAnyField(value any, phrase string) float64 {
	switch v := value.(type) {
	case string:
		return scorePhrase(strings.ToLower(v), phrase)
	case map[string]any:
		for _, nested := range v {
			if score := matchPhraseAnyField(nested, phrase); score > 0 {
				return score
			}
		}
	case []any:
		for _, nested := range v {
			if score := matchPhraseAnyField(nested, phrase); score > 0 {
				return score
			}
		}
	}
	return 0
}

// MultiMatch runs MatchField against each field and returns the best score.
func MultiMatch(doc map[string]any, fields []string, queryText string) float64 {
	if queryText == "" {
		return 1.0
	}
	best := 0.0
	for _, field := range fields {
		if score := MatchField(doc, field, queryText); score > best {
			best = score
		}
	}
	return best
}

// TermMatch tests exact equality between the raw field value and the query
// value. Type-sensitive: a string never equals a number.
func TermMatch(doc map[string]any, field string, value any) bool {
	fieldValue, ok := FieldValue(doc, field)
	if !ok {
		return false
	}
	return valuesEqual(fieldValue, value)
}

// TermsMatch tests whether the field value equals any of the listed values.
// An empty list matches nothing.
func TermsMatch(doc map[string]any, field string, values []any) bool {
	fieldValue, ok := FieldValue(doc, field)
	if !ok {
		return false
	}
	for _, v := range values {
		if valuesEqual(fieldValue, v) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case float64:
		vb, ok := b.(float64)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case nil:
		return b == nil
	}
	return false
}

// RangeMatch tests gte/gt/lte/lt bounds against the field value. Numeric
// values compare numerically; string fields against string bounds compare
// lexicographically (covering date strings). A missing field never matches.
func RangeMatch(doc map[string]any, field string, bounds map[string]any) bool {
	fieldValue, ok := FieldValue(doc, field)
	if !ok {
		return false
	}

	for op, bound := range bounds {
		var cmp int
		if num, numOK := NumericValue(fieldValue); numOK {
			target, targetOK := NumericValue(bound)
			if !targetOK {
				return false
			}
			switch {
			case num < target:
				cmp = -1
			case num > target:
				cmp = 1
			}
		} else if text, textOK := fieldValue.(string); textOK {
			target, targetOK := bound.(string)
			if !targetOK {
				return false
			}
			cmp = strings.Compare(text, target)
		} else {
			return false
		}

		switch op {
		case "gte":
			if cmp < 0 {
				return false
			}
		case "gt":
			if cmp <= 0 {
				return false
			}
		case "lte":
			if cmp > 0 {
				return false
			}
		case "lt":
			if cmp >= 0 {
				return false
			}
		}
	}
	return true
}

// WildcardMatch tests a glob pattern (* any sequence, ? single character)
// case-insensitively against the full field string. Only string fields match.
func WildcardMatch(doc map[string]any, field, pattern string) bool {
	if pattern == "" {
		return true
	}
	fieldValue, ok := FieldValue(doc, field)
	if !ok {
		return false
	}
	text, ok := fieldValue.(string)
	if !ok {
		return false
	}
	re, err := GlobRegexp(strings.ToLower(pattern))
	if err != nil {
		return false
	}
	return re.MatchString(strings.ToLower(text))
}

// PrefixMatch tests a case-insensitive starts-with condition.
func PrefixMatch(doc map[string]any, field, prefix string) bool {
	if prefix == "" {
		return true
	}
	fieldValue, ok := FieldValue(doc, field)
	if !ok {
		return false
	}
	text, ok := stringValue(fieldValue)
	if !ok {
		return false
	}
	return strings.HasPrefix(strings.ToLower(text), strings.ToLower(prefix))
}

// GlobRegexp compiles a glob pattern into an anchored regular expression.
// Shared by the wildcard matcher and index-name pattern resolution.
func GlobRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
