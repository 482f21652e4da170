package search

import "fmt"

// ClauseError reports a malformed or unsupported query clause.
type ClauseError struct {
	Reason string
}

func (e *ClauseError) Error() string { return e.Reason }

func clauseErrorf(format string, args ...any) error {
	return &ClauseError{Reason: fmt.Sprintf(format, args...)}
}

// ScoreDocument evaluates a query DSL tree against a single document and
// returns its relevance score. A score of 0 excludes the document. An empty
// query object behaves as match_all.
func ScoreDocument(doc map[string]any, query map[string]any) (float64, error) {
	if len(query) == 0 {
		return 1.0, nil
	}
	if len(query) > 1 {
		return 0, clauseErrorf("query must contain exactly one clause, got %d", len(query))
	}

	for clause, body := range query {
		switch clause {
		case "match_all":
			return 1.0, nil
		case "match":
			return scoreFieldTextClause(doc, clause, body, MatchField)
		case "match_phrase":
			return scoreFieldTextClause(doc, clause, body, MatchPhraseField)
		case "multi_match":
			return scoreMultiMatch(doc, body)
		case "term":
			obj, err := clauseObject(clause, body)
			if err != nil {
				return 0, err
			}
			for field, value := range obj {
				if TermMatch(doc, field, value) {
					return 1.0, nil
				}
			}
			return 0, nil
		case "terms":
			obj, err := clauseObject(clause, body)
			if err != nil {
				return 0, err
			}
			for field, values := range obj {
				list, ok := values.([]any)
				if !ok {
					return 0, clauseErrorf("terms clause for field %q requires an array of values", field)
				}
				if TermsMatch(doc, field, list) {
					return 1.0, nil
				}
			}
			return 0, nil
		case "range":
			obj, err := clauseObject(clause, body)
			if err != nil {
				return 0, err
			}
			for field, spec := range obj {
				bounds, ok := spec.(map[string]any)
				if !ok {
					return 0, clauseErrorf("range clause for field %q requires an object of bounds", field)
				}
				if RangeMatch(doc, field, bounds) {
					return 1.0, nil
				}
			}
			return 0, nil
		case "prefix":
			return scoreSimpleTextClause(doc, clause, body, PrefixMatch)
		case "wildcard":
			return scoreSimpleTextClause(doc, clause, body, WildcardMatch)
		case "bool":
			obj, err := clauseObject(clause, body)
			if err != nil {
				return 0, err
			}
			return scoreBool(doc, obj)
		default:
			return 0, clauseErrorf("unsupported query clause %q", clause)
		}
	}
	return 0, nil
}

func clauseObject(clause string, body any) (map[string]any, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, clauseErrorf("%s clause requires an object body", clause)
	}
	return obj, nil
}

// scoreFieldTextClause handles match/match_phrase bodies of either the bare
// form {"field": "text"} or the object form {"field": {"query": "text"}}.
func scoreFieldTextClause(doc map[string]any, clause string, body any, matcher func(map[string]any, string, string) float64) (float64, error) {
	obj, err := clauseObject(clause, body)
	if err != nil {
		return 0, err
	}
	best := 0.0
	for field, value := range obj {
		text, err := queryText(clause, field, value, "query")
		if err != nil {
			return 0, err
		}
		if score := matcher(doc, field, text); score > best {
			best = score
		}
	}
	return best, nil
}

// scoreSimpleTextClause handles prefix/wildcard bodies, accepting the bare
// form or the {"value": "..."} object form, scoring 1.0 or 0.
func scoreSimpleTextClause(doc map[string]any, clause string, body any, matcher func(map[string]any, string, string) bool) (float64, error) {
	obj, err := clauseObject(clause, body)
	if err != nil {
		return 0, err
	}
	for field, value := range obj {
		text, err := queryText(clause, field, value, "value")
		if err != nil {
			return 0, err
		}
		if matcher(doc, field, text) {
			return 1.0, nil
		}
	}
	return 0, nil
}

func queryText(clause, field string, value any, objectKey string) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case map[string]any:
		if text, ok := v[objectKey].(string); ok {
			return text, nil
		}
		return "", clauseErrorf("%s clause for field %q missing string %q", clause, field, objectKey)
	}
	return "", clauseErrorf("%s clause for field %q requires a string or object", clause, field)
}

func scoreMultiMatch(doc map[string]any, body any) (float64, error) {
	obj, err := clauseObject("multi_match", body)
	if err != nil {
		return 0, err
	}
	text, ok := obj["query"].(string)
	if !ok {
		return 0, clauseErrorf("multi_match clause requires a string query")
	}

	fields := []string{"_all"}
	switch f := obj["fields"].(type) {
	case []any:
		fields = fields[:0]
		for _, name := range f {
			field, ok := name.(string)
			if !ok {
				return 0, clauseErrorf("multi_match fields must be strings")
			}
			fields = append(fields, field)
		}
	case string:
		fields = []string{f}
	case nil:
	default:
		return 0, clauseErrorf("multi_match fields must be an array or string")
	}

	return MultiMatch(doc, fields, text), nil
}

// scoreBool composes sub-clause scores:
//   - must: all clauses must score > 0; their scores sum.
//   - filter: all clauses must match but contribute no score.
//   - must_not: any matching clause excludes the document.
//   - should: each match adds its score; with no must/filter present at
//     least one should clause has to match.
//
// A bool with no effective clauses (including an empty should array) matches
// everything with score 1.0. A document that passes on filters alone gets a
// constant score of 1.0.
func scoreBool(doc map[string]any, boolQuery map[string]any) (float64, error) {
	for key := range boolQuery {
		switch key {
		case "must", "filter", "should", "must_not", "minimum_should_match", "boost":
		default:
			return 0, clauseErrorf("unsupported bool occurrence %q", key)
		}
	}

	must, err := occurrenceClauses(boolQuery, "must")
	if err != nil {
		return 0, err
	}
	filter, err := occurrenceClauses(boolQuery, "filter")
	if err != nil {
		return 0, err
	}
	should, err := occurrenceClauses(boolQuery, "should")
	if err != nil {
		return 0, err
	}
	mustNot, err := occurrenceClauses(boolQuery, "must_not")
	if err != nil {
		return 0, err
	}

	score := 0.0
	for _, clause := range must {
		clauseScore, err := ScoreDocument(doc, clause)
		if err != nil {
			return 0, err
		}
		if clauseScore == 0 {
			return 0, nil
		}
		score += clauseScore
	}

	for _, clause := range filter {
		clauseScore, err := ScoreDocument(doc, clause)
		if err != nil {
			return 0, err
		}
		if clauseScore == 0 {
			return 0, nil
		}
	}

	for _, clause := range mustNot {
		clauseScore, err := ScoreDocument(doc, clause)
		if err != nil {
			return 0, err
		}
		if clauseScore > 0 {
			return 0, nil
		}
	}

	shouldMatched := false
	for _, clause := range should {
		clauseScore, err := ScoreDocument(doc, clause)
		if err != nil {
			return 0, err
		}
		if clauseScore > 0 {
			shouldMatched = true
			score += clauseScore
		}
	}

	// should-only bool requires at least one hit; an empty should array is
	// vacuously true and behaves as match_all.
	if len(must) == 0 && len(filter) == 0 && len(should) > 0 && !shouldMatched {
		return 0, nil
	}

	if score > 0 {
		return score, nil
	}
	return 1.0, nil
}

func occurrenceClauses(boolQuery map[string]any, key string) ([]map[string]any, error) {
	raw, present := boolQuery[key]
	if !present {
		return nil, nil
	}
	switch v := raw.(type) {
	case []any:
		clauses := make([]map[string]any, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, clauseErrorf("bool %s entries must be objects", key)
			}
			clauses = append(clauses, obj)
		}
		return clauses, nil
	case map[string]any:
		return []map[string]any{v}, nil
	}
	return nil, clauseErrorf("bool %s must be an object or array of objects", key)
}

// ExtractTerms collects the searchable words referenced by a query, for
// highlighting. Terms come from match, match_phrase, multi_match and term
// clauses, recursing through bool occurrences.
func ExtractTerms(query map[string]any) []string {
	var terms []string
	appendText := func(text string) {
		for _, word := range splitWords(text) {
			terms = append(terms, word)
		}
	}

	for clause, body := range query {
		obj, ok := body.(map[string]any)
		if !ok {
			continue
		}
		switch clause {
		case "match", "match_phrase":
			for field, value := range obj {
				if text, err := queryText(clause, field, value, "query"); err == nil {
					appendText(text)
				}
			}
		case "multi_match":
			if text, ok := obj["query"].(string); ok {
				appendText(text)
			}
		case "term":
			for _, value := range obj {
				if text, ok := value.(string); ok {
					appendText(text)
				}
			}
		case "bool":
			for _, key := range []string{"must", "should", "must_not", "filter"} {
				clauses, err := occurrenceClauses(obj, key)
				if err != nil {
					continue
				}
				for _, sub := range clauses {
					terms = append(terms, ExtractTerms(sub)...)
				}
			}
		}
	}
	return terms
}
