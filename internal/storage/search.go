package storage

import (
	"sort"
	"time"

	"searchlite/internal/search"
)

// SearchRequest carries the decoded body (or query parameters) of a search
// call. Nil Query means match-all.
type SearchRequest struct {
	Query     map[string]any
	From      *int
	Size      *int
	Sort      any
	Source    any
	Highlight map[string]any
}

const defaultSearchSize = 10

type hit struct {
	index string
	id    string
	body  map[string]any
	score float64
	seq   uint64
}

// Search evaluates a query against one or more indices and returns the
// Elasticsearch-shaped response. The target may be a single index name, a
// glob or comma pattern, "_all", "*" or empty; a literal name that does not
// exist is an error, while a pattern matching nothing yields zero hits.
func (s *Storage) Search(target string, req SearchRequest) (map[string]any, error) {
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.resolveSearchTargetLocked(target)
	if err != nil {
		return nil, err
	}

	query := req.Query
	if query == nil {
		query = map[string]any{"match_all": map[string]any{}}
	}

	var hits []hit
	for _, name := range names {
		idx := s.indices[name]
		for id, doc := range idx.docs {
			score, err := search.ScoreDocument(doc.Body, query)
			if err != nil {
				return nil, wrapQueryError(err)
			}
			if score <= 0 {
				continue
			}
			hits = append(hits, hit{index: name, id: id, body: doc.Body, score: score, seq: doc.seq})
		}
	}

	sortSpecs, err := parseSortSpecs(req.Sort)
	if err != nil {
		return nil, err
	}
	sortHits(hits, sortSpecs)

	total := len(hits)
	from := 0
	if req.From != nil && *req.From > 0 {
		from = *req.From
	}
	size := defaultSearchSize
	if req.Size != nil && *req.Size >= 0 {
		size = *req.Size
	}
	if from > total {
		from = total
	}
	end := from + size
	if end > total {
		end = total
	}
	page := hits[from:end]

	hitObjects := make([]map[string]any, 0, len(page))
	var maxScore any
	for _, h := range page {
		if maxScore == nil || h.score > maxScore.(float64) {
			maxScore = h.score
		}
		obj := map[string]any{
			"_index":  h.index,
			"_type":   "_doc",
			"_id":     h.id,
			"_score":  h.score,
			"_source": search.FilterSource(h.body, req.Source),
		}
		if req.Highlight != nil {
			if fragments := search.HighlightDocument(h.body, query, req.Highlight); len(fragments) > 0 {
				obj["highlight"] = fragments
			}
		}
		hitObjects = append(hitObjects, obj)
	}

	s.logger.Debug("search executed",
		"target", target, "indices", len(names), "total", total, "returned", len(hitObjects))

	return map[string]any{
		"took":      time.Since(start).Milliseconds(),
		"timed_out": false,
		"_shards": map[string]any{
			"total": 1, "successful": 1, "skipped": 0, "failed": 0,
		},
		"hits": map[string]any{
			"total":     map[string]any{"value": total, "relation": "eq"},
			"max_score": maxScore,
			"hits":      hitObjects,
		},
	}, nil
}

// resolveSearchTargetLocked maps a search target to index names. Literal
// names must exist; wildcard and list patterns may match nothing.
func (s *Storage) resolveSearchTargetLocked(target string) ([]string, error) {
	if target == "" || target == "*" || target == AllIndices {
		return s.indexNamesLocked(), nil
	}
	if !containsPatternChars(target) {
		if _, ok := s.indices[target]; !ok {
			return nil, errIndexNotFound(target)
		}
		return []string{target}, nil
	}
	return s.matchIndicesLocked(target), nil
}

func containsPatternChars(target string) bool {
	for _, r := range target {
		if r == '*' || r == '?' || r == ',' {
			return true
		}
	}
	return false
}

type sortSpec struct {
	field string
	desc  bool
}

// parseSortSpecs decodes the "sort" clause: an array of elements, or a single
// element, where each element is either a field name string or an object of
// the form {"field": "asc"} or {"field": {"order": "desc"}}. The "_score"
// pseudo-field sorts by relevance.
func parseSortSpecs(raw any) ([]sortSpec, error) {
	if raw == nil {
		return nil, nil
	}
	elements, ok := raw.([]any)
	if !ok {
		elements = []any{raw}
	}

	var specs []sortSpec
	for _, element := range elements {
		switch v := element.(type) {
		case string:
			specs = append(specs, sortSpec{field: v})
		case map[string]any:
			for field, directive := range v {
				spec := sortSpec{field: field}
				switch d := directive.(type) {
				case string:
					spec.desc = d == "desc"
				case map[string]any:
					if order, ok := d["order"].(string); ok {
						spec.desc = order == "desc"
					}
				default:
					return nil, errInvalidf("invalid sort directive for field %q", field)
				}
				specs = append(specs, spec)
			}
		default:
			return nil, errInvalidf("invalid sort element")
		}
	}
	return specs, nil
}

// sortHits orders hits by the explicit sort specs, then by descending score,
// then index name, then insertion order. The final keys make ranking fully
// deterministic, so pagination never shuffles equal-score documents.
func sortHits(hits []hit, specs []sortSpec) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		for _, spec := range specs {
			var cmp int
			if spec.field == "_score" {
				cmp = compareFloats(a.score, b.score)
			} else {
				av, aok := search.FieldValue(a.body, spec.field)
				bv, bok := search.FieldValue(b.body, spec.field)
				switch {
				case !aok && !bok:
					cmp = 0
				case !aok:
					cmp = -1
				case !bok:
					cmp = 1
				default:
					cmp = search.CompareValues(av, bv)
				}
			}
			if cmp != 0 {
				if spec.desc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if a.index != b.index {
			return a.index < b.index
		}
		return a.seq < b.seq
	})
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
