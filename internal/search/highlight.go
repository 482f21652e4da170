package search

import "strings"

const (
	defaultPreTag  = "<em>"
	defaultPostTag = "</em>"
)

// HighlightDocument produces per-field highlight fragments for a matched
// document. Fields to highlight come from the config's "fields" object;
// pre_tags/post_tags override the <em> markers. Fields without any term
// occurrence contribute no entry.
func HighlightDocument(doc map[string]any, query map[string]any, config map[string]any) map[string][]string {
	fields, ok := config["fields"].(map[string]any)
	if !ok || len(fields) == 0 {
		return nil
	}

	preTag := tagOption(config, "pre_tags", defaultPreTag)
	postTag := tagOption(config, "post_tags", defaultPostTag)

	terms := ExtractTerms(query)
	if len(terms) == 0 {
		return nil
	}

	result := make(map[string][]string)
	for field := range fields {
		value, ok := FieldValue(doc, field)
		if !ok {
			continue
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		highlighted, matched := HighlightText(text, terms, preTag, postTag)
		if matched {
			result[field] = []string{highlighted}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

func tagOption(config map[string]any, key, fallback string) string {
	if tags, ok := config[key].([]any); ok && len(tags) > 0 {
		if tag, ok := tags[0].(string); ok {
			return tag
		}
	}
	return fallback
}

// HighlightText wraps every case-insensitive occurrence of any term in the
// tags. Overlapping and adjacent occurrences merge into a single span. The
// second return reports whether anything matched.
func HighlightText(text string, terms []string, preTag, postTag string) (string, bool) {
	lower := strings.ToLower(text)

	type span struct{ start, end int }
	var spans []span
	for _, term := range terms {
		needle := strings.ToLower(term)
		if needle == "" {
			continue
		}
		from := 0
		for {
			pos := strings.Index(lower[from:], needle)
			if pos < 0 {
				break
			}
			start := from + pos
			spans = append(spans, span{start, start + len(needle)})
			from = start + len(needle)
		}
	}
	if len(spans) == 0 {
		return text, false
	}

	// Merge overlapping and adjacent spans into one highlighted region.
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	var b strings.Builder
	cursor := 0
	for _, s := range merged {
		b.WriteString(text[cursor:s.start])
		b.WriteString(preTag)
		b.WriteString(text[s.start:s.end])
		b.WriteString(postTag)
		cursor = s.end
	}
	b.WriteString(text[cursor:])
	return b.String(), true
}

func splitWords(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	out := words[:0]
	for _, w := range words {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
