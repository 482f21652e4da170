package storage

import (
	"sort"
	"strings"

	"searchlite/internal/search"
)

// AllIndices is the sentinel index name that targets every index.
const AllIndices = "_all"

// CreateIndex registers a new index with optional settings and mappings.
func (s *Storage) CreateIndex(name string, settings, mappings map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.indices[name]; exists {
		s.logger.Warn("attempted to create existing index", "index", name)
		return errIndexExists(name)
	}

	idx := newIndex(name, settings, mappings)
	if err := s.persistIndexMeta(idx); err != nil {
		return err
	}
	s.indices[name] = idx
	s.logger.Info("index created", "index", name)
	return nil
}

// DeleteIndex removes an index and all of its documents. The "_all" sentinel
// removes every index; with it, an empty storage is a no-op success.
func (s *Storage) DeleteIndex(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == AllIndices {
		for indexName := range s.indices {
			if s.backend != nil {
				if err := s.backend.DeleteIndex(indexName); err != nil {
					return errStorage("delete index from backend", err)
				}
			}
			delete(s.indices, indexName)
		}
		s.logger.Warn("deleted all indices")
		return nil
	}

	idx, ok := s.indices[name]
	if !ok {
		return errIndexNotFound(name)
	}
	if s.backend != nil {
		if err := s.backend.DeleteIndex(name); err != nil {
			return errStorage("delete index from backend", err)
		}
	}
	delete(s.indices, name)
	s.logger.Info("index deleted", "index", name, "documents", idx.docCount())
	return nil
}

// IndexExists reports whether an index is present.
func (s *Storage) IndexExists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indices[name]
	return ok
}

// ListIndices returns all index names, sorted.
func (s *Storage) ListIndices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexNamesLocked()
}

func (s *Storage) indexNamesLocked() []string {
	names := make([]string, 0, len(s.indices))
	for name := range s.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetIndex returns the Elasticsearch-shaped index info for a single index.
func (s *Storage) GetIndex(name string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indices[name]
	if !ok {
		return nil, errIndexNotFound(name)
	}
	settings := idx.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	mappings := idx.Mappings
	if mappings == nil {
		mappings = map[string]any{}
	}
	return map[string]any{
		name: map[string]any{
			"settings": settings,
			"mappings": mappings,
			"aliases":  map[string]any{},
		},
	}, nil
}

// MatchIndices resolves an index pattern to existing index names. Patterns
// support * and ? glob wildcards and comma-separated lists; the union of all
// elements is returned, deduplicated and sorted. An empty pattern, "*" and
// "_all" resolve to every index.
func (s *Storage) MatchIndices(pattern string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchIndicesLocked(pattern)
}

func (s *Storage) matchIndicesLocked(pattern string) []string {
	if pattern == "" || pattern == "*" || pattern == AllIndices {
		return s.indexNamesLocked()
	}

	matched := make(map[string]struct{})
	for _, element := range strings.Split(pattern, ",") {
		element = strings.TrimSpace(element)
		if element == "" {
			continue
		}
		if element == "*" || element == AllIndices {
			for name := range s.indices {
				matched[name] = struct{}{}
			}
			continue
		}
		if !strings.ContainsAny(element, "*?") {
			if _, ok := s.indices[element]; ok {
				matched[element] = struct{}{}
			}
			continue
		}
		re, err := search.GlobRegexp(element)
		if err != nil {
			continue
		}
		for name := range s.indices {
			if re.MatchString(name) {
				matched[name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(matched))
	for name := range matched {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdateMapping merges new field definitions into an index's mappings. The
// body may be either {"properties": {...}} or a bare properties object.
// Field definitions merge key-by-key: new fields are added, existing field
// definitions are overwritten.
func (s *Storage) UpdateMapping(name string, body map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indices[name]
	if !ok {
		return errIndexNotFound(name)
	}

	properties := body
	if wrapped, ok := body["properties"].(map[string]any); ok {
		properties = wrapped
	}

	// Merge onto a copy so a failed persist leaves memory untouched.
	mappings := copyObject(idx.Mappings)
	existing, ok := mappings["properties"].(map[string]any)
	if !ok {
		existing = map[string]any{}
	}
	for field, definition := range properties {
		existing[field] = definition
	}
	mappings["properties"] = existing

	updated := *idx
	updated.Mappings = mappings
	if err := s.persistIndexMeta(&updated); err != nil {
		return err
	}
	idx.Mappings = mappings
	s.logger.Info("mapping updated", "index", name, "fields", len(properties))
	return nil
}

// UpdateSettings deep-merges new settings into an index's settings: nested
// objects merge recursively, scalars and arrays overwrite.
func (s *Storage) UpdateSettings(name string, newSettings map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indices[name]
	if !ok {
		return errIndexNotFound(name)
	}

	merged := deepMerge(copyObject(idx.Settings), newSettings)
	updated := *idx
	updated.Settings = merged
	if err := s.persistIndexMeta(&updated); err != nil {
		return err
	}
	idx.Settings = merged
	s.logger.Info("settings updated", "index", name)
	return nil
}

// GetAliases returns one empty alias set per index. Aliases are not
// implemented; the shape exists for API compatibility.
func (s *Storage) GetAliases() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]any, len(s.indices))
	for name := range s.indices {
		result[name] = map[string]any{"aliases": map[string]any{}}
	}
	return result
}
