// Package storage implements the index/document data model, the query
// engine, bulk mutation semantics and the persistence contract behind the
// Elasticsearch-compatible API surface.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"searchlite/internal/backend"
)

// Storage owns the full index map behind a single reader/writer lock:
// searches and reads proceed concurrently, mutations are exclusive. When a
// backend is attached, every mutation is persisted before the in-memory
// state changes, so memory never runs ahead of disk.
type Storage struct {
	mu      sync.RWMutex
	indices map[string]*Index

	backend backend.Backend
	logger  *slog.Logger
}

// New creates an in-memory storage with no persistence.
func New(logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		indices: make(map[string]*Index),
		logger:  logger,
	}
}

// Open creates a storage bound to a backend and loads all persisted state.
// The load completes before Open returns; no request should be served
// against a partially loaded storage.
func Open(b backend.Backend, logger *slog.Logger) (*Storage, error) {
	s := New(logger)
	s.backend = b
	if err := s.loadFromBackend(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) loadFromBackend() error {
	metas, docs, err := s.backend.LoadAll()
	if err != nil {
		return fmt.Errorf("load persisted state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, raw := range metas {
		var meta indexMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("decode metadata for index %q: %w", name, err)
		}
		s.indices[name] = newIndex(name, meta.Settings, meta.Mappings)
	}

	loadedDocs := 0
	for indexName, byID := range docs {
		idx, ok := s.indices[indexName]
		if !ok {
			// Documents without index metadata indicate a corrupted store;
			// skip them rather than refuse to start.
			s.logger.Error("skipping documents for unknown index", "index", indexName, "documents", len(byID))
			continue
		}
		for id, raw := range byID {
			var body map[string]any
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("decode document %q in index %q: %w", id, indexName, err)
			}
			idx.put(id, body)
			loadedDocs++
		}
	}

	s.logger.Info("loaded persisted state", "indices", len(s.indices), "documents", loadedDocs)
	return nil
}

// indexMeta is the persisted record shape for index metadata.
type indexMeta struct {
	Settings map[string]any `json:"settings"`
	Mappings map[string]any `json:"mappings"`
}

// persistIndexMeta writes the metadata record for an index. Call with the
// write lock held.
func (s *Storage) persistIndexMeta(idx *Index) error {
	if s.backend == nil {
		return nil
	}
	raw, err := json.Marshal(indexMeta{Settings: idx.Settings, Mappings: idx.Mappings})
	if err != nil {
		return errStorage("encode index metadata", err)
	}
	if err := s.backend.PutIndexMeta(idx.Name, raw); err != nil {
		return errStorage("persist index metadata", err)
	}
	return nil
}

// persistDocument writes a document record. Call with the write lock held.
func (s *Storage) persistDocument(index, id string, body map[string]any) error {
	if s.backend == nil {
		return nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return errStorage("encode document", err)
	}
	if err := s.backend.PutDocument(index, id, raw); err != nil {
		return errStorage("persist document", err)
	}
	return nil
}

// Refresh makes recent writes searchable. Writes are immediately visible
// here, so this only asks the backend to sync.
func (s *Storage) Refresh(index string) error {
	s.logger.Debug("refresh requested", "index", index)
	return s.Flush()
}

// Flush syncs the backend, when one is attached.
func (s *Storage) Flush() error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Flush(); err != nil {
		return errStorage("flush backend", err)
	}
	return nil
}

// Close releases the backend.
func (s *Storage) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
