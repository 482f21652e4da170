package storage

import (
	"github.com/google/uuid"
)

// PutResult reports whether an index-document call created a new document or
// replaced an existing one, for the 201-versus-200 distinction at the HTTP
// boundary.
type PutResult struct {
	Created bool
}

// IndexDocument stores a document under the given id, replacing any previous
// body in full.
func (s *Storage) IndexDocument(index, id string, body map[string]any) (PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexDocumentLocked(index, id, body)
}

func (s *Storage) indexDocumentLocked(index, id string, body map[string]any) (PutResult, error) {
	idx, ok := s.indices[index]
	if !ok {
		return PutResult{}, errIndexNotFound(index)
	}
	if err := s.persistDocument(index, id, body); err != nil {
		return PutResult{}, err
	}
	created := idx.put(id, body)
	s.logger.Debug("document indexed", "index", index, "id", id, "created", created)
	return PutResult{Created: created}, nil
}

// newDocumentID generates a fresh document id.
func newDocumentID() string { return uuid.NewString() }

// CreateDocument stores a document under a freshly generated id.
func (s *Storage) CreateDocument(index string, body map[string]any) (string, PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newDocumentID()
	result, err := s.indexDocumentLocked(index, id, body)
	if err != nil {
		return "", PutResult{}, err
	}
	return id, result, nil
}

// GetDocument returns the Elasticsearch-shaped document envelope.
func (s *Storage) GetDocument(index, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indices[index]
	if !ok {
		s.logger.Debug("get on missing index", "index", index, "id", id)
		return nil, errIndexNotFound(index)
	}
	doc, ok := idx.get(id)
	if !ok {
		s.logger.Debug("get on missing document", "index", index, "id", id)
		return nil, errDocumentNotFound(index, id)
	}
	return map[string]any{
		"_index":   index,
		"_type":    "_doc",
		"_id":      id,
		"_version": 1,
		"found":    true,
		"_source":  doc.Body,
	}, nil
}

// DeleteDocument removes a document from an index.
func (s *Storage) DeleteDocument(index, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteDocumentLocked(index, id)
}

func (s *Storage) deleteDocumentLocked(index, id string) error {
	idx, ok := s.indices[index]
	if !ok {
		return errIndexNotFound(index)
	}
	if _, present := idx.get(id); !present {
		return errDocumentNotFound(index, id)
	}
	if s.backend != nil {
		if err := s.backend.DeleteDocument(index, id); err != nil {
			return errStorage("delete document from backend", err)
		}
	}
	idx.delete(id)
	s.logger.Debug("document deleted", "index", index, "id", id)
	return nil
}
