package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// BulkAction is one parsed action from an NDJSON bulk body.
type BulkAction struct {
	Type  string
	Index string
	ID    string
	Doc   map[string]any
}

// BulkResponse is the Elasticsearch-shaped bulk result.
type BulkResponse struct {
	Took   int64            `json:"took"`
	Errors bool             `json:"errors"`
	Items  []map[string]any `json:"items"`
}

// ParseBulkBody decodes an NDJSON bulk request body into actions.
// defaultIndex fills in actions whose metadata omits _index; a missing index
// with no default is a parse error and fails the whole request.
func ParseBulkBody(body []byte, defaultIndex string) ([]BulkAction, error) {
	var actions []BulkAction

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var meta map[string]json.RawMessage
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, errInvalidf("malformed action line %d: %v", line, err)
		}
		if len(meta) != 1 {
			return nil, errInvalidf("action line %d must contain exactly one operation", line)
		}

		var action BulkAction
		for opType, rawHeader := range meta {
			switch opType {
			case "index", "create", "update", "delete":
			default:
				return nil, errInvalidf("unknown bulk operation %q on line %d", opType, line)
			}
			var header struct {
				Index string `json:"_index"`
				ID    string `json:"_id"`
			}
			if err := json.Unmarshal(rawHeader, &header); err != nil {
				return nil, errInvalidf("malformed %s header on line %d: %v", opType, line, err)
			}
			action = BulkAction{Type: opType, Index: header.Index, ID: header.ID}
		}
		if action.Index == "" {
			action.Index = defaultIndex
		}
		if action.Index == "" {
			return nil, errInvalidf("action on line %d has no _index and the request has no default", line)
		}

		if action.Type != "delete" {
			if !scanner.Scan() {
				return nil, errInvalidf("%s action on line %d is missing its source line", action.Type, line)
			}
			line++
			var source map[string]any
			if err := json.Unmarshal(scanner.Bytes(), &source); err != nil {
				return nil, errInvalidf("malformed source on line %d: %v", line, err)
			}
			if action.Type == "update" {
				doc, ok := source["doc"].(map[string]any)
				if !ok {
					return nil, errInvalidf("update source on line %d has no doc object", line)
				}
				action.Doc = doc
			} else {
				action.Doc = source
			}
		}
		actions = append(actions, action)
	}
	if err := scanner.Err(); err != nil {
		return nil, errInvalidf("read bulk body: %v", err)
	}
	return actions, nil
}

// ExecuteBulk applies a batch of actions under a single write lock. Items
// fail independently; an item error never aborts the rest of the batch.
func (s *Storage) ExecuteBulk(actions []BulkAction) BulkResponse {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := BulkResponse{Items: make([]map[string]any, 0, len(actions))}
	for _, action := range actions {
		item, failed := s.executeBulkAction(action)
		if failed {
			resp.Errors = true
		}
		resp.Items = append(resp.Items, map[string]any{action.Type: item})
	}
	resp.Took = time.Since(start).Milliseconds()
	return resp
}

func (s *Storage) executeBulkAction(action BulkAction) (map[string]any, bool) {
	id := action.ID
	if id == "" && action.Type != "delete" {
		id = newDocumentID()
	}

	var result string
	var status int
	var err error

	switch action.Type {
	case "index":
		var put PutResult
		put, err = s.indexDocumentLocked(action.Index, id, action.Doc)
		if err == nil {
			if put.Created {
				result, status = "created", http.StatusCreated
			} else {
				result, status = "updated", http.StatusOK
			}
		}
	case "create":
		err = s.createDocumentLocked(action.Index, id, action.Doc)
		if err == nil {
			result, status = "created", http.StatusCreated
		}
	case "update":
		err = s.updateDocumentLocked(action.Index, id, action.Doc)
		if err == nil {
			result, status = "updated", http.StatusOK
		}
	case "delete":
		err = s.deleteDocumentLocked(action.Index, id)
		if err == nil {
			result, status = "deleted", http.StatusOK
		}
	}

	if err != nil {
		s.logger.Debug("bulk item failed", "op", action.Type, "index", action.Index, "id", id, "error", err)
		body := ErrorBody(err)
		return map[string]any{
			"_index": action.Index,
			"_type":  "_doc",
			"_id":    id,
			"status": StatusOf(err),
			"error":  body["error"],
			"_shards": map[string]any{
				"total": 1, "successful": 0, "failed": 1,
			},
		}, true
	}

	return map[string]any{
		"_index":   action.Index,
		"_type":    "_doc",
		"_id":      id,
		"_version": 1,
		"result":   result,
		"status":   status,
		"_shards": map[string]any{
			"total": 1, "successful": 1, "failed": 0,
		},
	}, false
}

// createDocumentLocked stores a document only if the id is not taken.
func (s *Storage) createDocumentLocked(index, id string, body map[string]any) error {
	idx, ok := s.indices[index]
	if !ok {
		return errIndexNotFound(index)
	}
	if _, present := idx.get(id); present {
		return &Error{
			Kind:   KindIndexAlreadyExists,
			Reason: fmt.Sprintf("document [%s] already exists in index [%s]", id, index),
		}
	}
	_, err := s.indexDocumentLocked(index, id, body)
	return err
}

// updateDocumentLocked shallow-merges a partial body onto an existing
// document. Absent documents fail; bulk update does not upsert.
func (s *Storage) updateDocumentLocked(index, id string, partial map[string]any) error {
	idx, ok := s.indices[index]
	if !ok {
		return errIndexNotFound(index)
	}
	doc, present := idx.get(id)
	if !present {
		return errDocumentNotFound(index, id)
	}

	merged := make(map[string]any, len(doc.Body)+len(partial))
	for k, v := range doc.Body {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}
	_, err := s.indexDocumentLocked(index, id, merged)
	return err
}
