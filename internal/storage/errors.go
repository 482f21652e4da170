package storage

import (
	"errors"
	"fmt"
	"net/http"

	"searchlite/internal/search"
)

// Kind classifies storage errors for status mapping and logging.
type Kind int

const (
	KindInternal Kind = iota
	KindIndexNotFound
	KindDocumentNotFound
	KindIndexAlreadyExists
	KindInvalidRequest
	KindStorage
)

// Error is the typed error surfaced by every storage operation.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

func errIndexNotFound(name string) error {
	return &Error{Kind: KindIndexNotFound, Reason: fmt.Sprintf("no such index [%s]", name)}
}

func errDocumentNotFound(index, id string) error {
	return &Error{Kind: KindDocumentNotFound, Reason: fmt.Sprintf("document [%s] missing in index [%s]", id, index)}
}

func errIndexExists(name string) error {
	return &Error{Kind: KindIndexAlreadyExists, Reason: fmt.Sprintf("index [%s] already exists", name)}
}

func errInvalidf(format string, args ...any) error {
	return &Error{Kind: KindInvalidRequest, Reason: fmt.Sprintf(format, args...)}
}

// InvalidRequest builds a bad-request error for callers outside the package.
func InvalidRequest(reason string) error {
	return &Error{Kind: KindInvalidRequest, Reason: reason}
}

func errStorage(op string, err error) error {
	return &Error{Kind: KindStorage, Reason: op, Err: err}
}

// wrapQueryError converts clause errors from the search package into
// InvalidRequest errors, leaving typed errors untouched.
func wrapQueryError(err error) error {
	var clauseErr *search.ClauseError
	if errors.As(err, &clauseErr) {
		return &Error{Kind: KindInvalidRequest, Reason: clauseErr.Reason}
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindInternal, Reason: "query evaluation failed", Err: err}
}

// elasticType reports the Elasticsearch error type string for a kind.
func (k Kind) elasticType() string {
	switch k {
	case KindIndexNotFound:
		return "index_not_found_exception"
	case KindDocumentNotFound:
		return "document_missing_exception"
	case KindIndexAlreadyExists:
		return "resource_already_exists_exception"
	case KindInvalidRequest:
		return "invalid_request_exception"
	case KindStorage:
		return "storage_exception"
	}
	return "internal_exception"
}

// StatusOf maps an error to its HTTP status analogue.
func StatusOf(err error) int {
	var typed *Error
	if !errors.As(err, &typed) {
		return http.StatusInternalServerError
	}
	switch typed.Kind {
	case KindIndexNotFound, KindDocumentNotFound:
		return http.StatusNotFound
	case KindIndexAlreadyExists:
		return http.StatusConflict
	case KindInvalidRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ErrorBody renders the Elasticsearch-shaped error JSON for an error.
func ErrorBody(err error) map[string]any {
	kind := KindInternal
	reason := err.Error()
	var typed *Error
	if errors.As(err, &typed) {
		kind = typed.Kind
		reason = typed.Error()
	}
	return map[string]any{
		"error": map[string]any{
			"type":   kind.elasticType(),
			"reason": reason,
		},
		"status": StatusOf(err),
	}
}
