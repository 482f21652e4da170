// Package backend provides pluggable durable storage for index metadata and
// documents. Records are opaque JSON blobs under the logical keys
// "index:{name}" and "doc:{name}:{id}".
package backend

import "fmt"

// Backend persists index metadata and document records. Implementations must
// make each mutation durable before returning.
type Backend interface {
	// PutIndexMeta stores the serialized {settings, mappings} record.
	PutIndexMeta(name string, meta []byte) error
	// PutDocument stores a serialized document body.
	PutDocument(index, id string, doc []byte) error
	// DeleteDocument removes a single document record.
	DeleteDocument(index, id string) error
	// DeleteIndex removes the index metadata and every document record
	// belonging to the index.
	DeleteIndex(name string) error
	// LoadAll returns all index metadata keyed by name, and all documents
	// keyed by index name then document id.
	LoadAll() (map[string][]byte, map[string]map[string][]byte, error)
	// Flush syncs any buffered state to stable storage.
	Flush() error
	Close() error
}

const (
	indexPrefix = "index:"
	docPrefix   = "doc:"
)

func indexKey(name string) string { return indexPrefix + name }

func docKey(index, id string) string { return docPrefix + index + ":" + id }

func docIndexPrefix(index string) string { return docPrefix + index + ":" }

// Open constructs a backend for the configured driver. Supported drivers are
// "memory" (non-durable, the test double), "bolt" and "sqlite".
func Open(driver, path string) (Backend, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "bolt":
		return OpenBolt(path)
	case "sqlite":
		return OpenSQLite(path)
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}
