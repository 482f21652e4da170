package backend

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite stores records in a single key/value table, keeping the same
// logical key layout as the other drivers. Synchronous mode is left at the
// driver default (FULL), so committed writes are durable.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file under dir.
func OpenSQLite(dir string) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "searchlite.sqlite"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS records (k TEXT PRIMARY KEY, v BLOB NOT NULL)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) put(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO records (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		key, value,
	)
	return err
}

func (s *SQLite) PutIndexMeta(name string, meta []byte) error {
	if err := s.put(indexKey(name), meta); err != nil {
		return fmt.Errorf("store index metadata for %q: %w", name, err)
	}
	return nil
}

func (s *SQLite) PutDocument(index, id string, doc []byte) error {
	if err := s.put(docKey(index, id), doc); err != nil {
		return fmt.Errorf("store document %q in %q: %w", id, index, err)
	}
	return nil
}

func (s *SQLite) DeleteDocument(index, id string) error {
	if _, err := s.db.Exec(`DELETE FROM records WHERE k = ?`, docKey(index, id)); err != nil {
		return fmt.Errorf("delete document %q from %q: %w", id, index, err)
	}
	return nil
}

func (s *SQLite) DeleteIndex(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete index %q: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM records WHERE k = ?`, indexKey(name)); err != nil {
		return fmt.Errorf("delete index %q: %w", name, err)
	}
	pattern := strings.ReplaceAll(docIndexPrefix(name), "_", `\_`) + "%"
	if _, err := tx.Exec(`DELETE FROM records WHERE k LIKE ? ESCAPE '\'`, pattern); err != nil {
		return fmt.Errorf("delete documents of %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete index %q: %w", name, err)
	}
	return nil
}

func (s *SQLite) LoadAll() (map[string][]byte, map[string]map[string][]byte, error) {
	rows, err := s.db.Query(`SELECT k, v FROM records`)
	if err != nil {
		return nil, nil, fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	metas := make(map[string][]byte)
	docs := make(map[string]map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, nil, fmt.Errorf("scan record: %w", err)
		}
		switch {
		case strings.HasPrefix(key, indexPrefix):
			metas[key[len(indexPrefix):]] = value
		case strings.HasPrefix(key, docPrefix):
			// Index names cannot contain ':', document ids can.
			rest := key[len(docPrefix):]
			sep := strings.Index(rest, ":")
			if sep < 0 {
				continue
			}
			index, id := rest[:sep], rest[sep+1:]
			byID, ok := docs[index]
			if !ok {
				byID = make(map[string][]byte)
				docs[index] = byID
			}
			byID[id] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan records: %w", err)
	}
	return metas, docs, nil
}

func (s *SQLite) Flush() error { return nil }

func (s *SQLite) Close() error { return s.db.Close() }
