package backend

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	bolt "go.etcd.io/bbolt"
)

const boltBucket = "records"

// Bolt stores records in a single bbolt bucket. Every update runs in its own
// write transaction, so a record is durable once the call returns.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database file under dir.
func OpenBolt(dir string) (*Bolt, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "searchlite.db"), 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) put(key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), value)
	})
}

func (b *Bolt) PutIndexMeta(name string, meta []byte) error {
	if err := b.put(indexKey(name), meta); err != nil {
		return fmt.Errorf("store index metadata for %q: %w", name, err)
	}
	return nil
}

func (b *Bolt) PutDocument(index, id string, doc []byte) error {
	if err := b.put(docKey(index, id), doc); err != nil {
		return fmt.Errorf("store document %q in %q: %w", id, index, err)
	}
	return nil
}

func (b *Bolt) DeleteDocument(index, id string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete([]byte(docKey(index, id)))
	})
	if err != nil {
		return fmt.Errorf("delete document %q from %q: %w", id, index, err)
	}
	return nil
}

func (b *Bolt) DeleteIndex(name string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		if err := bucket.Delete([]byte(indexKey(name))); err != nil {
			return err
		}

		prefix := []byte(docIndexPrefix(name))
		cursor := bucket.Cursor()
		var stale [][]byte
		for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete index %q: %w", name, err)
	}
	return nil
}

func (b *Bolt) LoadAll() (map[string][]byte, map[string]map[string][]byte, error) {
	metas := make(map[string][]byte)
	docs := make(map[string]map[string][]byte)

	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).ForEach(func(k, v []byte) error {
			key := string(k)
			switch {
			case strings.HasPrefix(key, indexPrefix):
				metas[key[len(indexPrefix):]] = append([]byte(nil), v...)
			case strings.HasPrefix(key, docPrefix):
				// Index names cannot contain ':', document ids can.
				rest := key[len(docPrefix):]
				sep := strings.Index(rest, ":")
				if sep < 0 {
					return nil
				}
				index, id := rest[:sep], rest[sep+1:]
				byID, ok := docs[index]
				if !ok {
					byID = make(map[string][]byte)
					docs[index] = byID
				}
				byID[id] = append([]byte(nil), v...)
			}
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scan records: %w", err)
	}
	return metas, docs, nil
}

func (b *Bolt) Flush() error {
	return b.db.Sync()
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
