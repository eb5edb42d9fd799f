package store

import (
	"context"
	"time"

	bolt "go.etcd.io/bbolt"
)

var documentsBucket = []byte("documents")

// BoltStore persists documents in a single bbolt file, one key per
// canonical path. This is the default durable backend for a single-process
// deployment of the engine.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) a bbolt database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Load(_ context.Context, path string) (*Document, error) {
	var text string
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		v := b.Get([]byte(path))
		if v == nil {
			return nil
		}
		found = true
		text = string(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &Document{Path: path, Text: text}, nil
}

func (s *BoltStore) Save(_ context.Context, doc *Document) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		return b.Put([]byte(doc.Path), []byte(doc.Text))
	})
}

func (s *BoltStore) Delete(_ context.Context, path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		if b.Get([]byte(path)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(path))
	})
}
