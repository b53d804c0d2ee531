package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/turingdb/turingdb/pkg/field"
	"github.com/turingdb/turingdb/pkg/protocol"
)

const fieldsFile = "fields.db"

var bucketFields = []byte("fields")

// Document is the exclusive-access handle over one on-disk store. The mutex
// serializes every operation, including the flush that makes a write
// durable; the key cache mirrors the set of keys in the store and stays
// sorted so membership checks are a binary search.
type Document struct {
	mu   sync.Mutex
	db   *bolt.DB
	keys [][]byte
}

// createDocument makes the document directory and a fresh store inside it.
// The directory must not pre-exist. Failures after the mkdir roll the
// directory back so no orphan is left behind.
func createDocument(path string) (*Document, error) {
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, classify("document create", err)
	}

	db, err := bolt.Open(filepath.Join(path, fieldsFile), 0o600, nil)
	if err != nil {
		os.RemoveAll(path)
		return nil, classify("document create", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFields)
		return err
	})
	if err != nil {
		db.Close()
		os.RemoveAll(path)
		return nil, classify("document create", err)
	}

	return &Document{db: db}, nil
}

// openDocument opens an existing document directory in must-exist mode and
// rebuilds the key cache from the store. The bbolt cursor yields keys in
// byte order, so the cache comes back sorted.
func openDocument(path string) (*Document, error) {
	dbPath := filepath.Join(path, fieldsFile)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, classify("document open", err)
	}

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, classify("document open", err)
	}

	var keys [][]byte
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFields)
		if b == nil {
			return bolt.ErrBucketNotFound
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, classify("document open", err)
	}

	return &Document{db: db, keys: keys}, nil
}

// hasKey reports cache membership. Callers hold d.mu.
func (d *Document) hasKey(key []byte) bool {
	_, found := slices.BinarySearchFunc(d.keys, key, bytes.Compare)
	return found
}

// Keys returns a copy of the cached key list, or DocumentEmpty.
func (d *Document) Keys() *protocol.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.keys) == 0 {
		return protocol.Ack(protocol.DocumentEmpty)
	}
	out := make([][]byte, len(d.keys))
	for i, k := range d.keys {
		out[i] = append([]byte(nil), k...)
	}
	return protocol.FieldKeys(out)
}

// Insert stores a new record under key. The key must be absent; the record
// is durable before the method returns.
func (d *Document) Insert(key, data []byte) (*protocol.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasKey(key) {
		return protocol.Ack(protocol.FieldAlreadyExists), nil
	}

	rec := field.New(data)
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFields).Put(key, rec.Marshal())
	})
	if err != nil {
		return nil, classify("field insert", err)
	}

	idx, _ := slices.BinarySearchFunc(d.keys, key, bytes.Compare)
	d.keys = slices.Insert(d.keys, idx, append([]byte(nil), key...))
	return protocol.Ack(protocol.FieldInserted), nil
}

// Get returns the data portion of the record under key; the timestamps stay
// inside the store.
func (d *Document) Get(key []byte) (*protocol.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasKey(key) {
		return protocol.Ack(protocol.FieldNotFound), nil
	}

	var value []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketFields).Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, classify("field get", err)
	}
	if value == nil {
		return protocol.Ack(protocol.FieldNotFound), nil
	}

	rec, err := field.Unmarshal(value)
	if err != nil {
		return nil, classify("field get", err)
	}
	return protocol.Contents(rec.Data), nil
}

// Remove deletes the record under key in a single transaction and shrinks
// the cache.
func (d *Document) Remove(key []byte) (*protocol.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasKey(key) {
		return protocol.Ack(protocol.FieldNotFound), nil
	}

	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFields).Delete(key)
	})
	if err != nil {
		return nil, classify("field remove", err)
	}

	idx, _ := slices.BinarySearchFunc(d.keys, key, bytes.Compare)
	d.keys = slices.Delete(d.keys, idx, idx+1)
	return protocol.Ack(protocol.FieldDropped), nil
}

// Modify replaces the data under key, refreshing the modification timestamp
// and preserving the creation timestamp. A key that vanished between the
// cache check and the read surfaces as FieldNotFound.
func (d *Document) Modify(key, data []byte) (*protocol.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasKey(key) {
		return protocol.Ack(protocol.FieldNotFound), nil
	}

	missing := false
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFields)
		v := b.Get(key)
		if v == nil {
			missing = true
			return nil
		}
		rec, err := field.Unmarshal(v)
		if err != nil {
			return err
		}
		rec.Update(data)
		return b.Put(key, rec.Marshal())
	})
	if err != nil {
		return nil, classify("field modify", err)
	}
	if missing {
		return protocol.Ack(protocol.FieldNotFound), nil
	}
	return protocol.Ack(protocol.FieldModified), nil
}

// Flush forces the store's dirty pages to stable storage.
func (d *Document) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return classify("flush", d.db.Sync())
}

// Close releases the store handle.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return classify("document close", d.db.Close())
}
