package storage

import (
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/turingdb/turingdb/pkg/protocol"
)

// Database is the named mapping document-name → document handle, persisted
// as one directory under the repository root. Structural changes take the
// write lock; field operations take a read lock and then the document's own
// mutex, so work on different documents proceeds in parallel.
type Database struct {
	mu    sync.RWMutex
	docs  map[string]*Document
	order []string
}

func newDatabase() *Database {
	return &Database{docs: make(map[string]*Document)}
}

// attach registers an already-open document, used by the recovery walk.
func (db *Database) attach(name string, doc *Document) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.docs[name] = doc
	db.order = append(db.order, name)
}

// document resolves a handle under the read lock.
func (db *Database) document(name string) (*Document, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	doc, ok := db.docs[name]
	return doc, ok
}

// DocumentCreate makes a fresh store under dir and registers it.
func (db *Database) DocumentCreate(dir, name string) (*protocol.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.docs[name]; ok {
		return protocol.Ack(protocol.DocumentAlreadyExists), nil
	}

	doc, err := createDocument(filepath.Join(dir, name))
	if err != nil {
		if KindOf(err) == KindAlreadyExists {
			return protocol.Ack(protocol.DocumentAlreadyExists), nil
		}
		return nil, err
	}

	db.docs[name] = doc
	db.order = append(db.order, name)
	return protocol.Ack(protocol.DocumentCreated), nil
}

// DocumentDrop unregisters the document, then removes its directory
// recursively.
func (db *Database) DocumentDrop(dir, name string) (*protocol.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	doc, ok := db.docs[name]
	if !ok {
		return protocol.Ack(protocol.DocumentNotFound), nil
	}

	delete(db.docs, name)
	if idx := slices.Index(db.order, name); idx >= 0 {
		db.order = slices.Delete(db.order, idx, idx+1)
	}

	doc.Close()
	if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
		return nil, classify("document drop", err)
	}
	return protocol.Ack(protocol.DocumentDropped), nil
}

// DocumentList returns the document names in insertion order, or DbEmpty.
func (db *Database) DocumentList() *protocol.Result {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.order) == 0 {
		return protocol.Ack(protocol.DbEmpty)
	}
	return protocol.NameList(protocol.DocumentListed, slices.Clone(db.order))
}

// Documents returns the document names sorted, for callers that want a
// stable order regardless of creation history.
func (db *Database) Documents() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := slices.Clone(db.order)
	slices.Sort(names)
	return names
}

// Flush fsyncs one document's store.
func (db *Database) Flush(name string) (*protocol.Result, error) {
	doc, ok := db.document(name)
	if !ok {
		return protocol.Ack(protocol.DocumentNotFound), nil
	}
	if err := doc.Flush(); err != nil {
		return nil, err
	}
	return protocol.Ack(protocol.Committed), nil
}

// closeAll releases every document handle; used on database drop and on
// engine shutdown.
func (db *Database) closeAll() {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, doc := range db.docs {
		doc.Close()
	}
	db.docs = make(map[string]*Document)
	db.order = nil
}
