package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofrs/flock"
	homedir "github.com/mitchellh/go-homedir"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/turingdb/turingdb/pkg/events"
	"github.com/turingdb/turingdb/pkg/log"
	"github.com/turingdb/turingdb/pkg/metrics"
	"github.com/turingdb/turingdb/pkg/protocol"
)

const (
	// RepoDirName is the repository directory under the user's home when no
	// explicit path is configured.
	RepoDirName = "TuringDB-Repo"

	lockFileName = ".turingdb.lock"
)

// Engine is the repository registry: the in-memory mirror of the on-disk
// repository. Lookups go through a sharded concurrent map: each shard has its
// own lock and lookups take it only for reading, so operations on different
// databases do not serialize on one registry-wide lock.
type Engine struct {
	dbs     cmap.ConcurrentMap[string, *Database]
	repoDir string
	flk     *flock.Flock
	broker  *events.Broker
	logger  zerolog.Logger
}

// New builds an engine rooted at repoDir. An empty repoDir resolves to
// ~/TuringDB-Repo. The broker may be nil when nothing consumes events.
func New(repoDir string, broker *events.Broker) (*Engine, error) {
	if repoDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		repoDir = filepath.Join(home, RepoDirName)
	}

	return &Engine{
		dbs:     cmap.New[*Database](),
		repoDir: repoDir,
		broker:  broker,
		logger:  log.WithComponent("engine"),
	}, nil
}

// Root returns the repository directory path.
func (e *Engine) Root() string { return e.repoDir }

// IsEmpty reports whether the registry holds no databases.
func (e *Engine) IsEmpty() bool { return e.dbs.IsEmpty() }

func (e *Engine) publish(event *events.Event) {
	if e.broker != nil {
		e.broker.Publish(event)
	}
}

// badName rejects names that are not usable as a single path component.
// Hidden names are reserved for the repository's own files.
func badName(name string) bool {
	return name == "" || name == "." || name == ".." ||
		strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`)
}

// fail journals a classified failure before handing it back.
func (e *Engine) fail(err error, db, doc string) error {
	if err != nil {
		e.publish(&events.Event{Type: events.EventOpFailed, Database: db, Document: doc, Message: err.Error()})
	}
	return err
}

// lockRepo takes the repository's advisory lock so a second process cannot
// mutate the same tree. Idempotent within one engine.
func (e *Engine) lockRepo() error {
	if e.flk != nil {
		return nil
	}
	flk := flock.New(filepath.Join(e.repoDir, lockFileName))
	locked, err := flk.TryLock()
	if err != nil {
		return classify("repo lock", err)
	}
	if !locked {
		return classify("repo lock", fmt.Errorf("repository %s is held by another process", e.repoDir))
	}
	e.flk = flk
	return nil
}

func (e *Engine) unlockRepo() {
	if e.flk != nil {
		e.flk.Unlock()
		e.flk = nil
	}
}

// RepoCreate makes the repository root directory and takes its lock.
func (e *Engine) RepoCreate() (*protocol.Result, error) {
	if err := os.Mkdir(e.repoDir, 0o755); err != nil {
		return nil, classify("repo create", err)
	}
	if err := e.lockRepo(); err != nil {
		return nil, err
	}

	e.publish(&events.Event{Type: events.EventRepoCreated})
	return protocol.Ack(protocol.RepoCreated), nil
}

// RepoDrop closes every open document, releases the lock, and removes the
// repository tree. A missing root comes back as a KindNotFound error.
func (e *Engine) RepoDrop() (*protocol.Result, error) {
	if _, err := os.Stat(e.repoDir); err != nil {
		return nil, classify("repo drop", err)
	}
	for item := range e.dbs.IterBuffered() {
		item.Val.closeAll()
	}
	e.dbs.Clear()
	e.unlockRepo()

	if err := os.RemoveAll(e.repoDir); err != nil {
		return nil, classify("repo drop", err)
	}

	metrics.DatabasesTotal.Set(0)
	e.publish(&events.Event{Type: events.EventRepoDropped})
	return protocol.Ack(protocol.RepoDropped), nil
}

// RepoInit reconstructs the registry from the on-disk layout. A missing root
// is not an error: the repository has simply not been created yet. A bad
// entry is logged and skipped; its siblings still load.
func (e *Engine) RepoInit() error {
	entries, err := os.ReadDir(e.repoDir)
	if err != nil {
		if os.IsNotExist(err) {
			e.logger.Info().Str("path", e.repoDir).Msg("no repository on disk yet")
			return nil
		}
		return classify("repo init", err)
	}

	if err := e.lockRepo(); err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			e.warnStray(entry)
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		db, err := e.loadDatabase(filepath.Join(e.repoDir, name))
		if err != nil {
			e.logger.Warn().Err(err).Str("database", name).Msg("skipping unloadable database")
			continue
		}
		e.dbs.Set(name, db)
	}

	metrics.DatabasesTotal.Set(float64(e.dbs.Count()))
	e.publish(&events.Event{Type: events.EventRepoInitialized})
	e.logger.Info().Int("databases", e.dbs.Count()).Str("path", e.repoDir).Msg("repository initialized")
	return nil
}

func (e *Engine) warnStray(entry fs.DirEntry) {
	e.logger.Warn().Str("entry", entry.Name()).Msg("ignoring non-directory entry in repository")
}

// loadDatabase opens every document directory under dbDir in must-exist
// mode, rebuilding each key cache from the store.
func (e *Engine) loadDatabase(dbDir string) (*Database, error) {
	entries, err := os.ReadDir(dbDir)
	if err != nil {
		return nil, classify("db load", err)
	}

	db := newDatabase()
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.IsDir() {
			e.logger.Warn().Str("entry", entry.Name()).Str("path", dbDir).
				Msg("ignoring non-directory entry in database")
			continue
		}
		doc, err := openDocument(filepath.Join(dbDir, entry.Name()))
		if err != nil {
			e.logger.Warn().Err(err).Str("document", entry.Name()).Str("path", dbDir).
				Msg("skipping unloadable document")
			continue
		}
		db.attach(entry.Name(), doc)
	}
	return db, nil
}

// DbCreate makes the database directory and registers an empty document
// map. Both must succeed or neither is observable.
func (e *Engine) DbCreate(name string) (*protocol.Result, error) {
	if name == "" {
		return protocol.OpError(protocol.OpDbCreate, "DB_NAME_EMPTY"), nil
	}
	if badName(name) {
		return protocol.OpError(protocol.OpDbCreate, "DB_NAME_NOT_A_PATH_COMPONENT"), nil
	}
	if e.dbs.Has(name) {
		return protocol.Ack(protocol.DbAlreadyExists), nil
	}

	if err := os.Mkdir(filepath.Join(e.repoDir, name), 0o755); err != nil {
		classified := classify("db create", err)
		if KindOf(classified) == KindAlreadyExists {
			return protocol.Ack(protocol.DbAlreadyExists), nil
		}
		return nil, e.fail(classified, name, "")
	}

	if !e.dbs.SetIfAbsent(name, newDatabase()) {
		// lost a race with a concurrent create; roll our directory back
		os.RemoveAll(filepath.Join(e.repoDir, name))
		return protocol.Ack(protocol.DbAlreadyExists), nil
	}

	metrics.DatabasesTotal.Set(float64(e.dbs.Count()))
	e.publish(&events.Event{Type: events.EventDbCreated, Database: name})
	return protocol.Ack(protocol.DbCreated), nil
}

// DbDrop unregisters the database, closes its documents, and removes its
// directory recursively.
func (e *Engine) DbDrop(name string) (*protocol.Result, error) {
	if name == "" {
		return protocol.OpError(protocol.OpDbDrop, "DB_NAME_EMPTY"), nil
	}

	db, ok := e.dbs.Pop(name)
	if !ok {
		return protocol.Ack(protocol.DbNotFound), nil
	}
	db.closeAll()

	if err := os.RemoveAll(filepath.Join(e.repoDir, name)); err != nil {
		return nil, e.fail(classify("db drop", err), name, "")
	}

	metrics.DatabasesTotal.Set(float64(e.dbs.Count()))
	e.publish(&events.Event{Type: events.EventDbDropped, Database: name})
	return protocol.Ack(protocol.DbDropped), nil
}

// DbList returns the database names sorted, or RepoEmpty.
func (e *Engine) DbList() *protocol.Result {
	if e.dbs.IsEmpty() {
		return protocol.Ack(protocol.RepoEmpty)
	}
	names := e.dbs.Keys()
	slices.Sort(names)
	return protocol.NameList(protocol.DbListed, names)
}

// database resolves one registry entry.
func (e *Engine) database(name string) (*Database, bool) {
	return e.dbs.Get(name)
}

// DocumentCreate creates a document inside db.
func (e *Engine) DocumentCreate(dbName, docName string) (*protocol.Result, error) {
	if docName == "" {
		return protocol.OpError(protocol.OpDocumentCreate, "DOCUMENT_NAME_EMPTY"), nil
	}
	if badName(docName) {
		return protocol.OpError(protocol.OpDocumentCreate, "DOCUMENT_NAME_NOT_A_PATH_COMPONENT"), nil
	}
	db, ok := e.database(dbName)
	if !ok {
		return protocol.Ack(protocol.DbNotFound), nil
	}

	res, err := db.DocumentCreate(filepath.Join(e.repoDir, dbName), docName)
	if err == nil && res.Kind == protocol.DocumentCreated {
		e.publish(&events.Event{Type: events.EventDocumentCreated, Database: dbName, Document: docName})
	}
	return res, e.fail(err, dbName, docName)
}

// DocumentDrop removes a document from db.
func (e *Engine) DocumentDrop(dbName, docName string) (*protocol.Result, error) {
	if docName == "" {
		return protocol.OpError(protocol.OpDocumentDrop, "DOCUMENT_NAME_EMPTY"), nil
	}
	db, ok := e.database(dbName)
	if !ok {
		return protocol.Ack(protocol.DbNotFound), nil
	}

	res, err := db.DocumentDrop(filepath.Join(e.repoDir, dbName), docName)
	if err == nil && res.Kind == protocol.DocumentDropped {
		e.publish(&events.Event{Type: events.EventDocumentDropped, Database: dbName, Document: docName})
	}
	return res, e.fail(err, dbName, docName)
}

// DocumentList lists db's documents in insertion order.
func (e *Engine) DocumentList(dbName string) (*protocol.Result, error) {
	db, ok := e.database(dbName)
	if !ok {
		return protocol.Ack(protocol.DbNotFound), nil
	}
	return db.DocumentList(), nil
}

// Flush fsyncs one document's store.
func (e *Engine) Flush(dbName, docName string) (*protocol.Result, error) {
	db, ok := e.database(dbName)
	if !ok {
		return protocol.Ack(protocol.DbNotFound), nil
	}

	res, err := db.Flush(docName)
	if err == nil && res.Kind == protocol.Committed {
		e.publish(&events.Event{Type: events.EventFlushed, Database: dbName, Document: docName})
	}
	return res, err
}

// resolveDocument walks database then document, surfacing the miss at the
// right level.
func (e *Engine) resolveDocument(dbName, docName string) (*Document, *protocol.Result) {
	db, ok := e.database(dbName)
	if !ok {
		return nil, protocol.Ack(protocol.DbNotFound)
	}
	doc, ok := db.document(docName)
	if !ok {
		return nil, protocol.Ack(protocol.DocumentNotFound)
	}
	return doc, nil
}

// FieldInsert stores a new field; the write is durable before the result is
// returned.
func (e *Engine) FieldInsert(dbName, docName string, key, data []byte) (*protocol.Result, error) {
	if len(key) == 0 {
		return protocol.OpError(protocol.OpFieldInsert, "FIELD_NAME_EMPTY"), nil
	}
	if len(data) == 0 {
		return protocol.OpError(protocol.OpFieldInsert, "FIELD_PAYLOAD_EMPTY"), nil
	}

	doc, miss := e.resolveDocument(dbName, docName)
	if miss != nil {
		return miss, nil
	}

	res, err := doc.Insert(key, data)
	if err == nil && res.Kind == protocol.FieldInserted {
		e.publish(&events.Event{Type: events.EventFieldInserted, Database: dbName, Document: docName, Field: string(key)})
	}
	return res, e.fail(err, dbName, docName)
}

// FieldGet returns the data stored under key.
func (e *Engine) FieldGet(dbName, docName string, key []byte) (*protocol.Result, error) {
	if len(key) == 0 {
		return protocol.OpError(protocol.OpFieldGet, "FIELD_NAME_EMPTY"), nil
	}
	doc, miss := e.resolveDocument(dbName, docName)
	if miss != nil {
		return miss, nil
	}
	return doc.Get(key)
}

// FieldRemove deletes the field under key.
func (e *Engine) FieldRemove(dbName, docName string, key []byte) (*protocol.Result, error) {
	if len(key) == 0 {
		return protocol.OpError(protocol.OpFieldRemove, "FIELD_NAME_EMPTY"), nil
	}
	doc, miss := e.resolveDocument(dbName, docName)
	if miss != nil {
		return miss, nil
	}

	res, err := doc.Remove(key)
	if err == nil && res.Kind == protocol.FieldDropped {
		e.publish(&events.Event{Type: events.EventFieldDropped, Database: dbName, Document: docName, Field: string(key)})
	}
	return res, e.fail(err, dbName, docName)
}

// FieldModify replaces the data under key, keeping its creation timestamp.
func (e *Engine) FieldModify(dbName, docName string, key, data []byte) (*protocol.Result, error) {
	if len(key) == 0 {
		return protocol.OpError(protocol.OpFieldModify, "FIELD_NAME_EMPTY"), nil
	}
	if len(data) == 0 {
		return protocol.OpError(protocol.OpFieldModify, "FIELD_PAYLOAD_EMPTY"), nil
	}

	doc, miss := e.resolveDocument(dbName, docName)
	if miss != nil {
		return miss, nil
	}

	res, err := doc.Modify(key, data)
	if err == nil && res.Kind == protocol.FieldModified {
		e.publish(&events.Event{Type: events.EventFieldModified, Database: dbName, Document: docName, Field: string(key)})
	}
	return res, e.fail(err, dbName, docName)
}

// FieldList returns the document's cached key list.
func (e *Engine) FieldList(dbName, docName string) (*protocol.Result, error) {
	doc, miss := e.resolveDocument(dbName, docName)
	if miss != nil {
		return miss, nil
	}
	return doc.Keys(), nil
}

// Close releases every document handle and the repository lock. The engine
// is unusable afterwards.
func (e *Engine) Close() error {
	for item := range e.dbs.IterBuffered() {
		item.Val.closeAll()
	}
	e.dbs.Clear()
	e.unlockRepo()
	return nil
}
