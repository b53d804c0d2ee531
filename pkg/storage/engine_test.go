package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turingdb/turingdb/pkg/protocol"
)

// must returns a helper that unwraps (result, error) pairs, failing the test
// on any engine error.
func must(t *testing.T) func(*protocol.Result, error) *protocol.Result {
	return func(res *protocol.Result, err error) *protocol.Result {
		t.Helper()
		require.NoError(t, err)
		return res
	}
}

// newTestEngine builds an engine rooted in a fresh temp directory with the
// repository already created.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	repoDir := filepath.Join(t.TempDir(), "repo")
	engine, err := New(repoDir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	res, err := engine.RepoCreate()
	require.NoError(t, err)
	require.Equal(t, protocol.RepoCreated, res.Kind)
	return engine
}

// TestRepoCreate tests repository creation and the double-create conflict
func TestRepoCreate(t *testing.T) {
	repoDir := filepath.Join(t.TempDir(), "repo")
	engine, err := New(repoDir, nil)
	require.NoError(t, err)
	defer engine.Close()

	res, err := engine.RepoCreate()
	require.NoError(t, err)
	assert.Equal(t, protocol.RepoCreated, res.Kind)
	assert.DirExists(t, repoDir)

	_, err = engine.RepoCreate()
	require.Error(t, err)
	assert.Equal(t, KindAlreadyExists, KindOf(err))
}

// TestRepoDrop tests that dropping removes the tree and empties the registry
func TestRepoDrop(t *testing.T) {
	engine := newTestEngine(t)
	ok := must(t)

	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)

	assert.Equal(t, protocol.RepoDropped, ok(engine.RepoDrop()).Kind)
	assert.NoDirExists(t, engine.Root())
	assert.True(t, engine.IsEmpty())
}

// TestDbLifecycle tests create, list, double create, drop, drop of absent
func TestDbLifecycle(t *testing.T) {
	engine := newTestEngine(t)
	ok := must(t)

	assert.Equal(t, protocol.RepoEmpty, engine.DbList().Kind)

	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)
	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db1")).Kind)
	assert.DirExists(t, filepath.Join(engine.Root(), "db0"))

	list := engine.DbList()
	assert.Equal(t, protocol.DbListed, list.Kind)
	assert.Equal(t, []string{"db0", "db1"}, list.Names)

	// double create: no side effects
	assert.Equal(t, protocol.DbAlreadyExists, ok(engine.DbCreate("db0")).Kind)
	assert.Len(t, engine.DbList().Names, 2)

	assert.Equal(t, protocol.DbDropped, ok(engine.DbDrop("db0")).Kind)
	assert.NoDirExists(t, filepath.Join(engine.Root(), "db0"))
	assert.Equal(t, protocol.DbNotFound, ok(engine.DbDrop("db0")).Kind)

	// create-after-drop succeeds again
	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)
}

// TestDbCreateValidation tests the empty-name rejection
func TestDbCreateValidation(t *testing.T) {
	engine := newTestEngine(t)
	ok := must(t)

	res := ok(engine.DbCreate(""))
	assert.Equal(t, protocol.EncounteredErrors, res.Kind)
	assert.Contains(t, res.Message, "DB_NAME_EMPTY")
}

// TestDocumentLifecycle tests document create/list/drop through the engine
func TestDocumentLifecycle(t *testing.T) {
	engine := newTestEngine(t)
	ok := must(t)

	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)
	assert.Equal(t, protocol.DbEmpty, ok(engine.DocumentList("db0")).Kind)

	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db0", "doc0")).Kind)
	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db0", "doc1")).Kind)
	assert.Equal(t, protocol.DocumentAlreadyExists, ok(engine.DocumentCreate("db0", "doc0")).Kind)
	assert.DirExists(t, filepath.Join(engine.Root(), "db0", "doc0"))
	assert.FileExists(t, filepath.Join(engine.Root(), "db0", "doc0", fieldsFile))

	list := ok(engine.DocumentList("db0"))
	assert.Equal(t, protocol.DocumentListed, list.Kind)
	// insertion order
	assert.Equal(t, []string{"doc0", "doc1"}, list.Names)

	assert.Equal(t, protocol.DocumentDropped, ok(engine.DocumentDrop("db0", "doc0")).Kind)
	assert.NoDirExists(t, filepath.Join(engine.Root(), "db0", "doc0"))
	assert.Equal(t, protocol.DocumentNotFound, ok(engine.DocumentDrop("db0", "doc0")).Kind)

	// misses resolve at the right level
	assert.Equal(t, protocol.DbNotFound, ok(engine.DocumentCreate("nope", "doc0")).Kind)
	assert.Equal(t, protocol.DbNotFound, ok(engine.DocumentList("nope")).Kind)
}

// TestFieldLifecycle tests insert/get/modify/remove/list against one document
func TestFieldLifecycle(t *testing.T) {
	engine := newTestEngine(t)
	ok := must(t)

	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)
	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db0", "doc0")).Kind)
	assert.Equal(t, protocol.DocumentEmpty, ok(engine.FieldList("db0", "doc0")).Kind)

	assert.Equal(t, protocol.FieldInserted, ok(engine.FieldInsert("db0", "doc0", []byte("field0"), []byte("hello"))).Kind)
	assert.Equal(t, protocol.FieldAlreadyExists, ok(engine.FieldInsert("db0", "doc0", []byte("field0"), []byte("world"))).Kind)

	got := ok(engine.FieldGet("db0", "doc0", []byte("field0")))
	assert.Equal(t, protocol.FieldContents, got.Kind)
	assert.Equal(t, []byte("hello"), got.Data)

	assert.Equal(t, protocol.FieldModified, ok(engine.FieldModify("db0", "doc0", []byte("field0"), []byte("world"))).Kind)
	got = ok(engine.FieldGet("db0", "doc0", []byte("field0")))
	assert.Equal(t, []byte("world"), got.Data)

	assert.Equal(t, protocol.FieldNotFound, ok(engine.FieldModify("db0", "doc0", []byte("missing"), []byte("x"))).Kind)
	assert.Equal(t, protocol.FieldNotFound, ok(engine.FieldGet("db0", "doc0", []byte("missing"))).Kind)

	assert.Equal(t, protocol.FieldInserted, ok(engine.FieldInsert("db0", "doc0", []byte("afield"), []byte("z"))).Kind)
	list := ok(engine.FieldList("db0", "doc0"))
	// sorted key cache
	assert.Equal(t, [][]byte{[]byte("afield"), []byte("field0")}, list.Fields)

	assert.Equal(t, protocol.FieldDropped, ok(engine.FieldRemove("db0", "doc0", []byte("field0"))).Kind)
	assert.Equal(t, protocol.FieldNotFound, ok(engine.FieldRemove("db0", "doc0", []byte("field0"))).Kind)
	list = ok(engine.FieldList("db0", "doc0"))
	assert.Equal(t, [][]byte{[]byte("afield")}, list.Fields)

	// misses at the document and database levels
	assert.Equal(t, protocol.DocumentNotFound, ok(engine.FieldGet("db0", "nope", []byte("x"))).Kind)
	assert.Equal(t, protocol.DbNotFound, ok(engine.FieldGet("nope", "doc0", []byte("x"))).Kind)
}

// TestFieldValidation tests empty-key and empty-payload rejection
func TestFieldValidation(t *testing.T) {
	engine := newTestEngine(t)
	ok := must(t)

	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)
	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db0", "doc0")).Kind)

	res := ok(engine.FieldInsert("db0", "doc0", nil, []byte("x")))
	assert.Equal(t, protocol.EncounteredErrors, res.Kind)
	assert.Contains(t, res.Message, "FIELD_NAME_EMPTY")

	res = ok(engine.FieldInsert("db0", "doc0", []byte("k"), nil))
	assert.Equal(t, protocol.EncounteredErrors, res.Kind)
	assert.Contains(t, res.Message, "FIELD_PAYLOAD_EMPTY")

	// no side effects from rejected inserts
	assert.Equal(t, protocol.DocumentEmpty, ok(engine.FieldList("db0", "doc0")).Kind)
}

// TestFlush tests the explicit flush operation
func TestFlush(t *testing.T) {
	engine := newTestEngine(t)
	ok := must(t)

	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)
	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db0", "doc0")).Kind)

	assert.Equal(t, protocol.Committed, ok(engine.Flush("db0", "doc0")).Kind)
	assert.Equal(t, protocol.DocumentNotFound, ok(engine.Flush("db0", "nope")).Kind)
	assert.Equal(t, protocol.DbNotFound, ok(engine.Flush("nope", "doc0")).Kind)
}

// TestRecoveryWalk tests that a restart rebuilds the registry from disk
func TestRecoveryWalk(t *testing.T) {
	repoDir := filepath.Join(t.TempDir(), "repo")
	ok := must(t)

	engine, err := New(repoDir, nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.RepoCreated, ok(engine.RepoCreate()).Kind)
	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)
	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db1")).Kind)
	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db0", "doc0")).Kind)
	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db1", "doc0")).Kind)
	assert.Equal(t, protocol.FieldInserted, ok(engine.FieldInsert("db0", "doc0", []byte("field0"), []byte("hello"))).Kind)
	assert.Equal(t, protocol.FieldInserted, ok(engine.FieldInsert("db0", "doc0", []byte("field1"), []byte("world"))).Kind)
	require.NoError(t, engine.Close())

	// stray files beside the databases must not break the walk
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "ops.log"), []byte("{}\n"), 0o644))

	restarted, err := New(repoDir, nil)
	require.NoError(t, err)
	defer restarted.Close()
	require.NoError(t, restarted.RepoInit())

	list := restarted.DbList()
	assert.Equal(t, []string{"db0", "db1"}, list.Names)

	docs := ok(restarted.DocumentList("db0"))
	assert.Equal(t, []string{"doc0"}, docs.Names)

	keys := ok(restarted.FieldList("db0", "doc0"))
	assert.Equal(t, [][]byte{[]byte("field0"), []byte("field1")}, keys.Fields)

	got := ok(restarted.FieldGet("db0", "doc0", []byte("field0")))
	assert.Equal(t, []byte("hello"), got.Data)
}

// TestRecoveryMissingRoot tests that a missing repository is not an error
func TestRecoveryMissingRoot(t *testing.T) {
	engine, err := New(filepath.Join(t.TempDir(), "never-created"), nil)
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.RepoInit())
	assert.True(t, engine.IsEmpty())
	assert.Equal(t, protocol.RepoEmpty, engine.DbList().Kind)
}

// TestRecoverySkipsBadEntry tests the log-and-continue policy for an entry
// that cannot be loaded as a document
func TestRecoverySkipsBadEntry(t *testing.T) {
	repoDir := filepath.Join(t.TempDir(), "repo")
	ok := must(t)

	engine, err := New(repoDir, nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.RepoCreated, ok(engine.RepoCreate()).Kind)
	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)
	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db0", "good")).Kind)
	assert.Equal(t, protocol.FieldInserted, ok(engine.FieldInsert("db0", "good", []byte("k"), []byte("v"))).Kind)
	require.NoError(t, engine.Close())

	// a document directory without a store inside it
	require.NoError(t, os.Mkdir(filepath.Join(repoDir, "db0", "broken"), 0o755))

	restarted, err := New(repoDir, nil)
	require.NoError(t, err)
	defer restarted.Close()
	require.NoError(t, restarted.RepoInit())

	docs := ok(restarted.DocumentList("db0"))
	assert.Equal(t, []string{"good"}, docs.Names)

	got := ok(restarted.FieldGet("db0", "good", []byte("k")))
	assert.Equal(t, []byte("v"), got.Data)
}

// TestRepoLockExcludesSecondEngine tests the advisory repository lock
func TestRepoLockExcludesSecondEngine(t *testing.T) {
	repoDir := filepath.Join(t.TempDir(), "repo")
	ok := must(t)

	first, err := New(repoDir, nil)
	require.NoError(t, err)
	defer first.Close()
	assert.Equal(t, protocol.RepoCreated, ok(first.RepoCreate()).Kind)

	second, err := New(repoDir, nil)
	require.NoError(t, err)
	defer second.Close()
	assert.Error(t, second.RepoInit())
}

// TestCrossDocumentParallelism tests that concurrent inserts into documents
// of two databases all succeed and each land in their own document
func TestCrossDocumentParallelism(t *testing.T) {
	engine := newTestEngine(t)
	ok := must(t)

	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)
	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db1")).Kind)
	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db0", "doc0")).Kind)
	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db1", "doc0")).Kind)

	const writes = 50
	var wg sync.WaitGroup
	for _, db := range []string{"db0", "db1"} {
		wg.Add(1)
		go func(db string) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				key := []byte{byte('a' + i%26), byte('0' + i/26)}
				res, err := engine.FieldInsert(db, "doc0", key, []byte("payload"))
				assert.NoError(t, err)
				assert.Equal(t, protocol.FieldInserted, res.Kind)
			}
		}(db)
	}
	wg.Wait()

	for _, db := range []string{"db0", "db1"} {
		list := ok(engine.FieldList(db, "doc0"))
		assert.Len(t, list.Fields, writes)
	}
}

// TestDropCascade tests that dropping a database removes its documents and
// directory
func TestDropCascade(t *testing.T) {
	engine := newTestEngine(t)
	ok := must(t)

	assert.Equal(t, protocol.DbCreated, ok(engine.DbCreate("db0")).Kind)
	assert.Equal(t, protocol.DocumentCreated, ok(engine.DocumentCreate("db0", "doc0")).Kind)
	assert.Equal(t, protocol.FieldInserted, ok(engine.FieldInsert("db0", "doc0", []byte("field0"), []byte("hello"))).Kind)

	assert.Equal(t, protocol.DbDropped, ok(engine.DbDrop("db0")).Kind)

	assert.Equal(t, protocol.DbNotFound, ok(engine.DocumentList("db0")).Kind)
	assert.NoDirExists(t, filepath.Join(engine.Root(), "db0"))
}
