/*
Package storage implements TuringDB's engine: the in-memory directory that
mirrors the on-disk repository, the per-document concurrency discipline, and
the recovery walk that rebuilds the registry after a restart.

The hierarchy is a tree — repository → database → document → field — and
each level maps directly to the filesystem: the repository is one root
directory, every database is a subdirectory, and every document is a
subdirectory owning an embedded bbolt store.

# Architecture

	┌───────────────────── STORAGE ENGINE ─────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Engine                         │          │
	│  │  - Sharded concurrent map name → Database   │          │
	│  │  - Repository root path (~/TuringDB-Repo)   │          │
	│  │  - flock on <root>/.turingdb.lock           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │ per-shard locking                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Database                       │          │
	│  │  - RWMutex over an insertion-ordered map    │          │
	│  │  - Structural ops take the write lock       │          │
	│  │  - Field ops take the read lock             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │ per-document mutex                   │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Document                       │          │
	│  │  - *bolt.DB over <doc>/fields.db            │          │
	│  │  - Sorted [][]byte key cache (mirror)       │          │
	│  │  - Mutex held for the whole operation       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          On-disk layout                     │          │
	│  │  <root>/                                    │          │
	│  │    ops.log, errors.log, .turingdb.lock      │          │
	│  │    <db-name>/                               │          │
	│  │      <document-name>/fields.db              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Concurrency model

The registry map is sharded and lookups take only a shard's read lock, so
lookups for "db0" and "db1" proceed in parallel. Inside one
database, document create/drop hold the database write lock while field
operations only take the read lock, then serialize on the target document's
own mutex. The document mutex covers the bbolt transaction that makes the
write durable, so a successful field write is on stable storage before the
caller sees the result.

# Key-list mirror

Every document caches its key set as a sorted [][]byte. The cache is the
fast path for membership checks (binary search) and for FieldList, and the
invariant is that at rest it equals the key set enumerable from the store.
The recovery walk rebuilds it from a bbolt cursor, which already yields keys
in byte order.

# Recovery

RepoInit enumerates the root directory: each subdirectory is a database,
each of its subdirectories a document opened in must-exist mode. Every
non-directory entry beside the databases, the journal and lock files
included, is skipped with a warning. A database or document that
fails to load is logged and skipped so the rest of the repository still
serves. A missing root is not an error — the repository has simply not been
created yet.

# Failure classification

Engine errors carry one of a small set of kinds — NotFound,
PermissionDenied, AlreadyExists, BrokenPipe, TimedOut, Corrupted, Other —
extracted with KindOf. Domain outcomes (a missing database, a duplicate
field) are not errors: they come back as protocol results so the caller can
frame them directly.

# Usage

	engine, err := storage.New("", broker) // "" → ~/TuringDB-Repo
	if err != nil { ... }
	defer engine.Close()

	if err := engine.RepoInit(); err != nil { ... }

	res, err := engine.FieldInsert("db0", "doc0", []byte("k"), []byte("v"))
	// res.Kind is FieldInserted, FieldAlreadyExists, DbNotFound, ...

# Limitations

  - One repository per process, enforced with an advisory flock
  - No multi-document transactions; durability is per field write
  - Names must be valid path components on the host filesystem

# See Also

  - pkg/field for the stored record codec
  - pkg/protocol for the result taxonomy the engine speaks
  - pkg/api for the network surface over this engine
*/
package storage
