package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	bolt "go.etcd.io/bbolt"

	"github.com/turingdb/turingdb/pkg/field"
)

// ErrorKind buckets every failure the engine can surface. The protocol layer
// maps kinds to reply variants, so the set is deliberately small.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindNotFound
	KindPermissionDenied
	KindAlreadyExists
	KindBrokenPipe
	KindTimedOut
	KindCorrupted
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindPermissionDenied:
		return "PERMISSION_DENIED"
	case KindAlreadyExists:
		return "ALREADY_EXISTS"
	case KindBrokenPipe:
		return "BROKEN_PIPE"
	case KindTimedOut:
		return "TIMED_OUT"
	case KindCorrupted:
		return "CORRUPTED"
	default:
		return "OTHER"
	}
}

// Error is a classified engine failure: the operation that failed, the
// bucket it falls into, and the underlying cause.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classified kind from err, or KindOther.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOther
}

// classify wraps err with the operation name and its failure bucket.
// Filesystem and bbolt conditions each collapse to one of the fixed kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	kind := KindOther
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = KindNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = KindPermissionDenied
	case errors.Is(err, fs.ErrExist):
		kind = KindAlreadyExists
	case errors.Is(err, syscall.EPIPE):
		kind = KindBrokenPipe
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, bolt.ErrTimeout):
		kind = KindTimedOut
	case errors.Is(err, bolt.ErrInvalid),
		errors.Is(err, bolt.ErrVersionMismatch),
		errors.Is(err, bolt.ErrChecksum),
		errors.Is(err, field.ErrCorruptRecord):
		kind = KindCorrupted
	}

	return &Error{Op: op, Kind: kind, Err: err}
}
