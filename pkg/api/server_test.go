package api

import (
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turingdb/turingdb/pkg/client"
	"github.com/turingdb/turingdb/pkg/protocol"
	"github.com/turingdb/turingdb/pkg/storage"
)

// startTestServer runs a server on an ephemeral port over a fresh
// repository and returns its address.
func startTestServer(t *testing.T) string {
	t.Helper()

	engine, err := storage.New(filepath.Join(t.TempDir(), "repo"), nil)
	require.NoError(t, err)
	require.NoError(t, engine.RepoInit())

	srv := NewServer(engine)
	go func() {
		if err := srv.Start("127.0.0.1:0"); err != nil {
			t.Errorf("server exited: %v", err)
		}
	}()
	t.Cleanup(func() {
		srv.Stop()
		engine.Close()
	})

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return srv.Addr()
}

func dial(t *testing.T, addr string) *client.Client {
	t.Helper()
	c, err := client.Connect(addr)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// kind unwraps a client call, failing the test on a transport error.
func kind(t *testing.T) func(*protocol.Result, error) protocol.ResultKind {
	return func(res *protocol.Result, err error) protocol.ResultKind {
		t.Helper()
		require.NoError(t, err)
		return res.Kind
	}
}

// TestHappyPath tests the canonical create-insert-read sequence end to end
func TestHappyPath(t *testing.T) {
	addr := startTestServer(t)
	c := dial(t, addr)
	k := kind(t)

	assert.Equal(t, protocol.RepoCreated, k(c.RepoCreate()))
	assert.Equal(t, protocol.DbCreated, k(c.DbCreate("db0")))
	assert.Equal(t, protocol.DocumentCreated, k(c.DocumentCreate("db0", "doc0")))
	assert.Equal(t, protocol.FieldInserted, k(c.FieldInsert("db0", "doc0", "field0", []byte("hello"))))

	res, err := c.FieldGet("db0", "doc0", "field0")
	require.NoError(t, err)
	assert.Equal(t, protocol.FieldContents, res.Kind)
	assert.Equal(t, []byte("hello"), res.Data)
}

// TestConflictAndModify tests duplicate insert followed by modify and reread
func TestConflictAndModify(t *testing.T) {
	addr := startTestServer(t)
	c := dial(t, addr)
	k := kind(t)

	assert.Equal(t, protocol.RepoCreated, k(c.RepoCreate()))
	assert.Equal(t, protocol.DbCreated, k(c.DbCreate("db0")))
	assert.Equal(t, protocol.DocumentCreated, k(c.DocumentCreate("db0", "doc0")))
	assert.Equal(t, protocol.FieldInserted, k(c.FieldInsert("db0", "doc0", "field0", []byte("hello"))))

	assert.Equal(t, protocol.FieldAlreadyExists, k(c.FieldInsert("db0", "doc0", "field0", []byte("world"))))
	assert.Equal(t, protocol.FieldModified, k(c.FieldModify("db0", "doc0", "field0", []byte("world"))))

	res, err := c.FieldGet("db0", "doc0", "field0")
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), res.Data)
}

// TestDropCascadeOverWire tests db drop visibility through the protocol
func TestDropCascadeOverWire(t *testing.T) {
	addr := startTestServer(t)
	c := dial(t, addr)
	k := kind(t)

	assert.Equal(t, protocol.RepoCreated, k(c.RepoCreate()))
	assert.Equal(t, protocol.DbCreated, k(c.DbCreate("db0")))
	assert.Equal(t, protocol.DocumentCreated, k(c.DocumentCreate("db0", "doc0")))
	assert.Equal(t, protocol.DbDropped, k(c.DbDrop("db0")))
	assert.Equal(t, protocol.DbNotFound, k(c.DocumentList("db0")))
}

// TestEmptyScopes tests the distinguished emptiness outcomes over the wire
func TestEmptyScopes(t *testing.T) {
	addr := startTestServer(t)
	c := dial(t, addr)
	k := kind(t)

	assert.Equal(t, protocol.RepoCreated, k(c.RepoCreate()))
	assert.Equal(t, protocol.RepoEmpty, k(c.DbList()))
	assert.Equal(t, protocol.DbCreated, k(c.DbCreate("db0")))
	assert.Equal(t, protocol.DbEmpty, k(c.DocumentList("db0")))
	assert.Equal(t, protocol.DocumentCreated, k(c.DocumentCreate("db0", "doc0")))
	assert.Equal(t, protocol.DocumentEmpty, k(c.FieldList("db0", "doc0")))
}

// TestMultipleClients tests that two connections interleave cleanly
func TestMultipleClients(t *testing.T) {
	addr := startTestServer(t)
	first := dial(t, addr)
	second := dial(t, addr)
	k := kind(t)

	assert.Equal(t, protocol.RepoCreated, k(first.RepoCreate()))
	assert.Equal(t, protocol.DbCreated, k(first.DbCreate("db0")))
	assert.Equal(t, protocol.DbAlreadyExists, k(second.DbCreate("db0")))

	res, err := second.DbList()
	require.NoError(t, err)
	assert.Equal(t, []string{"db0"}, res.Names)
}

// TestOversizeFrame tests the 16 MiB guard: one error reply, then close
func TestOversizeFrame(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	var prefix [8]byte
	binary.LittleEndian.PutUint64(prefix[:], 17*1024*1024)
	_, err = conn.Write(prefix[:])
	require.NoError(t, err)

	payload, err := protocol.ReadFrame(conn)
	require.NoError(t, err)
	res, err := protocol.UnmarshalResult(payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.EncounteredErrors, res.Kind)
	assert.Contains(t, res.Message, protocol.BufferCapacityExceeded)

	// server closes after the single error reply
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = protocol.ReadFrame(conn)
	assert.ErrorIs(t, err, io.EOF)
}

// TestMalformedCommand tests a garbage frame: one error reply, then close
func TestMalformedCommand(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// a FieldInsert tag with a truncated body
	require.NoError(t, protocol.WriteFrame(conn, []byte{byte(protocol.OpFieldInsert), 0x05}))

	payload, err := protocol.ReadFrame(conn)
	require.NoError(t, err)
	res, err := protocol.UnmarshalResult(payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.EncounteredErrors, res.Kind)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = protocol.ReadFrame(conn)
	assert.ErrorIs(t, err, io.EOF)
}

// TestNotSupportedOp tests that an unknown tag yields NotExecuted and the
// connection stays open
func TestNotSupportedOp(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.WriteFrame(conn, []byte{0x7f}))
	payload, err := protocol.ReadFrame(conn)
	require.NoError(t, err)
	res, err := protocol.UnmarshalResult(payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.NotExecuted, res.Kind)

	// still serving
	require.NoError(t, protocol.WriteFrame(conn, (&protocol.Command{Op: protocol.OpDbList}).Marshal()))
	payload, err = protocol.ReadFrame(conn)
	require.NoError(t, err)
	res, err = protocol.UnmarshalResult(payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.RepoEmpty, res.Kind)
}

// TestClientHalfClose tests that a zero-byte close ends the connection
// without a reply
func TestClientHalfClose(t *testing.T) {
	addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
	conn.Close()
}
