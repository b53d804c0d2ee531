package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/turingdb/turingdb/pkg/protocol"
)

// DefaultDialTimeout bounds how long Connect waits for the server.
const DefaultDialTimeout = 5 * time.Second

// Client speaks the framed command protocol over one TCP connection.
// Requests are serialized: one frame out, one frame back.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Connect dials a server.
func Connect(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, DefaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close shuts the connection down.
func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip frames one command and decodes the single reply.
func (c *Client) roundTrip(cmd *protocol.Command) (*protocol.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := protocol.WriteFrame(c.conn, cmd.Marshal()); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Op, err)
	}
	payload, err := protocol.ReadFrame(c.conn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Op, err)
	}
	res, err := protocol.UnmarshalResult(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Op, err)
	}
	return res, nil
}

// RepoCreate creates the repository directory on the server.
func (c *Client) RepoCreate() (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpRepoCreate})
}

// RepoDrop removes the repository and everything under it.
func (c *Client) RepoDrop() (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpRepoDrop})
}

// DbCreate creates a database.
func (c *Client) DbCreate(db string) (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpDbCreate, Db: db})
}

// DbList lists the databases in the repository.
func (c *Client) DbList() (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpDbList})
}

// DbDrop removes a database and its documents.
func (c *Client) DbDrop(db string) (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpDbDrop, Db: db})
}

// DocumentCreate creates a document inside db.
func (c *Client) DocumentCreate(db, doc string) (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpDocumentCreate, Db: db, Document: doc})
}

// DocumentList lists the documents inside db.
func (c *Client) DocumentList(db string) (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpDocumentList, Db: db})
}

// DocumentDrop removes a document and its fields.
func (c *Client) DocumentDrop(db, doc string) (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpDocumentDrop, Db: db, Document: doc})
}

// FieldInsert stores a new field; the server rejects keys that already
// exist.
func (c *Client) FieldInsert(db, doc, field string, payload []byte) (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpFieldInsert, Db: db, Document: doc, Field: field, Payload: payload})
}

// FieldGet fetches the bytes stored under field.
func (c *Client) FieldGet(db, doc, field string) (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpFieldGet, Db: db, Document: doc, Field: field})
}

// FieldRemove deletes a field.
func (c *Client) FieldRemove(db, doc, field string) (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpFieldRemove, Db: db, Document: doc, Field: field})
}

// FieldModify replaces a field's bytes, keeping its creation timestamp.
func (c *Client) FieldModify(db, doc, field string, payload []byte) (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpFieldModify, Db: db, Document: doc, Field: field, Payload: payload})
}

// FieldList lists the field keys of a document.
func (c *Client) FieldList(db, doc string) (*protocol.Result, error) {
	return c.roundTrip(&protocol.Command{Op: protocol.OpFieldList, Db: db, Document: doc})
}
