/*
Package protocol defines TuringDB's wire contract: the command and result
tagged unions, their binary codec, and the length-prefixed framing that
carries them over a TCP stream.

# Framing

Every message travels as one frame:

	frame := u64le length ‖ payload

A request payload is one encoded Command; a reply payload is one encoded
Result. The receiver refuses to buffer more than 16 MiB for a single frame
(ErrFrameTooLarge); the server answers such a frame with one
EncounteredErrors reply and closes the stream.

# Commands

The first payload byte is the operation tag; the tag numbering is frozen:

	0x00 RepoCreate        0x01 RepoDrop
	0x02 DbCreate          0x03 DbList          0x04 DbDrop
	0x05 DocumentCreate    0x06 DocumentList    0x07 DocumentDrop
	0x08 FieldInsert       0x09 FieldGet        0x0a FieldRemove
	0x0b FieldModify       0x0c FieldList
	0xf1 NotSupported (also the mapping for any unknown tag)

The body is the op's fields in db, document, field, payload order, each a
u64le length-prefixed byte string; names are UTF-8. Field keys are strings
on the wire and raw bytes at the storage layer; the boundary encoding is
the key's UTF-8 byte sequence.

# Results

A reply payload is a result tag optionally followed by a body: name lists
(DbList, DocumentList), key lists (FieldList), raw bytes (FieldContents),
or a diagnostic string (EncounteredErrors). Everything else — the
acknowledgement, miss, conflict, and emptiness variants — is the tag alone.
Diagnostics use the bracketed server form:

	[TuringDB::<FieldInsert>::(ERROR)-FIELD_NAME_EMPTY]

# Usage

	cmd := &protocol.Command{Op: protocol.OpFieldGet, Db: "db0", Document: "doc0", Field: "k"}
	if err := protocol.WriteFrame(conn, cmd.Marshal()); err != nil { ... }

	payload, err := protocol.ReadFrame(conn) // io.EOF on a clean half-close
	res, err := protocol.UnmarshalResult(payload)

# See Also

  - pkg/api for the server side of this contract
  - pkg/client for the client side
*/
package protocol
