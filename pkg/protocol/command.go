package protocol

import "fmt"

// Op is the single-byte command tag that leads every request payload. The
// numbering is part of the wire contract and must never be reassigned.
type Op byte

const (
	OpRepoCreate     Op = 0x00
	OpRepoDrop       Op = 0x01
	OpDbCreate       Op = 0x02
	OpDbList         Op = 0x03
	OpDbDrop         Op = 0x04
	OpDocumentCreate Op = 0x05
	OpDocumentList   Op = 0x06
	OpDocumentDrop   Op = 0x07
	OpFieldInsert    Op = 0x08
	OpFieldGet       Op = 0x09
	OpFieldRemove    Op = 0x0a
	OpFieldModify    Op = 0x0b
	OpFieldList      Op = 0x0c
	OpNotSupported   Op = 0xf1
)

func (op Op) String() string {
	switch op {
	case OpRepoCreate:
		return "RepoCreate"
	case OpRepoDrop:
		return "RepoDrop"
	case OpDbCreate:
		return "DbCreate"
	case OpDbList:
		return "DbList"
	case OpDbDrop:
		return "DbDrop"
	case OpDocumentCreate:
		return "DocumentCreate"
	case OpDocumentList:
		return "DocumentList"
	case OpDocumentDrop:
		return "DocumentDrop"
	case OpFieldInsert:
		return "FieldInsert"
	case OpFieldGet:
		return "FieldGet"
	case OpFieldRemove:
		return "FieldRemove"
	case OpFieldModify:
		return "FieldModify"
	case OpFieldList:
		return "FieldList"
	case OpNotSupported:
		return "NotSupported"
	default:
		return fmt.Sprintf("Op(0x%02x)", byte(op))
	}
}

// ToOp maps a tag byte to its Op; unknown tags map to OpNotSupported so the
// dispatcher can answer instead of dropping the connection.
func ToOp(tag byte) Op {
	op := Op(tag)
	switch op {
	case OpRepoCreate, OpRepoDrop,
		OpDbCreate, OpDbList, OpDbDrop,
		OpDocumentCreate, OpDocumentList, OpDocumentDrop,
		OpFieldInsert, OpFieldGet, OpFieldRemove, OpFieldModify, OpFieldList:
		return op
	default:
		return OpNotSupported
	}
}

// Command is one decoded request. Which fields are meaningful depends on the
// Op: database-level ops carry Db, document-level ops add Document, field
// ops add Field, and insert/modify additionally carry Payload.
type Command struct {
	Op       Op
	Db       string
	Document string
	Field    string
	Payload  []byte
}

// arity describes how much of the Command body each op carries.
func (op Op) arity() (names int, payload bool) {
	switch op {
	case OpRepoCreate, OpRepoDrop, OpDbList:
		return 0, false
	case OpDbCreate, OpDbDrop, OpDocumentList:
		return 1, false
	case OpDocumentCreate, OpDocumentDrop, OpFieldList:
		return 2, false
	case OpFieldGet, OpFieldRemove:
		return 3, false
	case OpFieldInsert, OpFieldModify:
		return 3, true
	default:
		return 0, false
	}
}

// Marshal encodes the command as the tag byte followed by its
// length-prefixed fields in db, document, field, payload order.
func (c *Command) Marshal() []byte {
	names, payload := c.Op.arity()
	buf := []byte{byte(c.Op)}
	if names >= 1 {
		buf = appendString(buf, c.Db)
	}
	if names >= 2 {
		buf = appendString(buf, c.Document)
	}
	if names >= 3 {
		buf = appendString(buf, c.Field)
	}
	if payload {
		buf = appendBytes(buf, c.Payload)
	}
	return buf
}

// UnmarshalCommand decodes one framed request payload.
func UnmarshalCommand(data []byte) (*Command, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrMalformed)
	}

	cmd := &Command{Op: ToOp(data[0])}
	rest := data[1:]

	names, payload := cmd.Op.arity()
	var err error
	if names >= 1 {
		if cmd.Db, rest, err = readString(rest); err != nil {
			return nil, fmt.Errorf("%s: db: %w", cmd.Op, err)
		}
	}
	if names >= 2 {
		if cmd.Document, rest, err = readString(rest); err != nil {
			return nil, fmt.Errorf("%s: document: %w", cmd.Op, err)
		}
	}
	if names >= 3 {
		if cmd.Field, rest, err = readString(rest); err != nil {
			return nil, fmt.Errorf("%s: field: %w", cmd.Op, err)
		}
	}
	if payload {
		if cmd.Payload, rest, err = readBytes(rest); err != nil {
			return nil, fmt.Errorf("%s: payload: %w", cmd.Op, err)
		}
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", ErrMalformed, cmd.Op, len(rest))
	}
	return cmd, nil
}
