package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a request or reply body cannot be decoded.
var ErrMalformed = errors.New("protocol: malformed message")

// All variable-length fields on the wire are little-endian u64
// length-prefixed byte strings; strings are their UTF-8 bytes.

func appendBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(b)))
	return append(buf, b...)
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func readBytes(data []byte) (b, rest []byte, err error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("%w: truncated length prefix", ErrMalformed)
	}
	n := binary.LittleEndian.Uint64(data[:8])
	data = data[8:]
	if uint64(len(data)) < n {
		return nil, nil, fmt.Errorf("%w: need %d bytes, have %d", ErrMalformed, n, len(data))
	}
	return append([]byte(nil), data[:n]...), data[n:], nil
}

func readString(data []byte) (s string, rest []byte, err error) {
	b, rest, err := readBytes(data)
	return string(b), rest, err
}

func appendList(buf []byte, items [][]byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(items)))
	for _, item := range items {
		buf = appendBytes(buf, item)
	}
	return buf
}

func readList(data []byte) (items [][]byte, rest []byte, err error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("%w: truncated list count", ErrMalformed)
	}
	n := binary.LittleEndian.Uint64(data[:8])
	rest = data[8:]
	// Each entry costs at least its 8-byte length prefix, which bounds the
	// count a hostile frame can claim.
	if n > uint64(len(rest))/8 {
		return nil, nil, fmt.Errorf("%w: list count %d exceeds body", ErrMalformed, n)
	}
	items = make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		var item []byte
		if item, rest, err = readBytes(rest); err != nil {
			return nil, nil, err
		}
		items = append(items, item)
	}
	return items, rest, nil
}

// ErrorMessage renders a diagnostic in the server's bracketed form, e.g.
// [TuringDB::<FieldInsert>::(ERROR)-FIELD_NAME_EMPTY].
func ErrorMessage(op Op, tag string) string {
	return fmt.Sprintf("[TuringDB::<%s>::(ERROR)-%s]", op, tag)
}
