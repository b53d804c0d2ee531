package field

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/turingdb/turingdb/pkg/tai64"
)

// ErrCorruptRecord is returned when a stored value cannot be decoded back
// into a Record: truncated input, trailing bytes, or a malformed timestamp.
var ErrCorruptRecord = errors.New("field: corrupt record")

// overhead is the encoded size of everything except the payload itself.
const overhead = 8 + 2*tai64.Size

// Record is the stored value of one field: the caller's bytes plus the
// timestamps of its creation and last modification.
type Record struct {
	Data     []byte
	Created  tai64.Time
	Modified tai64.Time
}

// New builds a Record for a fresh insert; created and modified are the same
// instant.
func New(data []byte) *Record {
	now := tai64.Now()
	return &Record{
		Data:     append([]byte(nil), data...),
		Created:  now,
		Modified: now,
	}
}

// Update replaces the payload and refreshes the modification time. The
// creation time is immutable for the life of the key.
func (r *Record) Update(data []byte) {
	r.Data = append([]byte(nil), data...)
	r.Modified = tai64.Now()
}

// Marshal encodes the record as
//
//	u64le len(data) ‖ data ‖ created (12B) ‖ modified (12B)
//
// The encoding is deterministic and self-describing; Unmarshal is its exact
// inverse.
func (r *Record) Marshal() []byte {
	buf := make([]byte, 0, overhead+len(r.Data))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(r.Data)))
	buf = append(buf, r.Data...)
	created, _ := r.Created.MarshalBinary()
	modified, _ := r.Modified.MarshalBinary()
	buf = append(buf, created...)
	buf = append(buf, modified...)
	return buf
}

// Unmarshal decodes a stored value produced by Marshal.
func Unmarshal(value []byte) (*Record, error) {
	if len(value) < overhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptRecord, len(value))
	}
	dataLen := binary.LittleEndian.Uint64(value[:8])
	if uint64(len(value)) != overhead+dataLen {
		return nil, fmt.Errorf("%w: payload length %d does not match %d remaining bytes",
			ErrCorruptRecord, dataLen, len(value)-overhead)
	}

	rec := &Record{Data: append([]byte(nil), value[8:8+dataLen]...)}
	rest := value[8+dataLen:]
	if err := rec.Created.UnmarshalBinary(rest[:tai64.Size]); err != nil {
		return nil, fmt.Errorf("%w: created: %v", ErrCorruptRecord, err)
	}
	if err := rec.Modified.UnmarshalBinary(rest[tai64.Size:]); err != nil {
		return nil, fmt.Errorf("%w: modified: %v", ErrCorruptRecord, err)
	}
	return rec, nil
}
