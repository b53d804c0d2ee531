package tai64

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Size is the encoded length of a TAI64N label in bytes.
const Size = 12

// base is the TAI64 label of the epoch: labels 0..2^62-1 address seconds
// before 1970, labels 2^62.. address seconds from 1970 onward.
const base uint64 = 1 << 62

// ErrInvalidTimestamp is returned when decoding input that is not a valid
// 12-byte TAI64N label.
var ErrInvalidTimestamp = errors.New("tai64: invalid timestamp")

// Time is a TAI64N timestamp: a second label (offset by 2^62 from 1970) plus
// a nanosecond fraction. The zero value is label 0, which Now never
// produces, so it doubles as a "not set" marker.
type Time struct {
	secs  uint64
	nanos uint32
}

// Now captures the current wall-clock time.
//
// Leap seconds are ignored: the label is derived from the Unix clock, which
// is what every other TAI64N producer without a leap table does. Ordering
// and round-tripping are unaffected.
func Now() Time {
	now := time.Now()
	return Time{
		secs:  base + uint64(now.Unix()),
		nanos: uint32(now.Nanosecond()),
	}
}

// FromTime converts a time.Time to a TAI64N label.
func FromTime(t time.Time) Time {
	return Time{
		secs:  base + uint64(t.Unix()),
		nanos: uint32(t.Nanosecond()),
	}
}

// Std converts the label back to a time.Time in the local zone.
func (t Time) Std() time.Time {
	return time.Unix(int64(t.secs-base), int64(t.nanos))
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool {
	if t.secs != u.secs {
		return t.secs < u.secs
	}
	return t.nanos < u.nanos
}

// After reports whether t is strictly later than u.
func (t Time) After(u Time) bool {
	return u.Before(t)
}

// Equal reports whether t and u denote the same instant.
func (t Time) Equal(u Time) bool {
	return t.secs == u.secs && t.nanos == u.nanos
}

// IsZero reports whether t is the zero Time.
func (t Time) IsZero() bool {
	return t.secs == 0 && t.nanos == 0
}

// MarshalBinary encodes the label as 8 big-endian bytes of seconds followed
// by 4 big-endian bytes of nanoseconds, per the TAI64N external format.
func (t Time) MarshalBinary() ([]byte, error) {
	buf := make([]byte, Size)
	binary.BigEndian.PutUint64(buf[0:8], t.secs)
	binary.BigEndian.PutUint32(buf[8:12], t.nanos)
	return buf, nil
}

// UnmarshalBinary decodes a 12-byte TAI64N label.
func (t *Time) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return fmt.Errorf("%w: length %d", ErrInvalidTimestamp, len(data))
	}
	secs := binary.BigEndian.Uint64(data[0:8])
	nanos := binary.BigEndian.Uint32(data[8:12])
	if nanos >= 1e9 {
		return fmt.Errorf("%w: %d nanoseconds", ErrInvalidTimestamp, nanos)
	}
	if secs >= 1<<63 {
		// labels from 2^63 up are outside the TAI64 range
		return fmt.Errorf("%w: label %d out of range", ErrInvalidTimestamp, secs)
	}
	t.secs = secs
	t.nanos = nanos
	return nil
}

// String renders the label in the external @-prefixed hex form.
func (t Time) String() string {
	buf, _ := t.MarshalBinary()
	return fmt.Sprintf("@%x", buf)
}
