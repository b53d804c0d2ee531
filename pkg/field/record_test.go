package field

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewRecord tests construction of a fresh record
func TestNewRecord(t *testing.T) {
	rec := New([]byte("hello"))

	assert.Equal(t, []byte("hello"), rec.Data)
	assert.False(t, rec.Created.IsZero())
	assert.True(t, rec.Created.Equal(rec.Modified))
}

// TestUpdatePreservesCreated tests that Update keeps the creation time and
// advances the modification time
func TestUpdatePreservesCreated(t *testing.T) {
	rec := New([]byte("hello"))
	created := rec.Created

	time.Sleep(time.Millisecond)
	rec.Update([]byte("world"))

	assert.Equal(t, []byte("world"), rec.Data)
	assert.True(t, rec.Created.Equal(created))
	assert.True(t, rec.Modified.After(rec.Created))

	// modified is non-decreasing across repeated updates
	prev := rec.Modified
	for i := 0; i < 10; i++ {
		rec.Update([]byte("again"))
		assert.False(t, rec.Modified.Before(prev))
		prev = rec.Modified
	}
}

// TestMarshalRoundTrip tests the codec symmetry
func TestMarshalRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("x"),
		[]byte("hello world"),
		{0x00, 0xff, 0x10, 0x00},
		make([]byte, 64*1024),
	}

	for _, payload := range payloads {
		rec := New(payload)
		decoded, err := Unmarshal(rec.Marshal())
		require.NoError(t, err)

		assert.Equal(t, rec.Data, decoded.Data)
		assert.True(t, rec.Created.Equal(decoded.Created))
		assert.True(t, rec.Modified.Equal(decoded.Modified))
	}
}

// TestUnmarshalCorruptInput tests decode failure modes
func TestUnmarshalCorruptInput(t *testing.T) {
	valid := New([]byte("payload")).Marshal()

	tests := []struct {
		name  string
		value []byte
	}{
		{name: "empty", value: nil},
		{name: "shorter than header", value: valid[:10]},
		{name: "truncated payload", value: valid[:len(valid)-1]},
		{name: "trailing garbage", value: append(append([]byte(nil), valid...), 0xAA)},
		{name: "bad nanoseconds", value: func() []byte {
			v := append([]byte(nil), valid...)
			// created nanoseconds live right after the payload
			nanosOff := 8 + len("payload") + 8
			v[nanosOff], v[nanosOff+1], v[nanosOff+2], v[nanosOff+3] = 0xff, 0xff, 0xff, 0xff
			return v
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.value)
			assert.ErrorIs(t, err, ErrCorruptRecord)
		})
	}
}

// TestMarshalCopiesData tests that records do not alias caller buffers
func TestMarshalCopiesData(t *testing.T) {
	buf := []byte("mutable")
	rec := New(buf)
	buf[0] = 'X'
	assert.Equal(t, []byte("mutable"), rec.Data)
}
