package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/c2h5oh/datasize"
)

// MaxFrameSize caps how much a single frame may ask the receiver to buffer.
const MaxFrameSize = 16 * datasize.MB

// BufferCapacityExceeded is the diagnostic sent before closing a connection
// that announced an oversize frame.
const BufferCapacityExceeded = "BUFFER_CAPACITY_EXCEEDED_16MB"

// ErrFrameTooLarge is returned when a frame's length prefix exceeds
// MaxFrameSize. The frame body has not been consumed.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds capacity")

// WriteFrame writes one length-prefixed frame:
//
//	u64le length ‖ payload
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > uint64(MaxFrameSize) {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	var prefix [8]byte
	binary.LittleEndian.PutUint64(prefix[:], uint64(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame. A clean half-close before any
// prefix byte arrives surfaces as io.EOF; a half-close mid-frame is
// io.ErrUnexpectedEOF. A prefix above MaxFrameSize returns ErrFrameTooLarge
// without buffering the body.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [8]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	length := binary.LittleEndian.Uint64(prefix[:])
	if length > uint64(MaxFrameSize) {
		return nil, fmt.Errorf("%w: announced %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
