package net

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds the declared payload length of a frame. A prefix
// larger than this is treated as a corrupt stream and the connection is
// dropped.
const MaxFrameSize = 4 << 20

// ErrFrameTooLarge is returned for a length prefix exceeding MaxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("frame exceeds %d bytes", MaxFrameSize)

// WriteFrame writes a length-prefixed frame as one buffer, so a frame is
// never interleaved with another writer's output on the same connection.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)

	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	return payload, nil
}
