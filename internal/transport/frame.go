package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wire framing for device delivery: an 8-byte big-endian packet count,
// then per packet an 8-byte big-endian length followed by that many bytes.
// Payload bytes must survive a write/read cycle untouched.

// maxFrameBytes bounds a single frame so a corrupt length prefix cannot
// drive an unbounded allocation.
const maxFrameBytes = 64 << 20

// maxFrameCount bounds the packet count for the same reason.
const maxFrameCount = 1 << 20

// WriteFrames writes the framed packets to w.
func WriteFrames(w io.Writer, frames [][]byte) error {
	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(len(frames)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame count: %w", err)
	}
	for i, f := range frames {
		binary.BigEndian.PutUint64(hdr[:], uint64(len(f)))
		if _, err := w.Write(hdr[:]); err != nil {
			return fmt.Errorf("write frame %d length: %w", i, err)
		}
		if _, err := w.Write(f); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return nil
}

// ReadFrames reads a full framed message from r.
func ReadFrames(r io.Reader) ([][]byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read frame count: %w", err)
	}
	count := binary.BigEndian.Uint64(hdr[:])
	if count > maxFrameCount {
		return nil, fmt.Errorf("frame count %d exceeds limit", count)
	}
	frames := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("read frame %d length: %w", i, err)
		}
		n := binary.BigEndian.Uint64(hdr[:])
		if n > maxFrameBytes {
			return nil, fmt.Errorf("frame %d length %d exceeds limit", i, n)
		}
		f := make([]byte, n)
		if _, err := io.ReadFull(r, f); err != nil {
			return nil, fmt.Errorf("read frame %d: %w", i, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}
