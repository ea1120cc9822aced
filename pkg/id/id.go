package id

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"
)

// Key is a 16-byte creation-order key encoded big-endian:
// [8 bytes unix_ms][8 bytes sequence]. Byte-wise comparison of two keys
// agrees with the order in which they were generated.
type Key [16]byte

// Bytes returns a copy of the raw 16-byte representation.
func (k Key) Bytes() []byte { b := make([]byte, 16); copy(b, k[:]); return b }

// String returns the key as a 32-character hex string.
func (k Key) String() string { return hex.EncodeToString(k[:]) }

// IsZero reports whether the key is the zero value.
func (k Key) IsZero() bool { return k == Key{} }

// Compare returns -1, 0, or 1 ordering by generation time.
func (k Key) Compare(other Key) int { return bytes.Compare(k[:], other[:]) }

// UnixMilli returns the millisecond timestamp half of the key.
func (k Key) UnixMilli() int64 { return int64(binary.BigEndian.Uint64(k[0:8])) }

// FromBytes parses a 16-byte slice into a Key.
func FromBytes(b []byte) (Key, bool) {
	if len(b) != 16 {
		return Key{}, false
	}
	var k Key
	copy(k[:], b)
	return k, true
}

// FromString parses a 32-character hex string into a Key.
func FromString(s string) (Key, bool) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, false
	}
	return FromBytes(b)
}

// NowMs returns the current time in milliseconds since the Unix epoch.
// Overridable in tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Generator produces strictly increasing Keys for a single process.
type Generator struct {
	mu       sync.Mutex
	lastMs   int64
	sequence uint64
}

// NewGenerator returns a ready Generator.
func NewGenerator() *Generator { return &Generator{} }

// Next returns a new Key strictly greater than any previously returned.
// If the clock regresses it pins to the last observed millisecond; if the
// sequence would overflow within one millisecond it waits for the next.
func (g *Generator) Next() Key {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		if g.sequence == math.MaxUint64 {
			for ms <= g.lastMs {
				time.Sleep(time.Millisecond / 8)
				ms = NowMs()
			}
			g.sequence = 0
		} else {
			g.sequence++
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	var k Key
	binary.BigEndian.PutUint64(k[0:8], uint64(ms))
	binary.BigEndian.PutUint64(k[8:16], g.sequence)
	return k
}
