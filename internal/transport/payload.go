package transport

import (
	"fmt"
)

// Kind tags a delivery payload shape. The set is closed: devices speak
// exactly these two shapes and the tag is chosen at the transport boundary,
// never inferred from the bytes.
type Kind string

const (
	// KindJSON is an opaque JSON document delivered as a single frame.
	KindJSON Kind = "json"
	// KindBundle is a multi-frame transfer, one frame per chunk, used for
	// archive pushes to a device.
	KindBundle Kind = "bundle"
)

// Payload is a deliverable message. Implementations are restricted to this
// package; a new shape means a new wire agreement with the devices.
type Payload interface {
	Kind() Kind
	// Frames returns the exact frame bytes to put on the wire.
	Frames() [][]byte

	sealed()
}

// JSONPayload carries one opaque JSON document. The document bytes are
// never parsed here and round-trip the framing byte-for-byte.
type JSONPayload struct {
	Document string
}

func (p JSONPayload) Kind() Kind       { return KindJSON }
func (p JSONPayload) Frames() [][]byte { return [][]byte{[]byte(p.Document)} }
func (JSONPayload) sealed()            {}

// BundlePayload carries an archive split into ordered chunks, one frame
// each.
type BundlePayload struct {
	Chunks [][]byte
}

func (p BundlePayload) Kind() Kind       { return KindBundle }
func (p BundlePayload) Frames() [][]byte { return p.Chunks }
func (BundlePayload) sealed()            {}

// Decode rebuilds a payload of the given kind from received frames.
func Decode(kind Kind, frames [][]byte) (Payload, error) {
	switch kind {
	case KindJSON:
		if len(frames) != 1 {
			return nil, fmt.Errorf("json payload: want 1 frame, got %d", len(frames))
		}
		return JSONPayload{Document: string(frames[0])}, nil
	case KindBundle:
		return BundlePayload{Chunks: frames}, nil
	default:
		return nil, fmt.Errorf("unknown payload kind %q", kind)
	}
}
