package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"
)

func TestFramesRoundTrip(t *testing.T) {
	cases := [][][]byte{
		nil,
		{[]byte("hello")},
		{[]byte(""), []byte("x"), bytes.Repeat([]byte{0xAB}, 1<<16)},
		{{0x00, 0xFF, 0x00}},
	}
	for _, frames := range cases {
		var buf bytes.Buffer
		if err := WriteFrames(&buf, frames); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := ReadFrames(&buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(got) != len(frames) {
			t.Fatalf("count: want %d, got %d", len(frames), len(got))
		}
		for i := range frames {
			if !bytes.Equal(got[i], frames[i]) {
				t.Fatalf("frame %d: want %q, got %q", i, frames[i], got[i])
			}
		}
	}
}

func TestFrameWireLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrames(&buf, [][]byte{[]byte("ab")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b := buf.Bytes()
	if len(b) != 8+8+2 {
		t.Fatalf("wire length: %d", len(b))
	}
	if binary.BigEndian.Uint64(b[:8]) != 1 {
		t.Fatalf("count prefix: %x", b[:8])
	}
	if binary.BigEndian.Uint64(b[8:16]) != 2 {
		t.Fatalf("length prefix: %x", b[8:16])
	}
	if string(b[16:]) != "ab" {
		t.Fatalf("payload bytes: %q", b[16:])
	}
}

func TestReadFramesRejectsOversizedCount(t *testing.T) {
	var buf bytes.Buffer
	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], 1<<40)
	buf.Write(hdr[:])
	if _, err := ReadFrames(&buf); err == nil {
		t.Fatal("want error for oversized count")
	}
}

func TestReadFramesTruncated(t *testing.T) {
	var full bytes.Buffer
	if err := WriteFrames(&full, [][]byte{[]byte("payload")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	trunc := full.Bytes()[:full.Len()-3]
	if _, err := ReadFrames(bytes.NewReader(trunc)); err == nil {
		t.Fatal("want error for truncated stream")
	}
}

func TestPayloadKinds(t *testing.T) {
	doc := `{"temp":21.5}`
	p, err := Decode(KindJSON, [][]byte{[]byte(doc)})
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	jp, ok := p.(JSONPayload)
	if !ok || jp.Document != doc {
		t.Fatalf("json payload: %+v", p)
	}
	if _, err := Decode(KindJSON, [][]byte{[]byte("a"), []byte("b")}); err == nil {
		t.Fatal("json payload must be a single frame")
	}

	chunks := [][]byte{[]byte("chunk0"), []byte("chunk1")}
	p, err = Decode(KindBundle, chunks)
	if err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	bp, ok := p.(BundlePayload)
	if !ok || len(bp.Chunks) != 2 {
		t.Fatalf("bundle payload: %+v", p)
	}

	if _, err := Decode(Kind("tarball"), nil); err == nil {
		t.Fatal("want error for unknown kind")
	}
}

func TestDeliverWritesFramedPayload(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	type result struct {
		frames [][]byte
		err    error
	}
	got := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			got <- result{err: err}
			return
		}
		defer conn.Close()
		frames, err := ReadFrames(conn)
		got <- result{frames: frames, err: err}
	}()

	doc := `{"k":"v"}`
	d := Dialer{Timeout: 2 * time.Second}
	if err := d.Deliver(context.Background(), l.Addr().String(), JSONPayload{Document: doc}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	r := <-got
	if r.err != nil {
		t.Fatalf("receive: %v", r.err)
	}
	if len(r.frames) != 1 || string(r.frames[0]) != doc {
		t.Fatalf("received frames: %q", r.frames)
	}
}

func TestExchangeReadsResponseFrames(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := ReadFrames(conn); err != nil {
			return
		}
		_ = WriteFrames(conn, [][]byte{[]byte(`{"retry_requested":true}`)})
	}()

	d := Dialer{Timeout: 2 * time.Second}
	frames, err := d.Exchange(context.Background(), l.Addr().String(), JSONPayload{Document: `{"error":"boom"}`})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if len(frames) != 1 || string(frames[0]) != `{"retry_requested":true}` {
		t.Fatalf("response frames: %q", frames)
	}
}

func TestDeliverDialFailure(t *testing.T) {
	d := Dialer{Timeout: 200 * time.Millisecond}
	err := d.Deliver(context.Background(), "127.0.0.1:1", JSONPayload{Document: "{}"})
	if err == nil {
		t.Fatal("want dial error")
	}
}
