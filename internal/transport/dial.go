package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Dialer pushes payloads to a device's listen socket.
type Dialer struct {
	// Timeout bounds the whole delivery (dial plus write) when the context
	// carries no earlier deadline.
	Timeout time.Duration
}

// Deliver dials addr and writes the payload's frames. The device is
// expected to consume the full message before closing; any write error
// means the delivery did not happen.
func (d Dialer) Deliver(ctx context.Context, addr string, p Payload) error {
	conn, cancel, err := d.connect(ctx, addr)
	if err != nil {
		return err
	}
	defer cancel()
	defer conn.Close()
	if err := WriteFrames(conn, p.Frames()); err != nil {
		return fmt.Errorf("deliver to %s: %w", addr, err)
	}
	return nil
}

// Exchange delivers the payload and then reads one framed message back.
// Failure reports use this: the origin device answers with its retry
// decision.
func (d Dialer) Exchange(ctx context.Context, addr string, p Payload) ([][]byte, error) {
	conn, cancel, err := d.connect(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer conn.Close()
	if err := WriteFrames(conn, p.Frames()); err != nil {
		return nil, fmt.Errorf("deliver to %s: %w", addr, err)
	}
	frames, err := ReadFrames(conn)
	if err != nil {
		return nil, fmt.Errorf("response from %s: %w", addr, err)
	}
	return frames, nil
}

func (d Dialer) connect(ctx context.Context, addr string) (net.Conn, context.CancelFunc, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cancel := context.CancelFunc(func() {})
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, cancel, nil
}
