package worker

import (
	"context"
	"net"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	apiclient "github.com/courierd/courier/internal/client"
	cfgpkg "github.com/courierd/courier/internal/config"
	"github.com/courierd/courier/internal/ledger"
	"github.com/courierd/courier/internal/runtime"
	httpserver "github.com/courierd/courier/internal/server/http"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
	"github.com/courierd/courier/internal/transport"
)

func newAPI(t *testing.T) *apiclient.Client {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	ts := httptest.NewServer(httpserver.New(rt).Handler())
	t.Cleanup(ts.Close)
	return apiclient.New(ts.URL, nil)
}

// fakeDevice listens on a loopback port and records one framed message.
// When answer is non-nil it writes it back as the response frame.
type fakeDevice struct {
	lis    net.Listener
	port   int
	recv   chan [][]byte
	answer []byte
}

func newFakeDevice(t *testing.T, answer []byte) *fakeDevice {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("device listen: %v", err)
	}
	t.Cleanup(func() { _ = lis.Close() })
	d := &fakeDevice{
		lis:    lis,
		port:   lis.Addr().(*net.TCPAddr).Port,
		recv:   make(chan [][]byte, 4),
		answer: answer,
	}
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				frames, err := transport.ReadFrames(conn)
				if err != nil {
					return
				}
				if d.answer != nil {
					_ = transport.WriteFrames(conn, [][]byte{d.answer})
				}
				d.recv <- frames
			}(conn)
		}
	}()
	return d
}

func waitPhase(t *testing.T, api *apiclient.Client, ledgerName, jobGUID string, want ledger.Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		jobs, err := api.ListJobs(context.Background(), ledgerName, "", 0)
		if err != nil {
			t.Fatalf("list jobs: %v", err)
		}
		for _, j := range jobs {
			if j.GUID == jobGUID && j.Phase == want {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never reached phase %s in %s ledger", jobGUID, want, ledgerName)
}

func TestDequeuerDeliversAndCompletes(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	dest := newFakeDevice(t, nil)
	if _, err := api.AnnounceDevice(ctx, "dev-src", "p", 1); err != nil {
		t.Fatalf("announce src: %v", err)
	}
	if _, err := api.AnnounceDevice(ctx, "dev-dst", "p", dest.port); err != nil {
		t.Fatalf("announce dst: %v", err)
	}
	if _, err := api.RegisterQueue(ctx, "q1"); err != nil {
		t.Fatalf("register queue: %v", err)
	}
	payload := `{"reading":42}`
	job, err := api.EnqueueTransmission(ctx, "q1", "dev-src", "dev-dst", payload)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	dq := NewDequeuer(api, Options{GUID: "w1", Queue: "q1", PollInterval: 10 * time.Millisecond})
	done := make(chan error, 1)
	go func() { done <- dq.Run(wctx) }()

	select {
	case frames := <-dest.recv:
		if len(frames) != 1 || string(frames[0]) != payload {
			t.Fatalf("device received %q", frames)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("device never received the payload")
	}
	waitPhase(t, api, "delivery", job.GUID, ledger.PhaseClosed)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("dequeuer run: %v", err)
	}
}

func TestFailedDeliveryFlowsThroughReporter(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	// The origin device answers failure reports with "do not retry".
	origin := newFakeDevice(t, []byte(`{"retry_requested":false}`))
	if _, err := api.AnnounceDevice(ctx, "dev-src", "p", origin.port); err != nil {
		t.Fatalf("announce src: %v", err)
	}
	// The destination's port is a closed socket, so delivery fails.
	deadLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	deadPort := deadLis.Addr().(*net.TCPAddr).Port
	_ = deadLis.Close()
	if _, err := api.AnnounceDevice(ctx, "dev-dst", "p", deadPort); err != nil {
		t.Fatalf("announce dst: %v", err)
	}
	if _, err := api.RegisterQueue(ctx, "q1"); err != nil {
		t.Fatalf("register queue: %v", err)
	}
	job, err := api.EnqueueTransmission(ctx, "q1", "dev-src", "dev-dst", `{"n":1}`)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	dq := NewDequeuer(api, Options{GUID: "w1", Queue: "q1", PollInterval: 10 * time.Millisecond, DialTimeout: 300 * time.Millisecond})
	dqDone := make(chan error, 1)
	go func() { dqDone <- dq.Run(wctx) }()
	rpDone := make(chan error, 1)
	go func() { rpDone <- NewReporter(api, Options{GUID: "r1", PollInterval: 10 * time.Millisecond}).Run(wctx) }()

	// The origin device receives the failure report.
	select {
	case frames := <-origin.recv:
		if len(frames) != 1 {
			t.Fatalf("report frames: %d", len(frames))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("origin never received the failure report")
	}

	// No retry requested: both the transmission and the report close.
	waitPhase(t, api, "delivery", job.GUID, ledger.PhaseClosed)

	cancel()
	if err := <-dqDone; err != nil {
		t.Fatalf("dequeuer run: %v", err)
	}
	if err := <-rpDone; err != nil {
		t.Fatalf("reporter run: %v", err)
	}
}

func TestDeviceAddrRequiresKnownEndpoint(t *testing.T) {
	lease := &apiclient.Lease{}
	if _, err := deviceAddr(lease); err == nil {
		t.Fatal("want error for missing dial info")
	}
	lease.DestinationAddress = "127.0.0.1"
	lease.DestinationPort = 9000
	addr, err := deviceAddr(lease)
	if err != nil {
		t.Fatalf("device addr: %v", err)
	}
	if addr != net.JoinHostPort("127.0.0.1", strconv.Itoa(9000)) {
		t.Fatalf("addr: %q", addr)
	}
}
