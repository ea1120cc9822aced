package client

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	cfgpkg "github.com/courierd/courier/internal/config"
	"github.com/courierd/courier/internal/runtime"
	httpserver "github.com/courierd/courier/internal/server/http"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
)

func startRelay(t *testing.T) BaseURLFunc {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	ts := httptest.NewServer(httpserver.New(rt).Handler())
	t.Cleanup(ts.Close)
	return func() string { return ts.URL }
}

func run(t *testing.T, baseURL BaseURLFunc, group string, args ...string) (string, error) {
	t.Helper()
	var cmd = NewRoot(baseURL)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{group}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestDeviceAnnounceAndList(t *testing.T) {
	baseURL := startRelay(t)

	out, err := run(t, baseURL, "device", "announce", "--guid", "dev-1", "--purpose", "thermostat", "--port", "9000")
	if err != nil {
		t.Fatalf("announce: %v (%s)", err, out)
	}
	if !strings.Contains(out, "dev-1") {
		t.Fatalf("announce output: %s", out)
	}

	out, err = run(t, baseURL, "device", "list", "--purpose", "thermostat")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "dev-1") {
		t.Fatalf("list output: %s", out)
	}
}

func TestDeviceAnnounceFlagValidation(t *testing.T) {
	baseURL := startRelay(t)
	if _, err := run(t, baseURL, "device", "announce", "--guid", "dev-1"); err == nil {
		t.Fatal("want error for missing --purpose")
	}
}

func TestSendAndAdminJobs(t *testing.T) {
	baseURL := startRelay(t)

	for _, args := range [][]string{
		{"device", "announce", "--guid", "dev-a", "--purpose", "p", "--port", "9000"},
		{"device", "announce", "--guid", "dev-b", "--purpose", "p", "--port", "9001"},
		{"queue", "create", "--guid", "q1"},
	} {
		if out, err := run(t, baseURL, args[0], args[1:]...); err != nil {
			t.Fatalf("%v: %v (%s)", args, err, out)
		}
	}

	out, err := run(t, baseURL, "device", "send", "--queue", "q1", "--source", "dev-a", "--dest", "dev-b", "--payload", `{"n":1}`)
	if err != nil {
		t.Fatalf("send: %v (%s)", err, out)
	}
	if !strings.Contains(out, `"pending"`) {
		t.Fatalf("send output: %s", out)
	}

	out, err = run(t, baseURL, "admin", "jobs", "--ledger", "delivery", "--filter", `destination == "dev-b"`)
	if err != nil {
		t.Fatalf("admin jobs: %v (%s)", err, out)
	}
	if !strings.Contains(out, "dev-b") {
		t.Fatalf("admin output: %s", out)
	}
}

func TestSendToUnknownDeviceFails(t *testing.T) {
	baseURL := startRelay(t)
	if out, err := run(t, baseURL, "queue", "create", "--guid", "q1"); err != nil {
		t.Fatalf("queue create: %v (%s)", err, out)
	}
	if _, err := run(t, baseURL, "device", "send", "--queue", "q1", "--source", "ghost-a", "--dest", "ghost-b"); err == nil {
		t.Fatal("want integrity error for unregistered devices")
	}
}

func TestWorkerListKindValidation(t *testing.T) {
	baseURL := startRelay(t)
	if _, err := run(t, baseURL, "worker", "list", "--kind", "sweeper"); err == nil {
		t.Fatal("want error for unknown kind")
	}
}
