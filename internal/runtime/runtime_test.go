package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/courierd/courier/internal/config"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
)

func TestOpenCloseAndHealth(t *testing.T) {
	rt, err := Open(Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rt.Service() == nil {
		t.Fatal("nil service")
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestParseFsync(t *testing.T) {
	if m, err := ParseFsync(""); err != nil || m != pebblestore.FsyncModeAlways {
		t.Fatalf("empty: %v %v", m, err)
	}
	if m, err := ParseFsync("interval"); err != nil || m != pebblestore.FsyncModeInterval {
		t.Fatalf("interval: %v %v", m, err)
	}
	if _, err := ParseFsync("sometimes"); err == nil {
		t.Fatal("want error for unknown mode")
	}
}
