package serverrun

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/courierd/courier/internal/config"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
)

func TestOptionsDataDirFallback(t *testing.T) {
	opts := Options{Config: cfgpkg.Default()}
	if opts.DataDir == "" && opts.Config.DataDir != "" {
		opts.DataDir = opts.Config.DataDir
	}
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	if opts.DataDir == "" {
		t.Fatal("DataDir should be set after fallback")
	}
	lower := strings.ToLower(opts.DataDir)
	if !strings.Contains(lower, "courier") && !strings.Contains(lower, "data") {
		t.Errorf("unexpected fallback dir %s", opts.DataDir)
	}
}

func TestConfigDataDirWins(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = "/custom/data"
	opts := Options{Config: cfg}
	if opts.DataDir == "" {
		opts.DataDir = opts.Config.DataDir
	}
	if opts.DataDir != "/custom/data" {
		t.Fatalf("DataDir: %s", opts.DataDir)
	}
}

func TestDataDirStoreSubdirectory(t *testing.T) {
	baseDir := "/tmp/courier"
	storeDir := filepath.Join(baseDir, "store")
	if storeDir != "/tmp/courier/store" {
		t.Errorf("store dir: %s", storeDir)
	}
}

// TestRunIntegration verifies Run starts and shuts down cleanly. Minimal
// since Run binds a real listener.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	opts := Options{
		DataDir:  t.TempDir(),
		HTTPAddr: ":0",
		Fsync:    pebblestore.FsyncModeNever,
		Config:   cfgpkg.Default(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := Run(ctx, opts); err != nil && err != context.DeadlineExceeded && err != context.Canceled {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}
