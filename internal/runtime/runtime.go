package runtime

import (
	"context"
	"errors"
	"fmt"

	cfgpkg "github.com/courierd/courier/internal/config"
	relaysvc "github.com/courierd/courier/internal/services/relay"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
	logpkg "github.com/courierd/courier/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
	Logger  *logpkg.Logger
}

// Runtime wires storage, config, and the relay service for a single-node
// instance.
type Runtime struct {
	db     *pebblestore.DB
	svc    *relaysvc.Service
	config cfgpkg.Config
	logger *logpkg.Logger
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync})
	if err != nil {
		return nil, err
	}
	return &Runtime{
		db:     db,
		svc:    relaysvc.New(db, logger),
		config: opts.Config,
		logger: logger,
	}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// Service returns the relay service facade.
func (r *Runtime) Service() *relaysvc.Service { return r.svc }

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime logger.
func (r *Runtime) Logger() *logpkg.Logger { return r.logger }

// ParseFsync maps the config fsync string to a storage mode.
func ParseFsync(s string) (pebblestore.FsyncMode, error) {
	switch s {
	case "", "always":
		return pebblestore.FsyncModeAlways, nil
	case "interval":
		return pebblestore.FsyncModeInterval, nil
	case "never":
		return pebblestore.FsyncModeNever, nil
	default:
		return 0, fmt.Errorf("unknown fsync mode %q", s)
	}
}
