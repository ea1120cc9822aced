// Package workers tracks registered dequeuers and reporters and their
// responsive/unresponsive status. Liveness is operational visibility only;
// it never affects claim ordering.
package workers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/courierd/courier/internal/errdefs"
	"github.com/courierd/courier/internal/identity"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
	logpkg "github.com/courierd/courier/pkg/log"
)

// Kind separates the two worker populations.
type Kind string

const (
	KindDequeuer Kind = "dequeuer"
	KindReporter Kind = "reporter"
)

// Worker is one registered dequeuer or reporter.
type Worker struct {
	GUID           string `json:"guid"`
	Kind           Kind   `json:"kind"`
	ClaimantClient string `json:"claimant_client_guid"`
	Responsive     bool   `json:"responsive"`
	LastSeenMs     int64  `json:"last_seen_ms"`
}

func workerKey(kind Kind, guid string) []byte {
	return []byte("wrk/" + string(kind) + "/" + guid)
}

func workerPrefix(kind Kind) []byte { return []byte("wrk/" + string(kind) + "/") }

// Registry is the worker liveness registry over the shared store.
type Registry struct {
	db     *pebblestore.DB
	logger *logpkg.Logger
}

// NewRegistry builds a Registry.
func NewRegistry(db *pebblestore.DB, logger *logpkg.Logger) *Registry {
	if logger == nil {
		logger = logpkg.Nop()
	}
	return &Registry{db: db, logger: logger.WithComponent("workers")}
}

// Register upserts a worker. Re-registration resets responsive=true and
// refreshes last_seen, keeping the GUID stable.
func (r *Registry) Register(kind Kind, guid string, claimant identity.Client) (Worker, error) {
	if guid == "" {
		return Worker{}, errors.New("workers: empty worker guid")
	}
	w := Worker{
		GUID:           guid,
		Kind:           kind,
		ClaimantClient: claimant.GUID,
		Responsive:     true,
		LastSeenMs:     time.Now().UnixMilli(),
	}
	data, err := json.Marshal(w)
	if err != nil {
		return Worker{}, fmt.Errorf("marshal worker: %w", err)
	}
	if err := r.db.Set(workerKey(kind, guid), data); err != nil {
		return Worker{}, err
	}
	r.logger.Debug("worker registered", logpkg.Str("kind", string(kind)), logpkg.Str("worker", guid))
	return w, nil
}

// Get loads a worker record.
func (r *Registry) Get(kind Kind, guid string) (Worker, error) {
	data, err := r.db.Get(workerKey(kind, guid))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Worker{}, errdefs.NotFoundf("%s %s", kind, guid)
	}
	if err != nil {
		return Worker{}, err
	}
	var w Worker
	if err := json.Unmarshal(data, &w); err != nil {
		return Worker{}, fmt.Errorf("unmarshal worker: %w", err)
	}
	return w, nil
}

// MarkUnresponsive flips the responsive flag without deleting the record.
// Unknown GUIDs are NotFound; repeated calls are idempotent.
func (r *Registry) MarkUnresponsive(kind Kind, guid string) error {
	return r.db.Update(func(b *pebble.Batch) error {
		w, err := r.Get(kind, guid)
		if err != nil {
			return err
		}
		if !w.Responsive {
			return nil
		}
		w.Responsive = false
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("marshal worker: %w", err)
		}
		return b.Set(workerKey(kind, guid), data, nil)
	})
}

// ListResponsive returns every worker of the kind currently marked
// responsive.
func (r *Registry) ListResponsive(kind Kind) ([]Worker, error) {
	it, err := r.db.PrefixIter(workerPrefix(kind))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Worker
	for ok := it.First(); ok; ok = it.Next() {
		var w Worker
		if err := json.Unmarshal(it.Value(), &w); err != nil {
			return nil, fmt.Errorf("unmarshal worker: %w", err)
		}
		if w.Responsive {
			out = append(out, w)
		}
	}
	return out, nil
}
