package workers

import (
	"testing"

	"github.com/courierd/courier/internal/errdefs"
	"github.com/courierd/courier/internal/identity"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRegistry(db, nil)
}

func TestRegisterIsIdempotentUpsert(t *testing.T) {
	r := newTestRegistry(t)
	c := identity.Client{GUID: "client-1"}

	w1, err := r.Register(KindDequeuer, "w-1", c)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	w2, err := r.Register(KindDequeuer, "w-1", c)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if w1.GUID != w2.GUID || !w2.Responsive {
		t.Fatalf("re-registration changed identity or responsiveness: %+v", w2)
	}
	if list, _ := r.ListResponsive(KindDequeuer); len(list) != 1 {
		t.Fatalf("duplicate rows after re-registration: %d", len(list))
	}
}

func TestMarkUnresponsive(t *testing.T) {
	r := newTestRegistry(t)
	c := identity.Client{GUID: "client-1"}

	if err := r.MarkUnresponsive(KindReporter, "ghost"); !errdefs.IsNotFound(err) {
		t.Fatalf("unknown worker: want NotFound, got %v", err)
	}

	_, _ = r.Register(KindReporter, "w-1", c)
	if err := r.MarkUnresponsive(KindReporter, "w-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	// idempotent
	if err := r.MarkUnresponsive(KindReporter, "w-1"); err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if list, _ := r.ListResponsive(KindReporter); len(list) != 0 {
		t.Fatalf("unresponsive worker still listed")
	}

	// record survives; re-registration revives it
	if w, err := r.Get(KindReporter, "w-1"); err != nil || w.Responsive {
		t.Fatalf("record should persist unresponsive: %+v, %v", w, err)
	}
	_, _ = r.Register(KindReporter, "w-1", c)
	if list, _ := r.ListResponsive(KindReporter); len(list) != 1 {
		t.Fatalf("re-registered worker should be responsive again")
	}
}

func TestKindsAreSeparate(t *testing.T) {
	r := newTestRegistry(t)
	c := identity.Client{GUID: "client-1"}

	_, _ = r.Register(KindDequeuer, "w-1", c)
	if _, err := r.Get(KindReporter, "w-1"); !errdefs.IsNotFound(err) {
		t.Fatalf("dequeuer guid should not resolve as reporter")
	}
	if list, _ := r.ListResponsive(KindReporter); len(list) != 0 {
		t.Fatalf("reporter list polluted by dequeuers")
	}
}
