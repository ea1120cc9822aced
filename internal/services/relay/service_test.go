package relaysvc

import (
	"testing"

	"github.com/courierd/courier/internal/errdefs"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
	"github.com/courierd/courier/internal/workers"
)

const callerAddr = "10.0.0.1"

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, nil)
}

func seed(t *testing.T, s *Service) {
	t.Helper()
	if _, err := s.RegisterQueue("q1"); err != nil {
		t.Fatalf("register queue: %v", err)
	}
	for _, d := range []string{"dev-a", "dev-b"} {
		if _, err := s.AnnounceDevice(callerAddr, d, "thermostat", 9000); err != nil {
			t.Fatalf("announce %s: %v", d, err)
		}
	}
	if _, err := s.RegisterWorker(callerAddr, workers.KindDequeuer, "w1"); err != nil {
		t.Fatalf("register dequeuer: %v", err)
	}
	if _, err := s.RegisterWorker(callerAddr, workers.KindReporter, "r1"); err != nil {
		t.Fatalf("register reporter: %v", err)
	}
}

func TestClaimRequiresRegisteredWorker(t *testing.T) {
	s := newService(t)
	seed(t, s)

	if _, err := s.ClaimTransmission(callerAddr, "ghost", "q1"); !errdefs.IsNotFound(err) {
		t.Fatalf("claim by unregistered dequeuer: want not found, got %v", err)
	}
	if _, err := s.ClaimFailureReport(callerAddr, "ghost"); !errdefs.IsNotFound(err) {
		t.Fatalf("claim by unregistered reporter: want not found, got %v", err)
	}
}

func TestLeaseCarriesDestinationDialInfo(t *testing.T) {
	s := newService(t)
	seed(t, s)

	if _, err := s.EnqueueTransmission(callerAddr, "q1", "dev-a", "dev-b", `{"k":1}`); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	lease, err := s.ClaimTransmission(callerAddr, "w1", "q1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if lease == nil {
		t.Fatal("claim: want a lease, got nil")
	}
	if lease.DestinationAddress != callerAddr {
		t.Fatalf("destination address: want %q, got %q", callerAddr, lease.DestinationAddress)
	}
	if lease.DestinationPort != 9000 {
		t.Fatalf("destination port: want 9000, got %d", lease.DestinationPort)
	}
}

func TestAnnounceReArmsRetriedTransmission(t *testing.T) {
	s := newService(t)
	seed(t, s)

	job, err := s.EnqueueTransmission(callerAddr, "q1", "dev-a", "dev-b", "payload")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	lease, err := s.ClaimTransmission(callerAddr, "w1", "q1")
	if err != nil || lease == nil {
		t.Fatalf("claim: %v, lease=%v", err, lease)
	}
	if _, err := s.FailTransmission(callerAddr, lease.Dequeue.GUID, `{"err":"refused"}`); err != nil {
		t.Fatalf("fail transmission: %v", err)
	}
	report, err := s.ClaimFailureReport(callerAddr, "r1")
	if err != nil || report == nil {
		t.Fatalf("claim report: %v, lease=%v", err, report)
	}
	if err := s.CompleteFailureReport(callerAddr, report.Dequeue.GUID, true); err != nil {
		t.Fatalf("complete report: %v", err)
	}

	// The retry waits for dev-b to come back; until then nothing claims.
	if l, err := s.ClaimTransmission(callerAddr, "w1", "q1"); err != nil || l != nil {
		t.Fatalf("claim before re-announce: want nil lease, got %v, err %v", l, err)
	}

	if _, err := s.AnnounceDevice(callerAddr, "dev-b", "thermostat", 9000); err != nil {
		t.Fatalf("re-announce: %v", err)
	}
	retried, err := s.ClaimTransmission(callerAddr, "w1", "q1")
	if err != nil || retried == nil {
		t.Fatalf("claim after re-announce: %v, lease=%v", err, retried)
	}
	if retried.Job.GUID != job.GUID {
		t.Fatalf("retried job: want %s, got %s", job.GUID, retried.Job.GUID)
	}
}

func TestListJobsWithFilter(t *testing.T) {
	s := newService(t)
	seed(t, s)

	if _, err := s.EnqueueTransmission(callerAddr, "q1", "dev-a", "dev-b", `{"kind":"alpha"}`); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := s.EnqueueTransmission(callerAddr, "q1", "dev-b", "dev-a", `{"kind":"beta"}`); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	all, err := s.ListJobs("delivery", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("unfiltered list: want 2, got %d", len(all))
	}

	got, err := s.ListJobs("delivery", `payload.kind == "beta"`, 0)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(got) != 1 || got[0].SourceGUID != "dev-b" {
		t.Fatalf("filtered list: want the beta job from dev-b, got %+v", got)
	}

	byDest, err := s.ListJobs("delivery", `destination == "dev-b" && phase == "pending"`, 0)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(byDest) != 1 || byDest[0].DestGUID != "dev-b" {
		t.Fatalf("destination filter: want 1 job to dev-b, got %+v", byDest)
	}

	if _, err := s.ListJobs("delivery", `not valid cel(`, 0); err == nil {
		t.Fatal("bad filter expression: want error")
	}
	if _, err := s.ListJobs("nope", "", 0); !errdefs.IsNotFound(err) {
		t.Fatalf("unknown ledger: want not found, got %v", err)
	}
}

func TestWorkerLifecycle(t *testing.T) {
	s := newService(t)
	seed(t, s)

	live, err := s.ListResponsiveWorkers(workers.KindDequeuer)
	if err != nil {
		t.Fatalf("list workers: %v", err)
	}
	if len(live) != 1 || live[0].GUID != "w1" {
		t.Fatalf("responsive dequeuers: want [w1], got %+v", live)
	}

	if err := s.MarkWorkerUnresponsive(workers.KindDequeuer, "w1"); err != nil {
		t.Fatalf("mark unresponsive: %v", err)
	}
	live, err = s.ListResponsiveWorkers(workers.KindDequeuer)
	if err != nil {
		t.Fatalf("list workers: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("responsive dequeuers after mark: want none, got %+v", live)
	}

	// Re-registration restores responsiveness.
	if _, err := s.RegisterWorker(callerAddr, workers.KindDequeuer, "w1"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	live, err = s.ListResponsiveWorkers(workers.KindDequeuer)
	if err != nil || len(live) != 1 {
		t.Fatalf("responsive dequeuers after re-register: want [w1], got %+v err %v", live, err)
	}
}

func TestListDevicesByPurpose(t *testing.T) {
	s := newService(t)
	seed(t, s)

	if _, err := s.AnnounceDevice(callerAddr, "dev-c", "doorbell", 9001); err != nil {
		t.Fatalf("announce: %v", err)
	}
	devs, err := s.ListDevices("thermostat")
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if len(devs) != 2 {
		t.Fatalf("thermostat devices: want 2, got %d", len(devs))
	}
	devs, err = s.ListDevices("doorbell")
	if err != nil || len(devs) != 1 || devs[0].GUID != "dev-c" {
		t.Fatalf("doorbell devices: want [dev-c], got %+v err %v", devs, err)
	}
}
