package ledger

import (
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/courierd/courier/internal/errdefs"
	"github.com/courierd/courier/internal/identity"
	logpkg "github.com/courierd/courier/pkg/log"
)

// claimNext is the shared ordering/claim algorithm, applied to either
// ledger with its own lane rules. It runs inside a single-writer
// transaction, so selection and lease insertion are atomic with respect to
// every other ledger mutation.
//
// The scan walks the open set oldest first, accumulating the lanes of every
// open job it passes. A job is chosen when it matches the claim scope, is
// claimable, and none of its lanes were seen on an older open job: an older
// non-terminal job in a shared lane gates everything younger behind it,
// which is what forces strictly sequential delivery per lane.
func (l *Ledger) claimNext(b *pebble.Batch, scope string, claimant identity.Client, snapshot func(*Job) (string, error), nowMs int64) (*Lease, error) {
	var chosen *Job
	blocked := make(map[string]struct{})

	err := l.forEachOpen(func(j *Job) error {
		gated := false
		for _, lane := range l.lanes(j) {
			if _, ok := blocked[lane]; ok {
				gated = true
				break
			}
		}
		if !gated && j.Claimable() && l.inScope(j, scope) {
			job := *j
			chosen = &job
			return errStopScan
		}
		for _, lane := range l.lanes(j) {
			blocked[lane] = struct{}{}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, err
	}
	if chosen == nil {
		return nil, nil // nothing eligible: a normal, frequent outcome
	}

	snap, err := snapshot(chosen)
	if err != nil {
		return nil, err
	}
	deq := Dequeue{
		GUID:               uuid.NewString(),
		JobGUID:            chosen.GUID,
		ClaimantClient:     claimant.GUID,
		DestClientSnapshot: snap,
		CreatedAtMs:        nowMs,
	}
	if err := l.putDequeue(b, &deq); err != nil {
		return nil, err
	}
	chosen.Phase = PhaseLeased
	chosen.ActiveDequeueGUID = deq.GUID
	// A claim consumes the armed flag in the same atomic step.
	if chosen.Retry == RetryArmed {
		chosen.Retry = RetryNone
	}
	if err := l.putJob(b, chosen); err != nil {
		return nil, err
	}
	return &Lease{Dequeue: deq, Job: *chosen}, nil
}

// errStopScan terminates forEachOpen early once a job is chosen.
var errStopScan = errors.New("ledger: stop scan")

// ClaimTransmission selects and leases the oldest eligible transmission in
// the queue for the claimant. A nil lease means nothing is claimable.
func (ls *Ledgers) ClaimTransmission(queueGUID string, claimant identity.Client) (*Lease, error) {
	var lease *Lease
	err := ls.db.Update(func(b *pebble.Batch) error {
		var err error
		lease, err = ls.Delivery.claimNext(b, queueGUID, claimant, ls.destClientSnapshot, ls.gen.Next().UnixMilli())
		return err
	})
	if err != nil {
		return nil, err
	}
	if lease != nil {
		ls.logger.Info("transmission claimed",
			logpkg.Str("transmission", lease.Job.GUID),
			logpkg.Str("dequeue", lease.Dequeue.GUID),
			logpkg.Str("queue", queueGUID))
	}
	return lease, nil
}

// ClaimFailureReport selects and leases the oldest eligible failure report.
// Reports are scoped only by the reporter doing the claiming.
func (ls *Ledgers) ClaimFailureReport(claimant identity.Client) (*Lease, error) {
	var lease *Lease
	err := ls.db.Update(func(b *pebble.Batch) error {
		var err error
		lease, err = ls.Failure.claimNext(b, "", claimant, ls.destClientSnapshot, ls.gen.Next().UnixMilli())
		return err
	})
	if err != nil {
		return nil, err
	}
	if lease != nil {
		ls.logger.Info("failure report claimed",
			logpkg.Str("report", lease.Job.GUID),
			logpkg.Str("dequeue", lease.Dequeue.GUID))
	}
	return lease, nil
}

// destClientSnapshot records the destination device's current client at
// claim time, so the worker dials where the device most recently announced
// from even if it moves afterwards.
func (ls *Ledgers) destClientSnapshot(j *Job) (string, error) {
	dev, err := ls.registry.DeviceByGUID(j.DestGUID)
	if errdefs.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return dev.LastKnownClient, nil
}
