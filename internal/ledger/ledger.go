package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/courierd/courier/internal/errdefs"
	"github.com/courierd/courier/internal/identity"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
	"github.com/courierd/courier/pkg/id"
	logpkg "github.com/courierd/courier/pkg/log"
)

// Lane-key prefixes keep device and queue partition keys from colliding.
const (
	laneDevice = "dev:"
	laneQueue  = "q:"
)

// Ledger is one of the two mirrored job ledgers. The delivery instance
// orders by destination device and queue; the failure instance orders by the
// failed transmission's source device.
type Ledger struct {
	name    string
	db      *pebblestore.DB
	lanes   func(*Job) []string
	inScope func(*Job, string) bool
}

// Ledgers bundles the delivery ledger, its failure-report mirror, and the
// registry the claim engine snapshots destination clients from. All
// mutating operations run as single-writer transactions on the shared store.
type Ledgers struct {
	db       *pebblestore.DB
	gen      *id.Generator
	registry *identity.Registry
	logger   *logpkg.Logger

	Delivery *Ledger
	Failure  *Ledger
}

// New builds the ledger pair over the shared store.
func New(db *pebblestore.DB, registry *identity.Registry, logger *logpkg.Logger) *Ledgers {
	if logger == nil {
		logger = logpkg.Nop()
	}
	return &Ledgers{
		db:       db,
		gen:      id.NewGenerator(),
		registry: registry,
		logger:   logger.WithComponent("ledger"),
		Delivery: &Ledger{
			name: "delivery",
			db:   db,
			lanes: func(j *Job) []string {
				return []string{laneDevice + j.DestGUID, laneQueue + j.QueueGUID}
			},
			inScope: func(j *Job, scope string) bool { return j.QueueGUID == scope },
		},
		Failure: &Ledger{
			name: "failure",
			db:   db,
			lanes: func(j *Job) []string {
				return []string{laneDevice + j.DestGUID}
			},
			// Failure reports are scoped only by the reporter's claim; every
			// open report is a candidate.
			inScope: func(*Job, string) bool { return true },
		},
	}
}

// Name returns the ledger's storage namespace ("delivery" or "failure").
func (l *Ledger) Name() string { return l.name }

func (l *Ledger) putJob(b *pebble.Batch, j *Job) error {
	sort, ok := id.FromString(j.Sort)
	if !ok {
		return fmt.Errorf("ledger %s: job %s has bad sort key %q", l.name, j.GUID, j.Sort)
	}
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := b.Set(jobKey(l.name, sort), data, nil); err != nil {
		return err
	}
	if j.Open() {
		return b.Set(openKey(l.name, sort), nil, nil)
	}
	return b.Delete(openKey(l.name, sort), nil)
}

func (l *Ledger) insertJob(b *pebble.Batch, j *Job) error {
	sort, ok := id.FromString(j.Sort)
	if !ok {
		return fmt.Errorf("ledger %s: job %s has bad sort key %q", l.name, j.GUID, j.Sort)
	}
	if err := b.Set(guidKey(l.name, j.GUID), sort.Bytes(), nil); err != nil {
		return err
	}
	return l.putJob(b, j)
}

func (l *Ledger) jobBySort(sort id.Key) (Job, error) {
	data, err := l.db.Get(jobKey(l.name, sort))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Job{}, errdefs.NotFoundf("%s job at %s", l.name, sort)
	}
	if err != nil {
		return Job{}, err
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("unmarshal %s job: %w", l.name, err)
	}
	return j, nil
}

// JobByGUID loads a job row by its externally visible GUID.
func (l *Ledger) JobByGUID(guid string) (Job, error) {
	sortBytes, err := l.db.Get(guidKey(l.name, guid))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Job{}, errdefs.NotFoundf("%s job %s", l.name, guid)
	}
	if err != nil {
		return Job{}, err
	}
	sort, ok := id.FromBytes(sortBytes)
	if !ok {
		return Job{}, fmt.Errorf("ledger %s: corrupt sort index for job %s", l.name, guid)
	}
	return l.jobBySort(sort)
}

// DequeueByGUID loads a lease row.
func (l *Ledger) DequeueByGUID(guid string) (Dequeue, error) {
	data, err := l.db.Get(dequeueKey(l.name, guid))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Dequeue{}, errdefs.NotFoundf("%s dequeue %s", l.name, guid)
	}
	if err != nil {
		return Dequeue{}, err
	}
	var d Dequeue
	if err := json.Unmarshal(data, &d); err != nil {
		return Dequeue{}, fmt.Errorf("unmarshal %s dequeue: %w", l.name, err)
	}
	return d, nil
}

// CompletionByDequeue loads the completion row for a lease, if any.
func (l *Ledger) CompletionByDequeue(dequeueGUID string) (Completion, error) {
	data, err := l.db.Get(completionKey(l.name, dequeueGUID))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Completion{}, errdefs.NotFoundf("%s completion for dequeue %s", l.name, dequeueGUID)
	}
	if err != nil {
		return Completion{}, err
	}
	var c Completion
	if err := json.Unmarshal(data, &c); err != nil {
		return Completion{}, fmt.Errorf("unmarshal %s completion: %w", l.name, err)
	}
	return c, nil
}

func (l *Ledger) hasCompletion(dequeueGUID string) (bool, error) {
	return l.db.Has(completionKey(l.name, dequeueGUID))
}

func (l *Ledger) putCompletion(b *pebble.Batch, c *Completion) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal completion: %w", err)
	}
	return b.Set(completionKey(l.name, c.DequeueGUID), data, nil)
}

func (l *Ledger) putDequeue(b *pebble.Batch, d *Dequeue) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dequeue: %w", err)
	}
	return b.Set(dequeueKey(l.name, d.GUID), data, nil)
}

// AttemptErrors lists the report errors recorded against a lease, oldest
// first.
func (l *Ledger) AttemptErrors(dequeueGUID string) ([]AttemptError, error) {
	it, err := l.db.PrefixIter(attemptErrPrefix(l.name, dequeueGUID))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []AttemptError
	for ok := it.First(); ok; ok = it.Next() {
		var e AttemptError
		if err := json.Unmarshal(it.Value(), &e); err != nil {
			return nil, fmt.Errorf("unmarshal attempt error: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ListJobs returns up to limit jobs in creation order. limit <= 0 lists all.
func (l *Ledger) ListJobs(limit int) ([]Job, error) {
	it, err := l.db.PrefixIter(jobPrefix(l.name))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Job
	for ok := it.First(); ok; ok = it.Next() {
		var j Job
		if err := json.Unmarshal(it.Value(), &j); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		out = append(out, j)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// EnqueueTransmission inserts a new transmission addressed from source to
// destination through the named queue. Queue and both devices must already
// be registered.
func (ls *Ledgers) EnqueueTransmission(queueGUID, sourceGUID, destGUID string, payload string, requester identity.Client) (Job, error) {
	var job Job
	err := ls.db.Update(func(b *pebble.Batch) error {
		if ok, err := ls.registry.QueueExists(queueGUID); err != nil {
			return err
		} else if !ok {
			return errdefs.Integrityf("enqueue into unregistered queue %s", queueGUID)
		}
		for _, dev := range []string{sourceGUID, destGUID} {
			if ok, err := ls.registry.DeviceExists(dev); err != nil {
				return err
			} else if !ok {
				return errdefs.Integrityf("enqueue references unregistered device %s", dev)
			}
		}
		sort := ls.gen.Next()
		job = Job{
			GUID:        uuid.NewString(),
			Sort:        sort.String(),
			QueueGUID:   queueGUID,
			SourceGUID:  sourceGUID,
			DestGUID:    destGUID,
			Requester:   requester.GUID,
			Payload:     payload,
			CreatedAtMs: sort.UnixMilli(),
			Phase:       PhasePending,
			Retry:       RetryNone,
		}
		return ls.Delivery.insertJob(b, &job)
	})
	if err != nil {
		return Job{}, err
	}
	ls.logger.Info("transmission enqueued",
		logpkg.Str("transmission", job.GUID),
		logpkg.Str("queue", queueGUID),
		logpkg.Str("destination", destGUID))
	return job, nil
}

// CompleteTransmission marks a delivery lease successful and closes its
// transmission. Any client may acknowledge a lease; completing an already
// completed lease is a no-op, completing a lease that already failed is an
// integrity violation.
func (ls *Ledgers) CompleteTransmission(dequeueGUID string, claimant identity.Client) error {
	err := ls.db.Update(func(b *pebble.Batch) error {
		deq, err := ls.Delivery.DequeueByGUID(dequeueGUID)
		if err != nil {
			return err
		}
		if done, err := ls.Delivery.hasCompletion(dequeueGUID); err != nil {
			return err
		} else if done {
			return nil
		}
		// A stale ack after the lease failed must not close the transmission
		// under its open failure report.
		if failed, err := ls.db.Has(byOriginKey(ls.Failure.name, dequeueGUID)); err != nil {
			return err
		} else if failed {
			return errdefs.Integrityf("dequeue %s already failed", dequeueGUID)
		}
		job, err := ls.Delivery.JobByGUID(deq.JobGUID)
		if err != nil {
			return err
		}
		c := Completion{
			GUID:           uuid.NewString(),
			DequeueGUID:    dequeueGUID,
			ReporterClient: claimant.GUID,
			CreatedAtMs:    ls.gen.Next().UnixMilli(),
		}
		if err := ls.Delivery.putCompletion(b, &c); err != nil {
			return err
		}
		job.Phase = PhaseClosed
		job.ActiveDequeueGUID = ""
		return ls.Delivery.putJob(b, &job)
	})
	if err != nil {
		return err
	}
	ls.logger.Info("transmission completed", logpkg.Str("dequeue", dequeueGUID))
	return nil
}

// FailTransmission records a failed delivery and opens exactly one failure
// report addressed back at the transmission's source device. Failing the
// same lease again returns the existing report.
func (ls *Ledgers) FailTransmission(dequeueGUID string, claimant identity.Client, errorPayload string) (Job, error) {
	var report Job
	err := ls.db.Update(func(b *pebble.Batch) error {
		deq, err := ls.Delivery.DequeueByGUID(dequeueGUID)
		if err != nil {
			return err
		}
		if existing, err := ls.db.Get(byOriginKey(ls.Failure.name, dequeueGUID)); err == nil {
			report, err = ls.Failure.JobByGUID(string(existing))
			return err
		} else if !errors.Is(err, pebblestore.ErrNotFound) {
			return err
		}
		if done, err := ls.Delivery.hasCompletion(dequeueGUID); err != nil {
			return err
		} else if done {
			return errdefs.Integrityf("dequeue %s already completed", dequeueGUID)
		}
		job, err := ls.Delivery.JobByGUID(deq.JobGUID)
		if err != nil {
			return err
		}
		job.Phase = PhaseAwaitingReport
		job.ActiveDequeueGUID = ""
		if err := ls.Delivery.putJob(b, &job); err != nil {
			return err
		}

		sort := ls.gen.Next()
		report = Job{
			GUID:      uuid.NewString(),
			Sort:      sort.String(),
			QueueGUID: job.QueueGUID,
			// The report travels back to the transmission's source, which is
			// also its single partition key.
			SourceGUID:        job.DestGUID,
			DestGUID:          job.SourceGUID,
			Requester:         claimant.GUID,
			ErrorPayload:      errorPayload,
			CreatedAtMs:       sort.UnixMilli(),
			Phase:             PhasePending,
			Retry:             RetryNone,
			OriginDequeueGUID: dequeueGUID,
			OriginJobGUID:     job.GUID,
		}
		if err := ls.Failure.insertJob(b, &report); err != nil {
			return err
		}
		return b.Set(byOriginKey(ls.Failure.name, dequeueGUID), []byte(report.GUID), nil)
	})
	if err != nil {
		return Job{}, err
	}
	ls.logger.Info("transmission failed",
		logpkg.Str("dequeue", dequeueGUID),
		logpkg.Str("report", report.GUID))
	return report, nil
}

// CompleteFailureReport records the origin device's retry decision, closes
// the report, and either re-arms the original transmission for the next
// device announcement or closes it permanently.
func (ls *Ledgers) CompleteFailureReport(dequeueGUID string, claimant identity.Client, retryRequested bool) error {
	err := ls.db.Update(func(b *pebble.Batch) error {
		deq, err := ls.Failure.DequeueByGUID(dequeueGUID)
		if err != nil {
			return err
		}
		if done, err := ls.Failure.hasCompletion(dequeueGUID); err != nil {
			return err
		} else if done {
			return nil
		}
		report, err := ls.Failure.JobByGUID(deq.JobGUID)
		if err != nil {
			return err
		}
		c := Completion{
			GUID:           uuid.NewString(),
			DequeueGUID:    dequeueGUID,
			ReporterClient: claimant.GUID,
			RetryRequested: &retryRequested,
			CreatedAtMs:    ls.gen.Next().UnixMilli(),
		}
		if err := ls.Failure.putCompletion(b, &c); err != nil {
			return err
		}
		report.Phase = PhaseClosed
		report.ActiveDequeueGUID = ""
		if err := ls.Failure.putJob(b, &report); err != nil {
			return err
		}

		orig, err := ls.Delivery.JobByGUID(report.OriginJobGUID)
		if err != nil {
			return err
		}
		// A transmission that already reached a terminal state stays closed;
		// the origin's decision cannot reopen it.
		if orig.Phase == PhaseClosed {
			return nil
		}
		orig.Retry = RetryExhausted
		if retryRequested {
			orig.Phase = PhaseWaitingDevice
		} else {
			orig.Phase = PhaseClosed
		}
		return ls.Delivery.putJob(b, &orig)
	})
	if err != nil {
		return err
	}
	ls.logger.Info("failure report completed",
		logpkg.Str("dequeue", dequeueGUID),
		logpkg.Bool("retry_requested", retryRequested))
	return nil
}

// FailFailureReport records that delivering a failure report itself failed.
// The error row ends the lease but the report stays open and claimable; it
// is never dropped.
func (ls *Ledgers) FailFailureReport(dequeueGUID string, claimant identity.Client, errorPayload string) error {
	err := ls.db.Update(func(b *pebble.Batch) error {
		deq, err := ls.Failure.DequeueByGUID(dequeueGUID)
		if err != nil {
			return err
		}
		if done, err := ls.Failure.hasCompletion(dequeueGUID); err != nil {
			return err
		} else if done {
			return errdefs.Integrityf("failure dequeue %s already completed", dequeueGUID)
		}
		report, err := ls.Failure.JobByGUID(deq.JobGUID)
		if err != nil {
			return err
		}
		sort := ls.gen.Next()
		e := AttemptError{
			GUID:         uuid.NewString(),
			DequeueGUID:  dequeueGUID,
			ErrorPayload: errorPayload,
			CreatedAtMs:  sort.UnixMilli(),
		}
		data, err := json.Marshal(&e)
		if err != nil {
			return fmt.Errorf("marshal attempt error: %w", err)
		}
		if err := b.Set(attemptErrKey(ls.Failure.name, dequeueGUID, sort), data, nil); err != nil {
			return err
		}
		report.Phase = PhasePending
		report.ActiveDequeueGUID = ""
		report.LastAttemptErred = true
		report.Retry = RetryExhausted
		return ls.Failure.putJob(b, &report)
	})
	if err != nil {
		return err
	}
	ls.logger.Info("failure report attempt erred", logpkg.Str("dequeue", dequeueGUID))
	return nil
}

// ReArmForDeviceTx applies the device-reconnect side effect inside the
// caller's announce transaction: transmissions waiting on the device to
// come back become claimable again, and failure reports sourced from it
// whose last attempt erred are re-armed. Returns the number of jobs
// touched.
func (ls *Ledgers) ReArmForDeviceTx(b *pebble.Batch, deviceGUID string) (int, error) {
	rearmed := 0
	err := ls.Delivery.forEachOpen(func(j *Job) error {
		if j.DestGUID != deviceGUID || j.Phase != PhaseWaitingDevice {
			return nil
		}
		j.Phase = PhasePending
		j.Retry = RetryArmed
		rearmed++
		return ls.Delivery.putJob(b, j)
	})
	if err != nil {
		return rearmed, err
	}
	err = ls.Failure.forEachOpen(func(j *Job) error {
		if j.DestGUID != deviceGUID || j.Phase != PhasePending || !j.LastAttemptErred {
			return nil
		}
		j.Retry = RetryArmed
		rearmed++
		return ls.Failure.putJob(b, j)
	})
	return rearmed, err
}

// forEachOpen visits every non-terminal job oldest first.
func (l *Ledger) forEachOpen(fn func(*Job) error) error {
	it, err := l.db.PrefixIter(openPrefix(l.name))
	if err != nil {
		return err
	}
	defer it.Close()

	prefixLen := len(openPrefix(l.name))
	for ok := it.First(); ok; ok = it.Next() {
		sort, ok2 := id.FromBytes(it.Key()[prefixLen:])
		if !ok2 {
			continue
		}
		j, err := l.jobBySort(sort)
		if err != nil {
			return err
		}
		if !j.Open() {
			continue // stale open entry
		}
		if err := fn(&j); err != nil {
			return err
		}
	}
	return nil
}
