// Package worker implements the delivery loops that drain the relay: the
// dequeuer pushes claimed transmissions to destination devices, the
// reporter carries failure reports back to origin devices and returns
// their retry decisions.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	apiclient "github.com/courierd/courier/internal/client"
	"github.com/courierd/courier/internal/transport"
	"github.com/courierd/courier/internal/workers"
	logpkg "github.com/courierd/courier/pkg/log"
)

// Options configures a worker loop.
type Options struct {
	// GUID identifies the worker to the relay. Required.
	GUID string
	// Queue scopes a dequeuer to one queue. Ignored by reporters.
	Queue string
	// PollInterval is the sleep after an empty claim.
	PollInterval time.Duration
	// DialTimeout bounds each device delivery.
	DialTimeout time.Duration
	Logger      *logpkg.Logger
}

func (o *Options) defaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logpkg.Nop()
	}
}

func deviceAddr(lease *apiclient.Lease) (string, error) {
	if lease.DestinationAddress == "" || lease.DestinationPort == 0 {
		return "", fmt.Errorf("destination device %s has no known address", lease.Job.DestGUID)
	}
	return net.JoinHostPort(lease.DestinationAddress, strconv.Itoa(lease.DestinationPort)), nil
}

func errPayload(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dequeuer drains transmissions from one queue.
type Dequeuer struct {
	api    *apiclient.Client
	dialer transport.Dialer
	opts   Options
}

// NewDequeuer builds a dequeuer over the given API client.
func NewDequeuer(api *apiclient.Client, opts Options) *Dequeuer {
	opts.defaults()
	return &Dequeuer{
		api:    api,
		dialer: transport.Dialer{Timeout: opts.DialTimeout},
		opts:   opts,
	}
}

// Run registers the dequeuer and polls until ctx ends. On shutdown it
// marks itself unresponsive so operators see it gone.
func (d *Dequeuer) Run(ctx context.Context) error {
	logger := d.opts.Logger.WithComponent("dequeuer")
	if _, err := d.api.RegisterWorker(ctx, workers.KindDequeuer, d.opts.GUID); err != nil {
		return fmt.Errorf("register dequeuer: %w", err)
	}
	logger.Info("dequeuer started", logpkg.Str("worker", d.opts.GUID), logpkg.Str("queue", d.opts.Queue))
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.api.MarkWorkerUnresponsive(dctx, workers.KindDequeuer, d.opts.GUID)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		lease, err := d.api.ClaimTransmission(ctx, d.opts.GUID, d.opts.Queue)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("claim failed", logpkg.Err(err))
			if err := sleep(ctx, d.opts.PollInterval); err != nil {
				return nil
			}
			continue
		}
		if lease == nil {
			if err := sleep(ctx, d.opts.PollInterval); err != nil {
				return nil
			}
			continue
		}
		d.deliver(ctx, logger, lease)
	}
}

func (d *Dequeuer) deliver(ctx context.Context, logger *logpkg.Logger, lease *apiclient.Lease) {
	addr, err := deviceAddr(lease)
	if err == nil {
		err = d.dialer.Deliver(ctx, addr, transport.JSONPayload{Document: lease.Job.Payload})
	}
	if err != nil {
		logger.Warn("delivery failed",
			logpkg.Str("job", lease.Job.GUID),
			logpkg.Str("destination", lease.Job.DestGUID),
			logpkg.Err(err))
		if _, ferr := d.api.FailTransmission(ctx, lease.Dequeue.GUID, errPayload(err)); ferr != nil {
			logger.Error("fail-transmission writeback failed", logpkg.Err(ferr))
		}
		return
	}
	if err := d.api.CompleteTransmission(ctx, lease.Dequeue.GUID); err != nil {
		logger.Error("complete writeback failed", logpkg.Str("job", lease.Job.GUID), logpkg.Err(err))
		return
	}
	logger.Info("delivered", logpkg.Str("job", lease.Job.GUID), logpkg.Str("destination", lease.Job.DestGUID))
}

// Reporter carries failure reports back to origin devices.
type Reporter struct {
	api    *apiclient.Client
	dialer transport.Dialer
	opts   Options
}

// NewReporter builds a reporter over the given API client.
func NewReporter(api *apiclient.Client, opts Options) *Reporter {
	opts.defaults()
	return &Reporter{
		api:    api,
		dialer: transport.Dialer{Timeout: opts.DialTimeout},
		opts:   opts,
	}
}

// reportDoc is what a device receives when a transmission it sent failed.
type reportDoc struct {
	ReportGUID   string `json:"report_guid"`
	JobGUID      string `json:"job_guid"`
	QueueGUID    string `json:"queue_guid"`
	ErrorPayload string `json:"error_payload"`
}

// retryDecision is the device's single-frame answer to a report.
type retryDecision struct {
	RetryRequested bool `json:"retry_requested"`
}

// Run registers the reporter and polls until ctx ends.
func (r *Reporter) Run(ctx context.Context) error {
	logger := r.opts.Logger.WithComponent("reporter")
	if _, err := r.api.RegisterWorker(ctx, workers.KindReporter, r.opts.GUID); err != nil {
		return fmt.Errorf("register reporter: %w", err)
	}
	logger.Info("reporter started", logpkg.Str("worker", r.opts.GUID))
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.api.MarkWorkerUnresponsive(dctx, workers.KindReporter, r.opts.GUID)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		lease, err := r.api.ClaimFailureReport(ctx, r.opts.GUID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("claim failed", logpkg.Err(err))
			if err := sleep(ctx, r.opts.PollInterval); err != nil {
				return nil
			}
			continue
		}
		if lease == nil {
			if err := sleep(ctx, r.opts.PollInterval); err != nil {
				return nil
			}
			continue
		}
		r.report(ctx, logger, lease)
	}
}

func (r *Reporter) report(ctx context.Context, logger *logpkg.Logger, lease *apiclient.Lease) {
	doc, _ := json.Marshal(reportDoc{
		ReportGUID:   lease.Job.GUID,
		JobGUID:      lease.Job.OriginJobGUID,
		QueueGUID:    lease.Job.QueueGUID,
		ErrorPayload: lease.Job.ErrorPayload,
	})
	addr, err := deviceAddr(lease)
	var frames [][]byte
	if err == nil {
		frames, err = r.dialer.Exchange(ctx, addr, transport.JSONPayload{Document: string(doc)})
	}
	if err != nil {
		logger.Warn("report delivery failed",
			logpkg.Str("report", lease.Job.GUID),
			logpkg.Str("origin", lease.Job.DestGUID),
			logpkg.Err(err))
		if ferr := r.api.FailFailureReport(ctx, lease.Dequeue.GUID, errPayload(err)); ferr != nil {
			logger.Error("fail-report writeback failed", logpkg.Err(ferr))
		}
		return
	}
	var decision retryDecision
	if len(frames) == 1 {
		_ = json.Unmarshal(frames[0], &decision)
	}
	if err := r.api.CompleteFailureReport(ctx, lease.Dequeue.GUID, decision.RetryRequested); err != nil {
		logger.Error("complete-report writeback failed", logpkg.Str("report", lease.Job.GUID), logpkg.Err(err))
		return
	}
	logger.Info("reported",
		logpkg.Str("report", lease.Job.GUID),
		logpkg.Bool("retry_requested", decision.RetryRequested))
}
