package relaysvc

import (
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/courierd/courier/internal/errdefs"
	"github.com/courierd/courier/internal/identity"
	"github.com/courierd/courier/internal/ledger"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
	"github.com/courierd/courier/internal/workers"
	logpkg "github.com/courierd/courier/pkg/log"
)

// Service coordinates the identity registry, the ledger pair, and the
// worker liveness registries behind the RPC surface. Callers are identified
// by the network address they contact us from; the service resolves that to
// a stable client identity before every operation.
type Service struct {
	db       *pebblestore.DB
	identity *identity.Registry
	ledgers  *ledger.Ledgers
	workers  *workers.Registry
	logger   *logpkg.Logger
}

// New builds the relay service over the shared store.
func New(db *pebblestore.DB, logger *logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.Nop()
	}
	reg := identity.NewRegistry(db, logger)
	return &Service{
		db:       db,
		identity: reg,
		ledgers:  ledger.New(db, reg, logger),
		workers:  workers.NewRegistry(db, logger),
		logger:   logger.WithComponent("relay"),
	}
}

// Ledgers exposes the ledger pair for read paths (admin, tests).
func (s *Service) Ledgers() *ledger.Ledgers { return s.ledgers }

func (s *Service) caller(remoteAddr string) (identity.Client, error) {
	return s.identity.RegisterClient(remoteAddr)
}

// AnnounceDevice upserts a device registration and, in the same
// transaction, re-arms any failed jobs waiting on this device.
func (s *Service) AnnounceDevice(remoteAddr, deviceGUID, purposeGUID string, listenPort int) (identity.Device, error) {
	client, err := s.caller(remoteAddr)
	if err != nil {
		return identity.Device{}, err
	}
	var dev identity.Device
	rearmed := 0
	err = s.db.Update(func(b *pebble.Batch) error {
		var err error
		dev, err = s.identity.UpsertDeviceTx(b, deviceGUID, purposeGUID, listenPort, client, time.Now().UnixMilli())
		if err != nil {
			return err
		}
		rearmed, err = s.ledgers.ReArmForDeviceTx(b, deviceGUID)
		return err
	})
	if err != nil {
		return identity.Device{}, err
	}
	s.logger.Info("device announced",
		logpkg.Str("device", deviceGUID),
		logpkg.Str("purpose", purposeGUID),
		logpkg.Int("rearmed", rearmed))
	return dev, nil
}

// ListDevices returns every device announced with the purpose.
func (s *Service) ListDevices(purposeGUID string) ([]identity.Device, error) {
	return s.identity.ListDevicesByPurpose(purposeGUID)
}

// RegisterQueue upserts a queue namespace.
func (s *Service) RegisterQueue(queueGUID string) (identity.Queue, error) {
	return s.identity.RegisterQueue(queueGUID)
}

// EnqueueTransmission inserts a transmission on behalf of the caller.
func (s *Service) EnqueueTransmission(remoteAddr, queueGUID, sourceGUID, destGUID, payload string) (ledger.Job, error) {
	client, err := s.caller(remoteAddr)
	if err != nil {
		return ledger.Job{}, err
	}
	return s.ledgers.EnqueueTransmission(queueGUID, sourceGUID, destGUID, payload, client)
}

// Lease is a claim result enriched with where the worker should dial.
type Lease struct {
	ledger.Lease
	DestinationAddress string `json:"destination_address"`
	DestinationPort    int    `json:"destination_port"`
}

func (s *Service) dialInfo(l *ledger.Lease) (string, int) {
	dev, err := s.identity.DeviceByGUID(l.Job.DestGUID)
	if err != nil {
		return "", 0
	}
	clientGUID := l.Dequeue.DestClientSnapshot
	if clientGUID == "" {
		clientGUID = dev.LastKnownClient
	}
	c, err := s.identity.ClientByGUID(clientGUID)
	if err != nil {
		return "", dev.ListenPort
	}
	return c.Address, dev.ListenPort
}

// ClaimTransmission leases the oldest eligible transmission in the queue
// for a registered dequeuer. A nil result means nothing is claimable.
func (s *Service) ClaimTransmission(remoteAddr, dequeuerGUID, queueGUID string) (*Lease, error) {
	if _, err := s.workers.Get(workers.KindDequeuer, dequeuerGUID); err != nil {
		return nil, err
	}
	client, err := s.caller(remoteAddr)
	if err != nil {
		return nil, err
	}
	l, err := s.ledgers.ClaimTransmission(queueGUID, client)
	if err != nil || l == nil {
		return nil, err
	}
	addr, port := s.dialInfo(l)
	return &Lease{Lease: *l, DestinationAddress: addr, DestinationPort: port}, nil
}

// CompleteTransmission acknowledges a delivered transmission.
func (s *Service) CompleteTransmission(remoteAddr, dequeueGUID string) error {
	client, err := s.caller(remoteAddr)
	if err != nil {
		return err
	}
	return s.ledgers.CompleteTransmission(dequeueGUID, client)
}

// FailTransmission records a failed delivery and returns the failure report
// that will travel back to the source device.
func (s *Service) FailTransmission(remoteAddr, dequeueGUID, errorPayload string) (ledger.Job, error) {
	client, err := s.caller(remoteAddr)
	if err != nil {
		return ledger.Job{}, err
	}
	return s.ledgers.FailTransmission(dequeueGUID, client, errorPayload)
}

// ClaimFailureReport leases the oldest eligible failure report for a
// registered reporter.
func (s *Service) ClaimFailureReport(remoteAddr, reporterGUID string) (*Lease, error) {
	if _, err := s.workers.Get(workers.KindReporter, reporterGUID); err != nil {
		return nil, err
	}
	client, err := s.caller(remoteAddr)
	if err != nil {
		return nil, err
	}
	l, err := s.ledgers.ClaimFailureReport(client)
	if err != nil || l == nil {
		return nil, err
	}
	addr, port := s.dialInfo(l)
	return &Lease{Lease: *l, DestinationAddress: addr, DestinationPort: port}, nil
}

// CompleteFailureReport writes back the origin device's retry decision.
func (s *Service) CompleteFailureReport(remoteAddr, dequeueGUID string, retryRequested bool) error {
	client, err := s.caller(remoteAddr)
	if err != nil {
		return err
	}
	return s.ledgers.CompleteFailureReport(dequeueGUID, client, retryRequested)
}

// FailFailureReport records that delivering a failure report failed; the
// report stays claimable.
func (s *Service) FailFailureReport(remoteAddr, dequeueGUID, errorPayload string) error {
	client, err := s.caller(remoteAddr)
	if err != nil {
		return err
	}
	return s.ledgers.FailFailureReport(dequeueGUID, client, errorPayload)
}

// RegisterWorker upserts a dequeuer or reporter registration.
func (s *Service) RegisterWorker(remoteAddr string, kind workers.Kind, workerGUID string) (workers.Worker, error) {
	client, err := s.caller(remoteAddr)
	if err != nil {
		return workers.Worker{}, err
	}
	return s.workers.Register(kind, workerGUID, client)
}

// MarkWorkerUnresponsive flips a worker's responsive flag.
func (s *Service) MarkWorkerUnresponsive(kind workers.Kind, workerGUID string) error {
	return s.workers.MarkUnresponsive(kind, workerGUID)
}

// ListResponsiveWorkers lists workers currently marked responsive.
func (s *Service) ListResponsiveWorkers(kind workers.Kind) ([]workers.Worker, error) {
	return s.workers.ListResponsive(kind)
}

// ledgerByName resolves an admin listing target.
func (s *Service) ledgerByName(name string) (*ledger.Ledger, error) {
	switch name {
	case "", "delivery":
		return s.ledgers.Delivery, nil
	case "failure":
		return s.ledgers.Failure, nil
	default:
		return nil, errdefs.NotFoundf("ledger %q", name)
	}
}
