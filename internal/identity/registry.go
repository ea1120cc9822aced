package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/courierd/courier/internal/errdefs"
	pebblestore "github.com/courierd/courier/internal/storage/pebble"
	logpkg "github.com/courierd/courier/pkg/log"
)

// Client is a stable identity for an observed network address. Created
// lazily on first contact, never deleted, immutable once created.
type Client struct {
	GUID        string `json:"guid"`
	Address     string `json:"address"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// Device is an announced endpoint. Upserted on every announcement; the GUID
// is the stable key, everything else is overwritten.
type Device struct {
	GUID            string `json:"guid"`
	PurposeGUID     string `json:"purpose_guid"`
	ListenPort      int    `json:"listen_port"`
	LastKnownClient string `json:"last_known_client"`
	LastSeenMs      int64  `json:"last_seen_ms"`
}

// Queue is a pure namespace. It has no ordering semantics of its own; it is
// one of the partition keys the claim engine orders by.
type Queue struct {
	GUID        string `json:"guid"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// Registry maps network addresses to client identities and declared
// device/queue identifiers to their registration records.
type Registry struct {
	db     *pebblestore.DB
	logger *logpkg.Logger
}

// NewRegistry builds a Registry over the shared store.
func NewRegistry(db *pebblestore.DB, logger *logpkg.Logger) *Registry {
	if logger == nil {
		logger = logpkg.Nop()
	}
	return &Registry{db: db, logger: logger.WithComponent("identity")}
}

// RegisterClient upserts a client identity keyed by network address. The
// existing identity is returned when the address has been seen before.
func (r *Registry) RegisterClient(address string) (Client, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Client{}, errors.New("identity: empty client address")
	}
	if c, err := r.clientByAddress(address); err == nil {
		return c, nil
	} else if !errors.Is(err, pebblestore.ErrNotFound) {
		return Client{}, err
	}

	c := Client{GUID: uuid.NewString(), Address: address, CreatedAtMs: time.Now().UnixMilli()}
	err := r.db.Update(func(b *pebble.Batch) error {
		// Re-check under the write lock; a racing first contact wins.
		if prev, err := r.clientByAddress(address); err == nil {
			c = prev
			return nil
		} else if !errors.Is(err, pebblestore.ErrNotFound) {
			return err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal client: %w", err)
		}
		if err := b.Set(clientKey(c.GUID), data, nil); err != nil {
			return err
		}
		return b.Set(clientAddrKey(address), []byte(c.GUID), nil)
	})
	if err != nil {
		return Client{}, err
	}
	r.logger.Debug("client registered", logpkg.Str("client", c.GUID), logpkg.Str("address", address))
	return c, nil
}

func (r *Registry) clientByAddress(address string) (Client, error) {
	guidBytes, err := r.db.Get(clientAddrKey(address))
	if err != nil {
		return Client{}, err
	}
	return r.ClientByGUID(string(guidBytes))
}

// ClientByGUID loads a client record.
func (r *Registry) ClientByGUID(guid string) (Client, error) {
	data, err := r.db.Get(clientKey(guid))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Client{}, errdefs.NotFoundf("client %s", guid)
	}
	if err != nil {
		return Client{}, err
	}
	var c Client
	if err := json.Unmarshal(data, &c); err != nil {
		return Client{}, fmt.Errorf("unmarshal client %s: %w", guid, err)
	}
	return c, nil
}

// UpsertDeviceTx writes a device announcement into the caller's transaction
// batch. The device-reconnect retry re-arm must land in the same batch, so
// the commit is owned by the caller.
func (r *Registry) UpsertDeviceTx(b *pebble.Batch, deviceGUID, purposeGUID string, listenPort int, client Client, nowMs int64) (Device, error) {
	if deviceGUID == "" {
		return Device{}, errors.New("identity: empty device guid")
	}
	prev, err := r.DeviceByGUID(deviceGUID)
	switch {
	case err == nil:
		if prev.PurposeGUID != purposeGUID {
			if err := b.Delete(purposeKey(prev.PurposeGUID, deviceGUID), nil); err != nil {
				return Device{}, err
			}
		}
	case errdefs.IsNotFound(err):
	default:
		return Device{}, err
	}

	d := Device{
		GUID:            deviceGUID,
		PurposeGUID:     purposeGUID,
		ListenPort:      listenPort,
		LastKnownClient: client.GUID,
		LastSeenMs:      nowMs,
	}
	data, err := json.Marshal(d)
	if err != nil {
		return Device{}, fmt.Errorf("marshal device: %w", err)
	}
	if err := b.Set(deviceKey(deviceGUID), data, nil); err != nil {
		return Device{}, err
	}
	if err := b.Set(purposeKey(purposeGUID, deviceGUID), nil, nil); err != nil {
		return Device{}, err
	}
	return d, nil
}

// DeviceByGUID loads a device record.
func (r *Registry) DeviceByGUID(guid string) (Device, error) {
	data, err := r.db.Get(deviceKey(guid))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Device{}, errdefs.NotFoundf("device %s", guid)
	}
	if err != nil {
		return Device{}, err
	}
	var d Device
	if err := json.Unmarshal(data, &d); err != nil {
		return Device{}, fmt.Errorf("unmarshal device %s: %w", guid, err)
	}
	return d, nil
}

// DeviceExists reports whether a device has ever been announced.
func (r *Registry) DeviceExists(guid string) (bool, error) {
	_, err := r.DeviceByGUID(guid)
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListDevicesByPurpose returns every device announced with the purpose.
// No ordering guarantee.
func (r *Registry) ListDevicesByPurpose(purposeGUID string) ([]Device, error) {
	it, err := r.db.PrefixIter(purposePrefix(purposeGUID))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Device
	prefixLen := len(purposePrefix(purposeGUID))
	for ok := it.First(); ok; ok = it.Next() {
		guid := string(it.Key()[prefixLen:])
		d, err := r.DeviceByGUID(guid)
		if errdefs.IsNotFound(err) {
			continue // stale index entry
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// RegisterQueue upserts a queue namespace.
func (r *Registry) RegisterQueue(guid string) (Queue, error) {
	if guid == "" {
		return Queue{}, errors.New("identity: empty queue guid")
	}
	if q, err := r.queueByGUID(guid); err == nil {
		return q, nil
	} else if !errdefs.IsNotFound(err) {
		return Queue{}, err
	}
	q := Queue{GUID: guid, CreatedAtMs: time.Now().UnixMilli()}
	data, err := json.Marshal(q)
	if err != nil {
		return Queue{}, fmt.Errorf("marshal queue: %w", err)
	}
	if err := r.db.Set(queueKey(guid), data); err != nil {
		return Queue{}, err
	}
	r.logger.Debug("queue registered", logpkg.Str("queue", guid))
	return q, nil
}

func (r *Registry) queueByGUID(guid string) (Queue, error) {
	data, err := r.db.Get(queueKey(guid))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return Queue{}, errdefs.NotFoundf("queue %s", guid)
	}
	if err != nil {
		return Queue{}, err
	}
	var q Queue
	if err := json.Unmarshal(data, &q); err != nil {
		return Queue{}, fmt.Errorf("unmarshal queue %s: %w", guid, err)
	}
	return q, nil
}

// QueueExists reports whether a queue has been registered.
func (r *Registry) QueueExists(guid string) (bool, error) {
	_, err := r.queueByGUID(guid)
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
