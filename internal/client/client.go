// Package apiclient is the Go client for the relay HTTP API, shared by the
// CLI commands and the worker loops.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/courierd/courier/internal/identity"
	"github.com/courierd/courier/internal/ledger"
	"github.com/courierd/courier/internal/workers"
)

// Client talks to one relay server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the given base URL, e.g. "http://127.0.0.1:8080".
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// APIError is a non-2xx response from the relay.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay: %d %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Lease mirrors the server's claim response.
type Lease struct {
	ledger.Lease
	DestinationAddress string `json:"destination_address"`
	DestinationPort    int    `json:"destination_port"`
}

// AnnounceDevice registers or refreshes a device.
func (c *Client) AnnounceDevice(ctx context.Context, deviceGUID, purposeGUID string, listenPort int) (identity.Device, error) {
	var dev identity.Device
	err := c.do(ctx, http.MethodPost, "/v1/devices/announce", map[string]any{
		"device_guid":  deviceGUID,
		"purpose_guid": purposeGUID,
		"listen_port":  listenPort,
	}, &dev)
	return dev, err
}

// ListDevices lists devices announced with a purpose.
func (c *Client) ListDevices(ctx context.Context, purposeGUID string) ([]identity.Device, error) {
	var resp struct {
		Devices []identity.Device `json:"devices"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/devices?purpose="+url.QueryEscape(purposeGUID), nil, &resp)
	return resp.Devices, err
}

// RegisterQueue upserts a queue namespace.
func (c *Client) RegisterQueue(ctx context.Context, queueGUID string) (identity.Queue, error) {
	var q identity.Queue
	err := c.do(ctx, http.MethodPost, "/v1/queues/create", map[string]string{"queue_guid": queueGUID}, &q)
	return q, err
}

// EnqueueTransmission inserts a transmission.
func (c *Client) EnqueueTransmission(ctx context.Context, queueGUID, sourceGUID, destGUID, payload string) (ledger.Job, error) {
	var job ledger.Job
	err := c.do(ctx, http.MethodPost, "/v1/transmissions/enqueue", map[string]string{
		"queue_guid":              queueGUID,
		"source_device_guid":      sourceGUID,
		"destination_device_guid": destGUID,
		"payload":                 payload,
	}, &job)
	return job, err
}

// ClaimTransmission leases the oldest eligible transmission. A nil lease
// with a nil error means nothing was claimable.
func (c *Client) ClaimTransmission(ctx context.Context, workerGUID, queueGUID string) (*Lease, error) {
	var resp struct {
		Lease *Lease `json:"lease"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/transmissions/claim", map[string]string{
		"worker_guid": workerGUID,
		"queue_guid":  queueGUID,
	}, &resp)
	return resp.Lease, err
}

// CompleteTransmission acknowledges a delivered transmission.
func (c *Client) CompleteTransmission(ctx context.Context, dequeueGUID string) error {
	return c.do(ctx, http.MethodPost, "/v1/transmissions/complete", map[string]string{"dequeue_guid": dequeueGUID}, nil)
}

// FailTransmission records a failed delivery.
func (c *Client) FailTransmission(ctx context.Context, dequeueGUID, errorPayload string) (ledger.Job, error) {
	var report ledger.Job
	err := c.do(ctx, http.MethodPost, "/v1/transmissions/fail", map[string]string{
		"dequeue_guid":  dequeueGUID,
		"error_payload": errorPayload,
	}, &report)
	return report, err
}

// ClaimFailureReport leases the oldest eligible failure report.
func (c *Client) ClaimFailureReport(ctx context.Context, workerGUID string) (*Lease, error) {
	var resp struct {
		Lease *Lease `json:"lease"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/reports/claim", map[string]string{"worker_guid": workerGUID}, &resp)
	return resp.Lease, err
}

// CompleteFailureReport writes back the origin device's retry decision.
func (c *Client) CompleteFailureReport(ctx context.Context, dequeueGUID string, retryRequested bool) error {
	return c.do(ctx, http.MethodPost, "/v1/reports/complete", map[string]any{
		"dequeue_guid":    dequeueGUID,
		"retry_requested": retryRequested,
	}, nil)
}

// FailFailureReport records that a failure report could not be delivered.
func (c *Client) FailFailureReport(ctx context.Context, dequeueGUID, errorPayload string) error {
	return c.do(ctx, http.MethodPost, "/v1/reports/fail", map[string]string{
		"dequeue_guid":  dequeueGUID,
		"error_payload": errorPayload,
	}, nil)
}

func kindPath(kind workers.Kind) string {
	if kind == workers.KindReporter {
		return "reporters"
	}
	return "dequeuers"
}

// RegisterWorker upserts a worker registration.
func (c *Client) RegisterWorker(ctx context.Context, kind workers.Kind, workerGUID string) (workers.Worker, error) {
	var w workers.Worker
	err := c.do(ctx, http.MethodPost, "/v1/workers/"+kindPath(kind)+"/register", map[string]string{"worker_guid": workerGUID}, &w)
	return w, err
}

// MarkWorkerUnresponsive flips a worker's responsive flag off.
func (c *Client) MarkWorkerUnresponsive(ctx context.Context, kind workers.Kind, workerGUID string) error {
	return c.do(ctx, http.MethodPost, "/v1/workers/"+kindPath(kind)+"/unresponsive", map[string]string{"worker_guid": workerGUID}, nil)
}

// ListResponsiveWorkers lists workers currently marked responsive.
func (c *Client) ListResponsiveWorkers(ctx context.Context, kind workers.Kind) ([]workers.Worker, error) {
	var resp struct {
		Workers []workers.Worker `json:"workers"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/workers/"+kindPath(kind), nil, &resp)
	return resp.Workers, err
}

// ListJobs lists ledger jobs oldest first, optionally narrowed by a CEL
// filter.
func (c *Client) ListJobs(ctx context.Context, ledgerName, filter string, limit int) ([]ledger.Job, error) {
	q := url.Values{}
	if ledgerName != "" {
		q.Set("ledger", ledgerName)
	}
	if filter != "" {
		q.Set("filter", filter)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/admin/jobs"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var resp struct {
		Jobs []ledger.Job `json:"jobs"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Jobs, err
}

// Health reports whether the relay answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/healthz", nil, nil)
}
