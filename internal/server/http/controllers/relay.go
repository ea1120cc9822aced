package controllers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/courierd/courier/internal/runtime"
	relaysvc "github.com/courierd/courier/internal/services/relay"
)

// RelayController handles the device, queue, transmission, and
// failure-report endpoints.
type RelayController struct {
	rt  *runtime.Runtime
	svc *relaysvc.Service
}

// NewRelayController creates a new relay controller.
func NewRelayController(rt *runtime.Runtime, svc *relaysvc.Service) *RelayController {
	return &RelayController{rt: rt, svc: svc}
}

// RegisterRoutes registers the relay lifecycle routes with the given router.
func (c *RelayController) RegisterRoutes(r chi.Router) {
	r.Post("/v1/devices/announce", c.handleAnnounce)
	r.Get("/v1/devices", c.handleListDevices)
	r.Post("/v1/queues/create", c.handleRegisterQueue)

	r.Post("/v1/transmissions/enqueue", c.handleEnqueue)
	r.Post("/v1/transmissions/claim", c.handleClaim)
	r.Post("/v1/transmissions/complete", c.handleComplete)
	r.Post("/v1/transmissions/fail", c.handleFail)

	r.Post("/v1/reports/claim", c.handleClaimReport)
	r.Post("/v1/reports/complete", c.handleCompleteReport)
	r.Post("/v1/reports/fail", c.handleFailReport)
}

// handleAnnounce registers or refreshes a device and re-arms its waiting
// retries.
// POST /v1/devices/announce
func (c *RelayController) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req announceDeviceReq
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DeviceGUID == "" || req.PurposeGUID == "" {
		writeError(w, http.StatusBadRequest, "device_guid and purpose_guid required")
		return
	}
	dev, err := c.svc.AnnounceDevice(remoteHost(r), req.DeviceGUID, req.PurposeGUID, req.ListenPort)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, dev)
}

// handleListDevices lists devices announced with a purpose.
// GET /v1/devices?purpose=<guid>
func (c *RelayController) handleListDevices(w http.ResponseWriter, r *http.Request) {
	purpose := r.URL.Query().Get("purpose")
	if purpose == "" {
		writeError(w, http.StatusBadRequest, "purpose parameter required")
		return
	}
	devs, err := c.svc.ListDevices(purpose)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"devices": devs})
}

// handleRegisterQueue upserts a queue namespace.
// POST /v1/queues/create
func (c *RelayController) handleRegisterQueue(w http.ResponseWriter, r *http.Request) {
	var req registerQueueReq
	if !decodeBody(w, r, &req) {
		return
	}
	if req.QueueGUID == "" {
		writeError(w, http.StatusBadRequest, "queue_guid required")
		return
	}
	q, err := c.svc.RegisterQueue(req.QueueGUID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, q)
}

// handleEnqueue inserts a transmission.
// POST /v1/transmissions/enqueue
func (c *RelayController) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueReq
	if !decodeBody(w, r, &req) {
		return
	}
	if max := c.rt.Config().PayloadMaxBytes; max > 0 && len(req.Payload) > max {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("payload exceeds %d bytes", max))
		return
	}
	job, err := c.svc.EnqueueTransmission(remoteHost(r), req.QueueGUID, req.SourceGUID, req.DestinationGUID, req.Payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, job)
}

// handleClaim leases the oldest eligible transmission. An empty claim is a
// 200 with a null lease.
// POST /v1/transmissions/claim
func (c *RelayController) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimReq
	if !decodeBody(w, r, &req) {
		return
	}
	lease, err := c.svc.ClaimTransmission(remoteHost(r), req.WorkerGUID, req.QueueGUID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"lease": lease})
}

// handleComplete acknowledges a delivered transmission.
// POST /v1/transmissions/complete
func (c *RelayController) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.CompleteTransmission(remoteHost(r), req.DequeueGUID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFail records a failed delivery and returns the resulting failure
// report.
// POST /v1/transmissions/fail
func (c *RelayController) handleFail(w http.ResponseWriter, r *http.Request) {
	var req failReq
	if !decodeBody(w, r, &req) {
		return
	}
	report, err := c.svc.FailTransmission(remoteHost(r), req.DequeueGUID, req.ErrorPayload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, report)
}

// handleClaimReport leases the oldest eligible failure report.
// POST /v1/reports/claim
func (c *RelayController) handleClaimReport(w http.ResponseWriter, r *http.Request) {
	var req claimReq
	if !decodeBody(w, r, &req) {
		return
	}
	lease, err := c.svc.ClaimFailureReport(remoteHost(r), req.WorkerGUID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"lease": lease})
}

// handleCompleteReport writes back the origin device's retry decision.
// POST /v1/reports/complete
func (c *RelayController) handleCompleteReport(w http.ResponseWriter, r *http.Request) {
	var req completeReportReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.CompleteFailureReport(remoteHost(r), req.DequeueGUID, req.RetryRequested); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFailReport records that a failure report could not be delivered.
// POST /v1/reports/fail
func (c *RelayController) handleFailReport(w http.ResponseWriter, r *http.Request) {
	var req failReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.FailFailureReport(remoteHost(r), req.DequeueGUID, req.ErrorPayload); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
