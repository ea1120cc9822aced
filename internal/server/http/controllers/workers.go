package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/courierd/courier/internal/runtime"
	relaysvc "github.com/courierd/courier/internal/services/relay"
	"github.com/courierd/courier/internal/workers"
)

// WorkersController handles dequeuer and reporter liveness endpoints.
type WorkersController struct {
	rt  *runtime.Runtime
	svc *relaysvc.Service
}

// NewWorkersController creates a new workers controller.
func NewWorkersController(rt *runtime.Runtime, svc *relaysvc.Service) *WorkersController {
	return &WorkersController{rt: rt, svc: svc}
}

// RegisterRoutes registers worker liveness routes with the given router.
func (c *WorkersController) RegisterRoutes(r chi.Router) {
	r.Post("/v1/workers/{kind}/register", c.handleRegister)
	r.Post("/v1/workers/{kind}/unresponsive", c.handleUnresponsive)
	r.Get("/v1/workers/{kind}", c.handleList)
}

func workerKind(w http.ResponseWriter, r *http.Request) (workers.Kind, bool) {
	switch chi.URLParam(r, "kind") {
	case "dequeuers":
		return workers.KindDequeuer, true
	case "reporters":
		return workers.KindReporter, true
	default:
		writeError(w, http.StatusBadRequest, "kind must be dequeuers or reporters")
		return "", false
	}
}

// handleRegister upserts a worker registration and marks it responsive.
// POST /v1/workers/{kind}/register
func (c *WorkersController) handleRegister(w http.ResponseWriter, r *http.Request) {
	kind, ok := workerKind(w, r)
	if !ok {
		return
	}
	var req registerWorkerReq
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WorkerGUID == "" {
		writeError(w, http.StatusBadRequest, "worker_guid required")
		return
	}
	worker, err := c.svc.RegisterWorker(remoteHost(r), kind, req.WorkerGUID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, worker)
}

// handleUnresponsive flips a worker's responsive flag off.
// POST /v1/workers/{kind}/unresponsive
func (c *WorkersController) handleUnresponsive(w http.ResponseWriter, r *http.Request) {
	kind, ok := workerKind(w, r)
	if !ok {
		return
	}
	var req workerGUIDReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.svc.MarkWorkerUnresponsive(kind, req.WorkerGUID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleList lists responsive workers of a kind.
// GET /v1/workers/{kind}
func (c *WorkersController) handleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := workerKind(w, r)
	if !ok {
		return
	}
	list, err := c.svc.ListResponsiveWorkers(kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"workers": list})
}
