package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/courierd/courier/internal/runtime"
	relaysvc "github.com/courierd/courier/internal/services/relay"
)

// AdminController handles operator-facing listing endpoints.
type AdminController struct {
	rt  *runtime.Runtime
	svc *relaysvc.Service
}

// NewAdminController creates a new admin controller.
func NewAdminController(rt *runtime.Runtime, svc *relaysvc.Service) *AdminController {
	return &AdminController{rt: rt, svc: svc}
}

// RegisterRoutes registers admin routes with the given router.
func (c *AdminController) RegisterRoutes(r chi.Router) {
	r.Get("/v1/admin/jobs", c.handleListJobs)
}

// handleListJobs lists ledger jobs oldest first, optionally narrowed by a
// CEL filter expression.
// GET /v1/admin/jobs?ledger=<delivery|failure>&filter=<cel>&limit=<n>
func (c *AdminController) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	jobs, err := c.svc.ListJobs(q.Get("ledger"), q.Get("filter"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"jobs": jobs})
}
