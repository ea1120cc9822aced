package controllers

import (
	"github.com/go-chi/chi/v5"

	"github.com/courierd/courier/internal/runtime"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes
// and manages the lifecycle of individual controllers.
type ControllerRegistry struct {
	relay   *RelayController
	workers *WorkersController
	admin   *AdminController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime) *ControllerRegistry {
	svc := rt.Service()
	return &ControllerRegistry{
		relay:   NewRelayController(rt, svc),
		workers: NewWorkersController(rt, svc),
		admin:   NewAdminController(rt, svc),
	}
}

// RegisterAllRoutes registers all controller routes with the given router.
//
// This sets up the full relay HTTP surface: device and queue registration,
// the transmission and failure-report lifecycles, worker liveness, and
// admin listings.
func (c *ControllerRegistry) RegisterAllRoutes(r chi.Router) {
	c.relay.RegisterRoutes(r)
	c.workers.RegisterRoutes(r)
	c.admin.RegisterRoutes(r)
}
