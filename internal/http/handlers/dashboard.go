package handlers

import (
	"net/http"

	"github.com/hartfield/leadflow/internal/syncer"
	"github.com/hartfield/leadflow/pkg/logging"
)

// DashboardHandler exposes the synchronizer's counters and a manual
// refresh trigger.
type DashboardHandler struct {
	sync   *syncer.Synchronizer
	logger *logging.Logger
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(sync *syncer.Synchronizer, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DashboardHandler{sync: sync, logger: logger}
}

// GetCounters returns the counters from the last completed refresh,
// narrowed to what the caller's role may observe.
// GET /api/v1/dashboard/counters
func (h *DashboardHandler) GetCounters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sync.CountersFor(callerRole(r)))
}

// TriggerRefresh kicks an immediate synchronization cycle. If one is
// already running the request is a no-op, matching the scheduler's
// skip-not-queue rule.
// POST /api/v1/dashboard/refresh
func (h *DashboardHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	h.sync.Refresh(r.Context())
	writeJSON(w, http.StatusAccepted, h.sync.Counters())
}
