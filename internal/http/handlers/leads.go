package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hartfield/leadflow/internal/http/middleware"
	"github.com/hartfield/leadflow/internal/leads"
	observemetrics "github.com/hartfield/leadflow/internal/observability/metrics"
	"github.com/hartfield/leadflow/pkg/logging"
)

const defaultLeadPageSize = 50

// LeadsHandler serves the lead pipeline endpoints.
type LeadsHandler struct {
	service *leads.Service
	metrics *observemetrics.EngineMetrics
	logger  *logging.Logger
}

// NewLeadsHandler creates a leads handler.
func NewLeadsHandler(service *leads.Service, metrics *observemetrics.EngineMetrics, logger *logging.Logger) *LeadsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadsHandler{
		service: service,
		metrics: metrics,
		logger:  logger,
	}
}

// LeadView decorates a lead with its display label and pipeline progress.
type LeadView struct {
	*leads.Lead
	StatusDisplay string   `json:"status_display"`
	Progress      *float64 `json:"progress,omitempty"`
	AllowedNext   []string `json:"allowed_next"`
}

func leadView(lead *leads.Lead) LeadView {
	view := LeadView{
		Lead:          lead,
		StatusDisplay: lead.Status.Display(),
		AllowedNext:   []string{},
	}
	if frac, ok := leads.Progress(lead.Status); ok {
		view.Progress = &frac
	}
	for _, next := range leads.AllowedNext(lead.Status) {
		view.AllowedNext = append(view.AllowedNext, string(next))
	}
	return view
}

func orgFrom(r *http.Request) string {
	if org := r.Header.Get("X-Org-Id"); org != "" {
		return org
	}
	return "default"
}

// ListLeads returns a page of leads.
// GET /api/v1/leads
func (h *LeadsHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeadPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = parsed
	}

	page, err := h.service.List(r.Context(), orgFrom(r), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]LeadView, 0, len(page))
	for _, lead := range page {
		views = append(views, leadView(lead))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetLead returns one lead with its activity log.
// GET /api/v1/leads/{leadID}
func (h *LeadsHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	lead, err := h.service.Get(r.Context(), orgFrom(r), leadID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leadView(lead))
}

type statusChangeRequest struct {
	Status string `json:"status"`
}

// UpdateLeadStatus transitions a lead through the state machine. Legacy
// status vocabulary is accepted on input and normalized before validation.
// PATCH /api/v1/leads/{leadID}/status
func (h *LeadsHandler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	var body statusChangeRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, ok := leads.ParseStatus(body.Status)
	if !ok {
		h.metrics.ObserveTransition("rejected")
		writeError(w, http.StatusBadRequest, "unknown status: "+body.Status)
		return
	}

	actor := "system"
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok && p.UserID != "" {
		actor = p.UserID
	}

	lead, err := h.service.ChangeStatus(r.Context(), orgFrom(r), leadID, target, actor)
	if err != nil {
		if leads.IsInvalidTransition(err) {
			h.metrics.ObserveTransition("rejected")
		} else {
			h.metrics.ObserveTransition("error")
		}
		writeDomainError(w, err)
		return
	}
	h.metrics.ObserveTransition("ok")
	writeJSON(w, http.StatusOK, leadView(lead))
}
