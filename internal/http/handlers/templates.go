package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hartfield/leadflow/internal/messages"
	"github.com/hartfield/leadflow/internal/messages/templates"
	"github.com/hartfield/leadflow/pkg/logging"
)

// TemplatesHandler manages the reply template library.
type TemplatesHandler struct {
	library *templates.Library
	logger  *logging.Logger
}

// NewTemplatesHandler creates a templates handler.
func NewTemplatesHandler(library *templates.Library, logger *logging.Logger) *TemplatesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TemplatesHandler{library: library, logger: logger}
}

// ListTemplates returns every template with its usage count.
// GET /api/v1/templates
func (h *TemplatesHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.library.List())
}

type templateRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// PutTemplate creates or updates a template. Usage counts survive updates.
// POST /api/v1/templates
func (h *TemplatesHandler) PutTemplate(w http.ResponseWriter, r *http.Request) {
	var body templateRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Name == "" || body.Body == "" {
		writeError(w, http.StatusBadRequest, "name and body are required")
		return
	}
	if err := messages.ValidateContent(body.Body, messages.MaxTemplateLength); err != nil {
		writeDomainError(w, err)
		return
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}
	tmpl := templates.Template{
		ID:      body.ID,
		Name:    body.Name,
		Subject: body.Subject,
		Body:    body.Body,
	}
	h.library.Put(tmpl)
	stored, err := h.library.Get(tmpl.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

type renderRequest struct {
	Fields map[string]string `json:"fields"`
}

// PreviewTemplate renders a template without counting usage or sending.
// POST /api/v1/templates/{templateID}/preview
func (h *TemplatesHandler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.library.Get(chi.URLParam(r, "templateID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var body renderRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fields := templates.Fields(body.Fields)
	subject, err := templates.Render(tmpl.Subject, fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rendered, err := templates.Render(tmpl.Body, fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"subject": subject,
		"body":    rendered,
	})
}
