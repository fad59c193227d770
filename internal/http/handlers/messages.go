package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hartfield/leadflow/internal/http/middleware"
	"github.com/hartfield/leadflow/internal/messages"
	"github.com/hartfield/leadflow/internal/messages/templates"
	"github.com/hartfield/leadflow/internal/outbox"
	"github.com/hartfield/leadflow/pkg/logging"
)

// MessagesHandler serves the inbox, per-lead threads, and the send
// endpoints. Every read path passes through the visibility filter for the
// caller's role before anything leaves the process.
type MessagesHandler struct {
	store    *messages.Store
	pipeline *outbox.Pipeline
	logger   *logging.Logger
}

// NewMessagesHandler creates a messages handler.
func NewMessagesHandler(store *messages.Store, pipeline *outbox.Pipeline, logger *logging.Logger) *MessagesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &MessagesHandler{
		store:    store,
		pipeline: pipeline,
		logger:   logger,
	}
}

func callerRole(r *http.Request) messages.Role {
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
		return p.Role
	}
	return messages.RoleClient
}

// InboxItem is one conversation row: the latest message for a lead.
type InboxItem struct {
	LeadID  string           `json:"lead_id"`
	Latest  messages.Message `json:"latest"`
	Preview string           `json:"preview"`
}

const previewRunes = 120

// GetInbox returns one row per lead, ordered most-recent-first.
// GET /api/v1/inbox
func (h *MessagesHandler) GetInbox(w http.ResponseWriter, r *http.Request) {
	visible := messages.Visible(h.store.Snapshot(), callerRole(r))
	latest := messages.LatestByLead(visible)

	items := make([]InboxItem, 0, len(latest))
	for _, m := range latest {
		items = append(items, InboxItem{
			LeadID:  m.LeadID,
			Latest:  m,
			Preview: preview(m.Content),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "…"
}

// ThreadResponse is a lead's conversation grouped by calendar day.
type ThreadResponse struct {
	LeadID string               `json:"lead_id"`
	Days   []messages.DayBucket `json:"days"`
}

// GetThread returns a lead's messages grouped by day.
// GET /api/v1/leads/{leadID}/messages
func (h *MessagesHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		writeError(w, http.StatusBadRequest, "missing leadID")
		return
	}

	loc := time.Local
	if tz := r.URL.Query().Get("tz"); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown timezone")
			return
		}
		loc = parsed
	}

	visible := messages.Visible(h.store.ForLead(leadID), callerRole(r))
	writeJSON(w, http.StatusOK, ThreadResponse{
		LeadID: leadID,
		Days:   messages.ByDay(visible, loc),
	})
}

type sendRequest struct {
	Type           string            `json:"type"`
	Subject        string            `json:"subject,omitempty"`
	Content        string            `json:"content"`
	Priority       string            `json:"priority,omitempty"`
	TemplateID     string            `json:"template_id,omitempty"`
	TemplateFields map[string]string `json:"template_fields,omitempty"`
}

// SendMessage sends a new message on a lead's thread.
// POST /api/v1/leads/{leadID}/messages
func (h *MessagesHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		writeError(w, http.StatusBadRequest, "missing leadID")
		return
	}
	var body sendRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msgType := messages.Type(body.Type)
	if body.Type == "" {
		msgType = messages.TypeClientMessage
	}
	if msgType == messages.TypeInternalNote && !callerRole(r).Elevated() {
		writeError(w, http.StatusUnauthorized, "internal notes require an elevated role")
		return
	}

	req := outbox.SendRequest{
		LeadID:         leadID,
		Type:           msgType,
		Subject:        body.Subject,
		Content:        body.Content,
		Priority:       messages.Priority(body.Priority),
		Author:         authorFrom(r),
		TemplateID:     body.TemplateID,
		TemplateFields: templates.Fields(body.TemplateFields),
	}
	msg, err := h.pipeline.Send(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type replyRequest struct {
	Content string `json:"content"`
}

// ReplyToMessage replies on the thread of an existing message.
// POST /api/v1/messages/{messageID}/reply
func (h *MessagesHandler) ReplyToMessage(w http.ResponseWriter, r *http.Request) {
	replyTo, err := messages.ParseID(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	var body replyRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	parent, ok := h.store.Get(replyTo)
	if !ok {
		writeDomainError(w, messages.ErrMessageNotFound)
		return
	}

	msg, err := h.pipeline.Reply(r.Context(), outbox.SendRequest{
		LeadID:  parent.LeadID,
		Type:    messages.TypeClientReply,
		Content: body.Content,
		Author:  authorFrom(r),
		ReplyTo: replyTo,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// MarkMessageRead marks a confirmed message as read.
// POST /api/v1/messages/{messageID}/read
func (h *MessagesHandler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	id, err := messages.ParseID(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	if err := h.pipeline.MarkRead(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

func authorFrom(r *http.Request) messages.Author {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return messages.Author{Name: "client"}
	}
	return messages.Author{ID: p.UserID, Name: p.UserID, Role: p.Role}
}
