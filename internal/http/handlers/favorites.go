package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hartfield/leadflow/internal/favorites"
	"github.com/hartfield/leadflow/internal/http/middleware"
	"github.com/hartfield/leadflow/pkg/logging"
)

// FavoritesHandler serves starred-lead markers and guest read state.
type FavoritesHandler struct {
	store  *favorites.Store
	logger *logging.Logger
}

// NewFavoritesHandler creates a favorites handler.
func NewFavoritesHandler(store *favorites.Store, logger *logging.Logger) *FavoritesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &FavoritesHandler{store: store, logger: logger}
}

func userFrom(r *http.Request) string {
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok && p.UserID != "" {
		return p.UserID
	}
	return ""
}

// ListStarred returns the caller's starred lead ids.
// GET /api/v1/favorites
func (h *FavoritesHandler) ListStarred(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	ids, err := h.store.Starred(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load favorites")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// StarLead stars a lead for the caller.
// PUT /api/v1/favorites/{leadID}
func (h *FavoritesHandler) StarLead(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	leadID := chi.URLParam(r, "leadID")
	if err := h.store.Star(r.Context(), userID, leadID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to star lead")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"starred": true})
}

// UnstarLead removes the caller's star from a lead.
// DELETE /api/v1/favorites/{leadID}
func (h *FavoritesHandler) UnstarLead(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	leadID := chi.URLParam(r, "leadID")
	if err := h.store.Unstar(r.Context(), userID, leadID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unstar lead")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"starred": false})
}

type guestReadRequest struct {
	SessionID  string   `json:"session_id"`
	MessageIDs []string `json:"message_ids"`
}

// MarkGuestRead records read state for an anonymous session.
// POST /api/v1/guest/read
func (h *FavoritesHandler) MarkGuestRead(w http.ResponseWriter, r *http.Request) {
	var body guestReadRequest
	if err := decodeBody(r, &body); err != nil || body.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.store.MarkGuestRead(r.Context(), body.SessionID, body.MessageIDs...); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record read state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recorded": len(body.MessageIDs)})
}
