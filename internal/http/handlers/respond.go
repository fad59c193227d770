package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/hartfield/leadflow/internal/leads"
	"github.com/hartfield/leadflow/internal/messages"
	"github.com/hartfield/leadflow/internal/messages/templates"
	"github.com/hartfield/leadflow/internal/outbox"
	"github.com/hartfield/leadflow/internal/remote"
)

// envelope is the uniform response shape for every JSON endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: msg})
}

// writeDomainError maps domain errors onto HTTP statuses. Anything
// unrecognized is treated as an upstream failure rather than a client
// mistake.
func writeDomainError(w http.ResponseWriter, err error) {
	var sendErr *outbox.SendError
	if errors.As(err, &sendErr) {
		// Surface the cause but carry the restorable draft so clients can
		// repopulate their composer.
		status := domainStatus(sendErr.Err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(envelope{
			Success: false,
			Message: sendErr.Err.Error(),
			Data:    map[string]string{"restore_content": sendErr.Restore},
		})
		return
	}
	writeError(w, domainStatus(err), err.Error())
}

func domainStatus(err error) int {
	var validationErr *messages.ValidationError
	var transitionErr *leads.InvalidTransitionError
	var apiErr *remote.APIError
	var urlErr *url.Error
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, leads.ErrUnknownStatus):
		return http.StatusBadRequest
	case errors.As(err, &transitionErr):
		return http.StatusConflict
	case errors.Is(err, messages.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, remote.ErrNoToken):
		return http.StatusUnauthorized
	case errors.Is(err, remote.ErrNotFound),
		errors.Is(err, leads.ErrLeadNotFound),
		errors.Is(err, messages.ErrMessageNotFound),
		errors.Is(err, templates.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.As(err, &urlErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
