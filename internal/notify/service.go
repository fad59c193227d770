package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/hartfield/leadflow/internal/leads"
	"github.com/hartfield/leadflow/pkg/logging"
)

// Service emails operators when a lead crosses a milestone. Routine
// pipeline hops stay quiet; approvals and terminal outcomes go out.
type Service struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

// NewService creates a notification service. With no sender or no
// recipients the service stays inert.
func NewService(email EmailSender, recipients []string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:      email,
		recipients: recipients,
		logger:     logger,
	}
}

// notable statuses that warrant an operator email.
func notable(to leads.Status) bool {
	return to == leads.StatusApproved || to == leads.StatusCompleted || to.Terminal()
}

// NotifyStatusChange emails operators about a milestone transition.
// Best-effort: failures are logged, never surfaced to the caller.
func (s *Service) NotifyStatusChange(ctx context.Context, lead *leads.Lead, from, to leads.Status, actor string) {
	if s == nil || s.email == nil || len(s.recipients) == 0 {
		return
	}
	if !notable(to) {
		return
	}

	subject := fmt.Sprintf("Lead %s: %s", lead.Name, to.Display())
	body := fmt.Sprintf(`Lead %s moved from %s to %s.

Name: %s
Company: %s
Email: %s
Changed by: %s

— LeadFlow`, lead.ID, from.Display(), to.Display(), lead.Name, lead.Company, lead.Email, actor)

	for _, recipient := range s.recipients {
		msg := EmailMessage{
			To:      recipient,
			Subject: subject,
			Body:    body,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send status email", "error", err, "to", recipient, "lead_id", lead.ID)
			continue
		}
		s.logger.Info("notify: status email sent", "to", recipient, "lead_id", lead.ID, "status", to)
	}
}

// Recipients returns the configured operator addresses.
func (s *Service) Recipients() []string {
	return append([]string(nil), s.recipients...)
}

// ParseRecipients splits a comma-separated recipient list, dropping
// empties.
func ParseRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

var _ leads.TransitionNotifier = (*Service)(nil)
