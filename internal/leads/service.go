package leads

import (
	"context"

	"github.com/hartfield/leadflow/pkg/logging"
)

// TransitionNotifier is told after a transition lands. Best-effort; failures
// never undo the transition.
type TransitionNotifier interface {
	NotifyStatusChange(ctx context.Context, lead *Lead, from, to Status, actor string)
}

// Service coordinates the state machine with persistence. The whole
// read-check-write cycle for one lead runs under that lead's mutation lock,
// so two rapid transition requests cannot both validate against the same
// starting status.
type Service struct {
	repo     Repository
	machine  *Machine
	notifier TransitionNotifier
	logger   *logging.Logger
}

// NewService creates a lead service.
func NewService(repo Repository, machine *Machine, logger *logging.Logger) *Service {
	if machine == nil {
		machine = NewMachine()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, machine: machine, logger: logger}
}

// WithNotifier attaches a transition notifier.
func (s *Service) WithNotifier(n TransitionNotifier) *Service {
	s.notifier = n
	return s
}

// Get returns a lead by id.
func (s *Service) Get(ctx context.Context, orgID, leadID string) (*Lead, error) {
	return s.repo.GetByID(ctx, orgID, leadID)
}

// List returns org leads.
func (s *Service) List(ctx context.Context, orgID string, limit, offset int) ([]*Lead, error) {
	return s.repo.List(ctx, orgID, limit, offset)
}

// Create stores a new lead.
func (s *Service) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	return s.repo.Create(ctx, lead)
}

// ChangeStatus transitions a lead, persisting the status and its activity
// entry atomically. Returns the updated lead, or the unchanged state of
// affairs wrapped in an error.
func (s *Service) ChangeStatus(ctx context.Context, orgID, leadID string, target Status, actor string) (*Lead, error) {
	var updated *Lead
	err := s.machine.Guard(leadID, func() error {
		lead, err := s.repo.GetByID(ctx, orgID, leadID)
		if err != nil {
			return err
		}
		from := lead.Status
		activity, err := s.machine.Apply(lead, target, actor)
		if err != nil {
			return err
		}
		if err := s.repo.SaveTransition(ctx, lead, activity); err != nil {
			return err
		}
		updated = lead
		if s.notifier != nil {
			s.notifier.NotifyStatusChange(ctx, lead, from, lead.Status, actor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("lead status changed", "lead_id", leadID, "status", updated.Status, "actor", actor)
	return updated, nil
}
