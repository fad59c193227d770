package leads

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// allowedNext enumerates every legal transition: the forward arrow, the two
// terminal branches from active stages, and reactivation back to review.
// Nothing else is legal, including skipping stages.
var allowedNext = map[Status][]Status{
	StatusNew:           {StatusInReview, StatusRejected, StatusCancelled},
	StatusInReview:      {StatusContacting, StatusRejected, StatusCancelled},
	StatusContacting:    {StatusQuoting, StatusRejected, StatusCancelled},
	StatusQuoting:       {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:      {StatusInDevelopment, StatusRejected, StatusCancelled},
	StatusInDevelopment: {StatusCompleted, StatusRejected, StatusCancelled},
	StatusCompleted:     {},
	StatusRejected:      {StatusInReview},
	StatusCancelled:     {StatusInReview},
}

// AllowedNext returns the legal targets from a given status.
func AllowedNext(from Status) []Status {
	next := allowedNext[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is in the allowed set.
func CanTransition(from, to Status) bool {
	for _, next := range allowedNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Machine enforces pipeline transitions. Concurrent transition requests on
// the same lead serialize on a per-lead lock, so the second request observes
// the result of the first before evaluating legality.
type Machine struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	clock func() time.Time
}

// NewMachine creates a state machine.
func NewMachine() *Machine {
	return &Machine{
		locks: make(map[string]*sync.Mutex),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the machine clock. Test hook.
func (m *Machine) WithClock(clock func() time.Time) *Machine {
	if clock != nil {
		m.clock = clock
	}
	return m
}

// lock returns the mutation lock for one lead, creating it on first use.
func (m *Machine) lock(leadID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[leadID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[leadID] = l
	}
	return l
}

// Guard runs fn while holding the lead's mutation lock. Repository-backed
// callers use this to serialize their whole read-check-write cycle.
func (m *Machine) Guard(leadID string, fn func() error) error {
	l := m.lock(leadID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// Transition moves the lead to target if legal: the status mutates and a
// status_change activity is appended in one step from the caller's point of
// view. On failure the lead is untouched and an InvalidTransitionError is
// returned. target may use the legacy vocabulary; it is normalized first.
func (m *Machine) Transition(lead *Lead, target Status, actor string) (Activity, error) {
	var activity Activity
	err := m.Guard(lead.ID, func() error {
		var applyErr error
		activity, applyErr = m.Apply(lead, target, actor)
		return applyErr
	})
	return activity, err
}

// Apply validates and mutates without taking the lead lock. Callers that
// wrap a wider read-check-write cycle in Guard use this directly; everyone
// else wants Transition.
func (m *Machine) Apply(lead *Lead, target Status, actor string) (Activity, error) {
	normalized, ok := ParseStatus(string(target))
	if !ok {
		return Activity{}, fmt.Errorf("leads: %w: %q", ErrUnknownStatus, target)
	}

	from := lead.Status
	if !CanTransition(from, normalized) {
		return Activity{}, &InvalidTransitionError{From: from, To: normalized}
	}

	now := m.clock()
	activity := Activity{
		ID:          uuid.NewString(),
		Type:        ActivityTypeStatusChange,
		Description: fmt.Sprintf("status changed from %s to %s", from, normalized),
		Actor:       actor,
		CreatedAt:   now,
	}
	lead.Status = normalized
	lead.UpdatedAt = now
	lead.Activities = append(lead.Activities, activity)
	return activity, nil
}
