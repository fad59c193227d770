package leads

import (
	"strings"
	"time"
)

// Status is a stage in the lead pipeline.
type Status string

// Canonical pipeline stages, in order, plus the two terminal branches.
const (
	StatusNew           Status = "new"
	StatusInReview      Status = "in_review"
	StatusContacting    Status = "contacting"
	StatusQuoting       Status = "quoting"
	StatusApproved      Status = "approved"
	StatusInDevelopment Status = "in_development"
	StatusCompleted     Status = "completed"

	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// pipeline is the forward path used for progress reporting.
var pipeline = []Status{
	StatusNew,
	StatusInReview,
	StatusContacting,
	StatusQuoting,
	StatusApproved,
	StatusInDevelopment,
	StatusCompleted,
}

// legacyStatuses maps the old CRM vocabulary onto the canonical pipeline.
// Accepted on input for display purposes; transitions always operate on
// canonical states.
var legacyStatuses = map[string]Status{
	"contacted":   StatusContacting,
	"qualified":   StatusInReview,
	"proposal":    StatusQuoting,
	"negotiation": StatusQuoting,
	"won":         StatusCompleted,
	"lost":        StatusRejected,
	"paused":      StatusCancelled,
}

// ParseStatus normalizes raw status input, accepting both canonical and
// legacy vocabulary.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s.canonical() {
		return s, true
	}
	if mapped, ok := legacyStatuses[string(s)]; ok {
		return mapped, true
	}
	return "", false
}

func (s Status) canonical() bool {
	for _, p := range pipeline {
		if s == p {
			return true
		}
	}
	return s == StatusRejected || s == StatusCancelled
}

// Terminal reports whether the status is a halted branch.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Active reports whether the lead still counts toward active-lead dashboards.
func (s Status) Active() bool {
	return !s.Terminal() && s != StatusCompleted
}

// Display returns the human-readable label for a status.
func (s Status) Display() string {
	switch s {
	case StatusNew:
		return "New"
	case StatusInReview:
		return "In Review"
	case StatusContacting:
		return "Contacting"
	case StatusQuoting:
		return "Quoting"
	case StatusApproved:
		return "Approved"
	case StatusInDevelopment:
		return "In Development"
	case StatusCompleted:
		return "Completed"
	case StatusRejected:
		return "Rejected"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Progress returns how far along the pipeline the status is, as a fraction
// of the full path. Terminal branches report ok=false: a halted lead has no
// percentage.
func Progress(s Status) (float64, bool) {
	if s.Terminal() {
		return 0, false
	}
	for i, p := range pipeline {
		if s == p {
			return float64(i) / float64(len(pipeline)-1), true
		}
	}
	return 0, false
}

// ActivityTypeStatusChange is the activity type appended on every transition.
const ActivityTypeStatusChange = "status_change"

// Activity is one immutable entry in a lead's append-only log.
type Activity struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Actor       string    `json:"actor"`
	CreatedAt   time.Time `json:"created_at"`
}

// Lead is a prospective client moving through the pipeline. Messages
// reference the lead by id; the lead does not hold them.
type Lead struct {
	ID         string     `json:"id"`
	OrgID      string     `json:"org_id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Company    string     `json:"company"`
	Status     Status     `json:"status"`
	Priority   string     `json:"priority"`
	Tags       []string   `json:"tags,omitempty"`
	Activities []Activity `json:"activities,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
