package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage
type Repository interface {
	Create(ctx context.Context, lead *Lead) (*Lead, error)
	GetByID(ctx context.Context, orgID, id string) (*Lead, error)
	List(ctx context.Context, orgID string, limit, offset int) ([]*Lead, error)
	SaveTransition(ctx context.Context, lead *Lead, activity Activity) error
}

// InMemoryRepository is a Repository backed by a mutex-guarded map. Used in
// development mode and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{leads: make(map[string]*Lead)}
}

// Create stores a new lead, assigning id and timestamps if unset.
func (r *InMemoryRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	copied := cloneLead(lead)
	if copied.ID == "" {
		copied.ID = uuid.NewString()
	}
	if copied.Status == "" {
		copied.Status = StatusNew
	}
	now := time.Now().UTC()
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now

	r.mu.Lock()
	r.leads[copied.ID] = copied
	r.mu.Unlock()
	return cloneLead(copied), nil
}

// GetByID retrieves a lead scoped to the org.
func (r *InMemoryRepository) GetByID(ctx context.Context, orgID, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lead, ok := r.leads[id]
	if !ok || (orgID != "" && lead.OrgID != orgID) {
		return nil, ErrLeadNotFound
	}
	return cloneLead(lead), nil
}

// List returns org leads ordered by creation time descending.
func (r *InMemoryRepository) List(ctx context.Context, orgID string, limit, offset int) ([]*Lead, error) {
	r.mu.RLock()
	var all []*Lead
	for _, lead := range r.leads {
		if orgID == "" || lead.OrgID == orgID {
			all = append(all, cloneLead(lead))
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// SaveTransition persists a lead's new status and the activity appended with
// it.
func (r *InMemoryRepository) SaveTransition(ctx context.Context, lead *Lead, activity Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.leads[lead.ID]
	if !ok {
		return ErrLeadNotFound
	}
	existing.Status = lead.Status
	existing.UpdatedAt = lead.UpdatedAt
	existing.Activities = append(existing.Activities, activity)
	return nil
}

func cloneLead(lead *Lead) *Lead {
	copied := *lead
	copied.Tags = append([]string(nil), lead.Tags...)
	copied.Activities = append([]Activity(nil), lead.Activities...)
	return &copied
}
