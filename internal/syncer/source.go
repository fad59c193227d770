package syncer

import (
	"context"

	"github.com/hartfield/leadflow/internal/leads"
	"github.com/hartfield/leadflow/internal/messages"
	"github.com/hartfield/leadflow/internal/remote"
)

// RemoteSource adapts the upstream API client to the Source interface.
// Private records are fetched too; visibility filtering happens at the
// read boundary, not here.
type RemoteSource struct {
	client *remote.Client
}

// NewRemoteSource wraps a remote client as a refresh source.
func NewRemoteSource(client *remote.Client) *RemoteSource {
	return &RemoteSource{client: client}
}

func (s *RemoteSource) ListLeads(ctx context.Context) ([]leads.Lead, error) {
	return s.client.ListLeads(ctx)
}

func (s *RemoteSource) ListMessages(ctx context.Context, scope messages.Scope, limit int) ([]messages.Message, error) {
	filters := remote.MessageFilters{
		IncludePrivate: true,
		Limit:          limit,
	}
	if scope != messages.ScopeAll {
		filters.LeadID = string(scope)
	}
	return s.client.ListMessages(ctx, filters)
}

var _ Source = (*RemoteSource)(nil)
