package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hartfield/leadflow/internal/leads"
	"github.com/hartfield/leadflow/internal/messages"
	observemetrics "github.com/hartfield/leadflow/internal/observability/metrics"
	"github.com/hartfield/leadflow/pkg/logging"
)

// Source is the authoritative state the synchronizer refreshes from.
type Source interface {
	ListLeads(ctx context.Context) ([]leads.Lead, error)
	ListMessages(ctx context.Context, scope messages.Scope, limit int) ([]messages.Message, error)
}

// Counters are the dashboard numbers recomputed on every refresh.
type Counters struct {
	UnreadMessages int       `json:"unread_messages"`
	ActiveLeads    int       `json:"active_leads"`
	TotalMessages  int       `json:"total_messages"`
	RefreshedAt    time.Time `json:"refreshed_at"`
}

// Synchronizer periodically re-fetches authoritative lead and message state
// and merges it into the store by full scope replacement. Simplicity over
// efficiency: volumes are small and staleness is bounded by the interval.
type Synchronizer struct {
	source   Source
	store    *messages.Store
	scope    messages.Scope
	interval time.Duration
	limit    int
	logger   *logging.Logger
	metrics  *observemetrics.EngineMetrics

	inFlight atomic.Bool

	mu       sync.Mutex
	counters Counters
	leadSet  []leads.Lead
	cancel   context.CancelFunc
	done     chan struct{}
}

// Config holds synchronizer dependencies.
type Config struct {
	Source   Source
	Store    *messages.Store
	Scope    messages.Scope
	Interval time.Duration
	Limit    int
	Logger   *logging.Logger
	Metrics  *observemetrics.EngineMetrics
}

// New creates a synchronizer.
func New(cfg Config) *Synchronizer {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Scope == "" {
		cfg.Scope = messages.ScopeAll
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 200
	}
	return &Synchronizer{
		source:   cfg.Source,
		store:    cfg.Store,
		scope:    cfg.Scope,
		interval: cfg.Interval,
		limit:    cfg.Limit,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Start launches the refresh loop. Calling Start on a running synchronizer
// is a no-op. The first refresh runs immediately, then on every interval
// tick.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.Refresh(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.Refresh(runCtx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to wind down. No refresh fires
// after Stop returns. Safe to call more than once.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Refresh runs one synchronization cycle. Re-entrant-safe: if a refresh is
// already in flight the new tick is skipped, not queued.
func (s *Synchronizer) Refresh(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.metrics.ObserveSyncTick("skipped", -1)
		return
	}
	defer s.inFlight.Store(false)

	start := time.Now()
	leadSet, err := s.source.ListLeads(ctx)
	if err != nil {
		s.metrics.ObserveSyncTick("error", time.Since(start).Seconds())
		s.logger.Warn("sync: lead refresh failed", "error", err)
		return
	}
	msgs, err := s.source.ListMessages(ctx, s.scope, s.limit)
	if err != nil {
		s.metrics.ObserveSyncTick("error", time.Since(start).Seconds())
		s.logger.Warn("sync: message refresh failed", "error", err)
		return
	}

	s.store.MergeAuthoritative(s.scope, msgs)

	counters := Counters{RefreshedAt: time.Now().UTC()}
	for _, m := range s.store.Snapshot() {
		counters.TotalMessages++
		if !m.Read {
			counters.UnreadMessages++
		}
	}
	for _, lead := range leadSet {
		if lead.Status.Active() {
			counters.ActiveLeads++
		}
	}

	s.mu.Lock()
	s.counters = counters
	s.leadSet = leadSet
	s.mu.Unlock()

	s.metrics.ObserveSyncTick("ok", time.Since(start).Seconds())
	s.metrics.SetCounters(counters.UnreadMessages, counters.ActiveLeads)
	s.logger.Debug("sync: refresh complete",
		"messages", counters.TotalMessages,
		"unread", counters.UnreadMessages,
		"active_leads", counters.ActiveLeads,
	)
}

// Counters returns the dashboard counters from the last completed refresh.
func (s *Synchronizer) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// CountersFor returns the counters as visible to role. Elevated roles get
// the cached full counters; everyone else gets message counts recomputed
// over the records the role may observe, so private traffic never leaks
// through the dashboard numbers.
func (s *Synchronizer) CountersFor(role messages.Role) Counters {
	counters := s.Counters()
	if role.Elevated() {
		return counters
	}
	counters.TotalMessages = 0
	counters.UnreadMessages = 0
	for _, m := range messages.Visible(s.store.Snapshot(), role) {
		counters.TotalMessages++
		if !m.Read {
			counters.UnreadMessages++
		}
	}
	return counters
}

// Leads returns the lead set from the last completed refresh.
func (s *Synchronizer) Leads() []leads.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]leads.Lead, len(s.leadSet))
	copy(out, s.leadSet)
	return out
}
