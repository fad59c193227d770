package leads

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLead(status Status) *Lead {
	return &Lead{ID: "L1", OrgID: "org1", Name: "Dana", Status: status}
}

func TestTransitionForwardPath(t *testing.T) {
	machine := NewMachine()
	lead := newLead(StatusNew)

	path := []Status{StatusInReview, StatusContacting, StatusQuoting, StatusApproved, StatusInDevelopment, StatusCompleted}
	for _, next := range path {
		act, err := machine.Transition(lead, next, "admin@example.com")
		require.NoError(t, err, "to %s", next)
		assert.Equal(t, next, lead.Status)
		assert.Equal(t, ActivityTypeStatusChange, act.Type)
	}
	assert.Len(t, lead.Activities, len(path))
}

func TestTransitionLegalityMatrix(t *testing.T) {
	all := []Status{
		StatusNew, StatusInReview, StatusContacting, StatusQuoting,
		StatusApproved, StatusInDevelopment, StatusCompleted,
		StatusRejected, StatusCancelled,
	}
	machine := NewMachine()

	for _, from := range all {
		for _, to := range all {
			lead := newLead(from)
			_, err := machine.Transition(lead, to, "tester")
			if CanTransition(from, to) {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, lead.Status)
			} else {
				require.Error(t, err, "%s -> %s", from, to)
				assert.True(t, IsInvalidTransition(err), "%s -> %s", from, to)
				assert.Equal(t, from, lead.Status, "failed transition must not mutate")
				assert.Empty(t, lead.Activities)
			}
		}
	}
}

func TestStatusFlowScenario(t *testing.T) {
	machine := NewMachine()
	lead := newLead(StatusNew)

	_, err := machine.Transition(lead, StatusInReview, "admin")
	require.NoError(t, err)

	_, err = machine.Transition(lead, StatusCompleted, "admin")
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, StatusInReview, lead.Status)
}

func TestReactivation(t *testing.T) {
	machine := NewMachine()
	for _, terminal := range []Status{StatusRejected, StatusCancelled} {
		lead := newLead(terminal)
		_, err := machine.Transition(lead, StatusInReview, "admin")
		require.NoError(t, err, "from %s", terminal)
		assert.Equal(t, StatusInReview, lead.Status)
	}
}

func TestTransitionAcceptsLegacyVocabulary(t *testing.T) {
	machine := NewMachine()
	lead := newLead(StatusInReview)

	// "contacted" maps onto the canonical contacting stage.
	_, err := machine.Transition(lead, Status("contacted"), "admin")
	require.NoError(t, err)
	assert.Equal(t, StatusContacting, lead.Status)
}

func TestTransitionUnknownStatus(t *testing.T) {
	machine := NewMachine()
	lead := newLead(StatusNew)
	_, err := machine.Transition(lead, Status("frobnicated"), "admin")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestTransitionActivityDescription(t *testing.T) {
	machine := NewMachine().WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
	lead := newLead(StatusNew)

	act, err := machine.Transition(lead, StatusInReview, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "status changed from new to in_review", act.Description)
	assert.Equal(t, "admin@example.com", act.Actor)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), act.CreatedAt)
}

func TestConcurrentTransitionsSerialize(t *testing.T) {
	machine := NewMachine()
	lead := newLead(StatusNew)

	// Both goroutines race to advance out of "new"; exactly one may win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = machine.Transition(lead, StatusInReview, "racer")
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.True(t, IsInvalidTransition(err))
			failures++
		}
	}
	assert.Equal(t, 1, failures, "second request must observe the first's result")
	assert.Equal(t, StatusInReview, lead.Status)
	assert.Len(t, lead.Activities, 1)
}

func TestProgress(t *testing.T) {
	cases := []struct {
		status Status
		want   float64
		ok     bool
	}{
		{StatusNew, 0, true},
		{StatusQuoting, 0.5, true},
		{StatusCompleted, 1, true},
		{StatusRejected, 0, false},
		{StatusCancelled, 0, false},
	}
	for _, tc := range cases {
		got, ok := Progress(tc.status)
		assert.Equal(t, tc.ok, ok, "status %s", tc.status)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, "status %s", tc.status)
		}
	}
}

func TestParseStatusLegacyMapping(t *testing.T) {
	cases := map[string]Status{
		"contacted":   StatusContacting,
		"qualified":   StatusInReview,
		"proposal":    StatusQuoting,
		"negotiation": StatusQuoting,
		"won":         StatusCompleted,
		"lost":        StatusRejected,
		"paused":      StatusCancelled,
		"In_Review":   StatusInReview,
	}
	for raw, want := range cases {
		got, ok := ParseStatus(raw)
		require.True(t, ok, "raw %q", raw)
		assert.Equal(t, want, got, "raw %q", raw)
	}

	_, ok := ParseStatus("nonsense")
	assert.False(t, ok)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusCompleted.Terminal())

	assert.True(t, StatusNew.Active())
	assert.False(t, StatusCompleted.Active())
	assert.False(t, StatusRejected.Active())
}
