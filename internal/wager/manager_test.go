package wager

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doug4987/New-MM-Test/internal/position"
	"github.com/doug4987/New-MM-Test/internal/schema"
	"github.com/doug4987/New-MM-Test/internal/venue"
)

// scriptedAdapter returns canned outcomes per submit attempt.
type scriptedAdapter struct {
	submits  atomic.Int64
	cancels  atomic.Int64
	script   []func() (venue.Outcome, error)
	onCancel func() (venue.Outcome, error)
}

func (a *scriptedAdapter) Submit(_ context.Context, _ schema.Wager) (venue.Outcome, error) {
	n := int(a.submits.Add(1)) - 1
	if n < len(a.script) {
		return a.script[n]()
	}
	return venue.Outcome{Accepted: true, VenueID: "v-ok"}, nil
}

func (a *scriptedAdapter) Cancel(_ context.Context, _ schema.Wager) (venue.Outcome, error) {
	a.cancels.Add(1)
	if a.onCancel != nil {
		return a.onCancel()
	}
	return venue.Outcome{Accepted: true}, nil
}

func accepted() (venue.Outcome, error) {
	return venue.Outcome{Accepted: true, VenueID: "v-1"}, nil
}

func transientFailure() (venue.Outcome, error) {
	return venue.Outcome{}, assert.AnError
}

func refused() (venue.Outcome, error) {
	return venue.Outcome{Accepted: false, Permanent: true, Reason: "market suspended"}, nil
}

func validated(id string) schema.Wager {
	return schema.Wager{
		ID:        id,
		MarketID:  "m1",
		EventID:   "e1",
		Side:      schema.SideBack,
		Price:     140,
		Stake:     decimal.NewFromInt(50),
		State:     schema.WagerStateValidated,
		CreatedAt: time.Now().UTC().UnixNano(),
	}
}

func newManager(t *testing.T, cfg ManagerConfig, adapter venue.OrderAdapter) (*Manager, *position.Tracker) {
	t.Helper()
	tracker := position.NewTracker()
	return NewManager(cfg, adapter, tracker, nil), tracker
}

// seed reserves the wager's exposure the way the risk gate does before
// Place is called.
func seed(tracker *position.Tracker, w schema.Wager) {
	tracker.EvaluateAndReserve(&w, func(position.RiskView) (decimal.Decimal, bool) {
		return w.ImpliedExposure(), true
	})
}

func TestPlaceAccepted(t *testing.T) {
	adapter := &scriptedAdapter{script: []func() (venue.Outcome, error){accepted}}
	m, tracker := newManager(t, ManagerConfig{}, adapter)
	w := validated("w1")
	seed(tracker, w)

	require.NoError(t, m.Place(context.Background(), w))

	cur, ok := m.Get("w1")
	require.True(t, ok)
	assert.Equal(t, schema.WagerStateAccepted, cur.State)
	assert.Equal(t, "v-1", cur.VenueID)
	assert.EqualValues(t, 1, adapter.submits.Load())
	assert.Equal(t, 1, tracker.Risk().OpenWagerCount)
}

func TestPlaceRetriesTransientFailures(t *testing.T) {
	adapter := &scriptedAdapter{script: []func() (venue.Outcome, error){
		transientFailure, transientFailure, accepted,
	}}
	m, tracker := newManager(t, ManagerConfig{
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, adapter)
	w := validated("w1")
	seed(tracker, w)

	require.NoError(t, m.Place(context.Background(), w))

	cur, _ := m.Get("w1")
	assert.Equal(t, schema.WagerStateAccepted, cur.State)
	assert.EqualValues(t, 3, adapter.submits.Load())
}

func TestPlaceExhaustedRetriesReleasesReservation(t *testing.T) {
	adapter := &scriptedAdapter{script: []func() (venue.Outcome, error){
		transientFailure, transientFailure,
	}}
	m, tracker := newManager(t, ManagerConfig{
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, adapter)
	w := validated("w1")
	seed(tracker, w)

	require.NoError(t, m.Place(context.Background(), w))

	cur, _ := m.Get("w1")
	assert.Equal(t, schema.WagerStateRejected, cur.State)
	assert.Equal(t, schema.RejectReasonVenueUnavailable, cur.Reason)
	assert.EqualValues(t, 2, adapter.submits.Load())
	assert.Zero(t, tracker.Risk().OpenWagerCount)
	assert.True(t, tracker.Risk().TotalOpenExposure.IsZero())
}

func TestPlaceVenueRefusalIsPermanent(t *testing.T) {
	adapter := &scriptedAdapter{script: []func() (venue.Outcome, error){refused}}
	m, tracker := newManager(t, ManagerConfig{MaxRetries: 5, RetryBackoff: time.Millisecond}, adapter)
	w := validated("w1")
	seed(tracker, w)

	require.NoError(t, m.Place(context.Background(), w))

	cur, _ := m.Get("w1")
	assert.Equal(t, schema.WagerStateRejected, cur.State)
	assert.Equal(t, schema.RejectReasonVenueRejected, cur.Reason)
	// No retry after a permanent refusal.
	assert.EqualValues(t, 1, adapter.submits.Load())
}

func TestPlaceRequiresValidatedState(t *testing.T) {
	adapter := &scriptedAdapter{}
	m, _ := newManager(t, ManagerConfig{}, adapter)

	w := validated("w1")
	w.State = schema.WagerStateProposed
	assert.Error(t, m.Place(context.Background(), w))

	// Duplicate ids are refused.
	dup := validated("w2")
	require.NoError(t, m.Place(context.Background(), dup))
	dup.State = schema.WagerStateValidated
	assert.Error(t, m.Place(context.Background(), dup))
}

func TestDryRunSimulatedFillMatchesInFull(t *testing.T) {
	m, tracker := newManager(t, ManagerConfig{SimulateFills: true}, venue.NewDryRunAdapter())
	w := validated("w1")
	seed(tracker, w)

	require.NoError(t, m.Place(context.Background(), w))

	cur, _ := m.Get("w1")
	assert.Equal(t, schema.WagerStateMatched, cur.State)
	assert.True(t, cur.Matched.Equal(w.Stake))
	// The simulated fill flows into the position exactly as a live one.
	assert.True(t, tracker.Net("m1").Equal(decimal.NewFromInt(50)))
	assert.Zero(t, tracker.Risk().OpenWagerCount)
}

func TestOnStatusPartialThenFull(t *testing.T) {
	adapter := &scriptedAdapter{script: []func() (venue.Outcome, error){accepted}}
	m, tracker := newManager(t, ManagerConfig{}, adapter)
	w := validated("w1")
	seed(tracker, w)
	require.NoError(t, m.Place(context.Background(), w))

	m.OnStatus(schema.WagerUpdate{
		WagerID:      "w1",
		State:        schema.WagerStatePartiallyMatched,
		MatchedStake: decimal.NewFromInt(20),
	})
	cur, _ := m.Get("w1")
	assert.Equal(t, schema.WagerStatePartiallyMatched, cur.State)
	assert.True(t, tracker.Net("m1").Equal(decimal.NewFromInt(20)))

	// Replay of the same cumulative figure changes nothing.
	m.OnStatus(schema.WagerUpdate{
		WagerID:      "w1",
		State:        schema.WagerStatePartiallyMatched,
		MatchedStake: decimal.NewFromInt(20),
	})
	assert.True(t, tracker.Net("m1").Equal(decimal.NewFromInt(20)))

	m.OnStatus(schema.WagerUpdate{
		WagerID:      "w1",
		State:        schema.WagerStateMatched,
		MatchedStake: decimal.NewFromInt(50),
	})
	cur, _ = m.Get("w1")
	assert.Equal(t, schema.WagerStateMatched, cur.State)
	assert.True(t, tracker.Net("m1").Equal(decimal.NewFromInt(50)))
	assert.Zero(t, tracker.Risk().OpenWagerCount)
}

func TestOnStatusSettlementRealizesPnL(t *testing.T) {
	adapter := &scriptedAdapter{script: []func() (venue.Outcome, error){accepted}}
	m, tracker := newManager(t, ManagerConfig{}, adapter)
	w := validated("w1")
	seed(tracker, w)
	require.NoError(t, m.Place(context.Background(), w))

	m.OnStatus(schema.WagerUpdate{
		WagerID:      "w1",
		State:        schema.WagerStateMatched,
		MatchedStake: decimal.NewFromInt(50),
	})
	m.OnStatus(schema.WagerUpdate{
		WagerID: "w1",
		State:   schema.WagerStateMatched,
		Settled: true,
		Profit:  decimal.NewFromInt(70),
	})

	risk := tracker.Risk()
	assert.True(t, risk.DailyRealizedPnL.Equal(decimal.NewFromInt(70)))
	assert.True(t, risk.TotalOpenExposure.IsZero())
	assert.True(t, tracker.Net("m1").IsZero())
}

func TestOnStatusUnknownWagerIgnored(t *testing.T) {
	m, _ := newManager(t, ManagerConfig{}, &scriptedAdapter{})
	m.OnStatus(schema.WagerUpdate{WagerID: "ghost", State: schema.WagerStateMatched})
}

func TestCancelReleasesReservation(t *testing.T) {
	adapter := &scriptedAdapter{script: []func() (venue.Outcome, error){accepted}}
	m, tracker := newManager(t, ManagerConfig{}, adapter)
	w := validated("w1")
	seed(tracker, w)
	require.NoError(t, m.Place(context.Background(), w))

	require.NoError(t, m.Cancel(context.Background(), "w1"))

	cur, _ := m.Get("w1")
	assert.Equal(t, schema.WagerStateCancelled, cur.State)
	assert.Zero(t, tracker.Risk().OpenWagerCount)
	assert.True(t, tracker.Risk().TotalOpenExposure.IsZero())

	// Cancelling a terminal wager is a no-op.
	require.NoError(t, m.Cancel(context.Background(), "w1"))
	assert.EqualValues(t, 1, adapter.cancels.Load())
}

func TestCancelAllSkipsUnsubmitted(t *testing.T) {
	adapter := &scriptedAdapter{}
	m, tracker := newManager(t, ManagerConfig{}, adapter)

	w := validated("w1")
	seed(tracker, w)
	require.NoError(t, m.Place(context.Background(), w))

	// A wager that never reached the venue has nothing to cancel there.
	pending := validated("w2")
	require.NoError(t, m.sm.Add(pending))

	m.CancelAll(context.Background())

	cur, _ := m.Get("w1")
	assert.Equal(t, schema.WagerStateCancelled, cur.State)
	assert.EqualValues(t, 1, adapter.cancels.Load())
	pendingCur, _ := m.Get("w2")
	assert.Equal(t, schema.WagerStateValidated, pendingCur.State)
}

func TestRestoreReregistersOpenReservations(t *testing.T) {
	m, tracker := newManager(t, ManagerConfig{}, &scriptedAdapter{})

	open := validated("w1")
	open.State = schema.WagerStateAccepted
	open.Matched = decimal.NewFromInt(10)
	done := validated("w2")
	done.State = schema.WagerStateMatched

	m.Restore([]schema.Wager{open, done})

	assert.Equal(t, 1, tracker.Risk().OpenWagerCount)
	assert.True(t, tracker.Risk().TotalOpenExposure.Equal(decimal.NewFromInt(50)))
	got := m.Open()
	require.Len(t, got, 1)
	assert.Equal(t, "w1", got[0].ID)
}

func TestStateMachineRejectsIllegalTransitions(t *testing.T) {
	sm := NewStateMachine()
	require.NoError(t, sm.Add(validated("w1")))

	_, err := sm.Transition("w1", schema.WagerStateMatched, nil)
	assert.Error(t, err)

	_, err = sm.Transition("w1", schema.WagerStateSubmitted, nil)
	require.NoError(t, err)
	_, err = sm.Transition("w1", schema.WagerStateAccepted, nil)
	require.NoError(t, err)
	_, err = sm.Transition("w1", schema.WagerStateMatched, nil)
	require.NoError(t, err)

	// Terminal states admit nothing further.
	_, err = sm.Transition("w1", schema.WagerStateCancelled, nil)
	assert.Error(t, err)
}
