package wager

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/bus"
	"github.com/doug4987/New-MM-Test/internal/obs"
	"github.com/doug4987/New-MM-Test/internal/position"
	"github.com/doug4987/New-MM-Test/internal/schema"
	"github.com/doug4987/New-MM-Test/internal/venue"
)

// ManagerConfig bounds venue calls and the retry policy.
type ManagerConfig struct {
	SubmitTimeout    time.Duration `json:"submitTimeout"`
	MaxRetries       int           `json:"maxRetries"`
	RetryBackoff     time.Duration `json:"retryBackoff"`
	CancelAllTimeout time.Duration `json:"cancelAllTimeout"`

	// SimulateFills makes every accepted wager match in full immediately,
	// through the same status path live fills take. Set in dry-run mode.
	SimulateFills bool `json:"-"`
}

func (c *ManagerConfig) defaults() {
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 250 * time.Millisecond
	}
	if c.CancelAllTimeout <= 0 {
		c.CancelAllTimeout = 10 * time.Second
	}
}

// Manager drives validated wagers through submission and applies venue
// status updates back onto wager state and positions.
type Manager struct {
	cfg     ManagerConfig
	sm      *StateMachine
	orders  venue.OrderAdapter
	tracker *position.Tracker
	events  *bus.Bus
}

// NewManager wires the lifecycle manager.
func NewManager(cfg ManagerConfig, orders venue.OrderAdapter, tracker *position.Tracker, events *bus.Bus) *Manager {
	cfg.defaults()
	return &Manager{
		cfg:     cfg,
		sm:      NewStateMachine(),
		orders:  orders,
		tracker: tracker,
		events:  events,
	}
}

// Place submits a validated wager. The risk gate has already reserved its
// exposure; any failure here releases the reservation. Venue refusals and
// exhausted retries surface as wager states, not errors; only programming
// mistakes (wrong input state, duplicate id) return an error.
func (m *Manager) Place(ctx context.Context, w schema.Wager) error {
	if w.State != schema.WagerStateValidated {
		return errors.Wrap(ErrInvalidTransition, "place expects a validated wager").With("state", w.State.String())
	}
	if err := m.sm.Add(w); err != nil {
		return err
	}

	cur, err := m.sm.Transition(w.ID, schema.WagerStateSubmitted, nil)
	if err != nil {
		return err
	}
	m.publish(cur)

	outcome, err := m.submitWithRetry(ctx, cur)
	if err != nil {
		// Retries exhausted: the venue is unreachable, not pending.
		m.reject(w.ID, schema.RejectReasonVenueUnavailable)
		logs.Warnf("wager %s rejected, venue unavailable, err: %+v", w.ID, err)
		return nil
	}
	if !outcome.Accepted {
		m.reject(w.ID, schema.RejectReasonVenueRejected)
		logs.Infof("wager %s rejected by venue: %s", w.ID, outcome.Reason)
		return nil
	}

	cur, err = m.sm.Transition(w.ID, schema.WagerStateAccepted, func(w *schema.Wager) {
		w.VenueID = outcome.VenueID
	})
	if err != nil {
		return err
	}
	m.publish(cur)

	if m.cfg.SimulateFills {
		m.OnStatus(schema.WagerUpdate{
			WagerID:      w.ID,
			VenueID:      outcome.VenueID,
			State:        schema.WagerStateMatched,
			MatchedStake: cur.Stake,
			TsEvent:      time.Now().UTC().UnixNano(),
		})
	}
	return nil
}

// submitWithRetry calls the venue with a bounded timeout per attempt and
// exponential backoff between attempts. Permanent refusals return
// immediately; only transport failures are retried.
func (m *Manager) submitWithRetry(ctx context.Context, w schema.Wager) (venue.Outcome, error) {
	backoff := m.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return venue.Outcome{}, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, m.cfg.SubmitTimeout)
		outcome, err := m.orders.Submit(callCtx, w)
		cancel()
		if err != nil {
			obs.VenueCallsTotal.WithLabelValues("submit", "transient").Inc()
			lastErr = err
			continue
		}
		if outcome.Accepted {
			obs.VenueCallsTotal.WithLabelValues("submit", "ok").Inc()
		} else {
			obs.VenueCallsTotal.WithLabelValues("submit", "permanent").Inc()
		}
		return outcome, nil
	}
	return venue.Outcome{}, errors.Wrap(lastErr, "submit retries exhausted")
}

func (m *Manager) reject(id string, reason schema.RejectReason) {
	cur, err := m.sm.Transition(id, schema.WagerStateRejected, func(w *schema.Wager) {
		w.Reason = reason
	})
	if err != nil {
		logs.Warnf("reject wager %s, err: %+v", id, err)
		return
	}
	m.tracker.Release(id)
	m.publish(cur)
}

// Cancel withdraws one live wager. Unconfirmed cancellations are logged,
// never retried indefinitely.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	w, ok := m.sm.Get(id)
	if !ok {
		return errors.Wrap(ErrUnknownWager, "cancel").With("wager", id)
	}
	if w.State.Terminal() {
		return nil
	}

	backoff := m.cfg.RetryBackoff
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, m.cfg.SubmitTimeout)
		outcome, err := m.orders.Cancel(callCtx, w)
		cancel()
		if err != nil {
			obs.VenueCallsTotal.WithLabelValues("cancel", "transient").Inc()
			continue
		}
		if !outcome.Accepted {
			obs.VenueCallsTotal.WithLabelValues("cancel", "permanent").Inc()
			return errors.Errorf("cancel refused: %s", outcome.Reason)
		}

		obs.VenueCallsTotal.WithLabelValues("cancel", "ok").Inc()
		cur, err := m.sm.Transition(id, schema.WagerStateCancelled, nil)
		if err != nil {
			return err
		}
		m.tracker.Release(id)
		m.publish(cur)
		return nil
	}
	logs.Warnf("cancel unconfirmed for wager %s after %d attempts", id, m.cfg.MaxRetries+1)
	return errors.New("cancel unconfirmed")
}

// CancelAll cancels every open wager best-effort within the configured
// timeout. Called on shutdown.
func (m *Manager) CancelAll(ctx context.Context) {
	open := m.sm.Open()
	if len(open) == 0 {
		return
	}
	logs.Infof("cancelling %d open wagers", len(open))

	ctx, cancel := context.WithTimeout(ctx, m.cfg.CancelAllTimeout)
	defer cancel()
	for _, w := range open {
		if w.State == schema.WagerStateProposed || w.State == schema.WagerStateValidated {
			continue
		}
		if err := m.Cancel(ctx, w.ID); err != nil {
			logs.Warnf("cancel wager %s on shutdown, err: %+v", w.ID, err)
		}
	}
}

// OnStatus applies one canonical venue status update. Fills, cancellations,
// expiries, and settlements all route position and risk effects through the
// tracker; every effective transition is published on the bus.
func (m *Manager) OnStatus(update schema.WagerUpdate) {
	w, ok := m.sm.Get(update.WagerID)
	if !ok {
		logs.Debugf("status update for unknown wager %s", update.WagerID)
		return
	}

	if update.MatchedStake.GreaterThan(w.Matched) {
		m.tracker.ApplyFill(w.ID, w, update.MatchedStake)
		w, _ = m.sm.Update(w.ID, func(w *schema.Wager) {
			w.Matched = update.MatchedStake
			if update.VenueID != "" && w.VenueID == "" {
				w.VenueID = update.VenueID
			}
		})
	}

	if update.State != schema.WagerStateUnknown && update.State != w.State {
		cur, err := m.sm.Transition(w.ID, update.State, func(w *schema.Wager) {
			w.Reason = update.Reason
		})
		if err != nil {
			logs.Debugf("ignore stale status for wager %s: %+v", w.ID, err)
		} else {
			w = cur
			switch cur.State {
			case schema.WagerStateMatched:
				m.tracker.Finalize(cur.ID)
			case schema.WagerStateCancelled, schema.WagerStateExpired, schema.WagerStateRejected:
				m.tracker.Release(cur.ID)
			}
			m.publish(cur)
		}
	}

	if update.Settled {
		m.tracker.Settle(w.ID, w, update.Profit)
	}
}

// Open returns all non-terminal wagers.
func (m *Manager) Open() []schema.Wager {
	return m.sm.Open()
}

// Get returns one wager by id.
func (m *Manager) Get(id string) (schema.Wager, bool) {
	return m.sm.Get(id)
}

// Restore seeds wagers from a snapshot and re-registers reservations for
// the open ones.
func (m *Manager) Restore(wagers []schema.Wager) {
	m.sm.Restore(wagers)
	for _, w := range wagers {
		if !w.State.Terminal() && w.State != schema.WagerStateProposed {
			m.tracker.ReserveRestored(w)
		}
	}
}

func (m *Manager) publish(w schema.Wager) {
	obs.WagerTransitionsTotal.WithLabelValues(w.State.String()).Inc()
	if m.events == nil {
		return
	}
	if err := m.events.Publish(schema.Event{
		Kind:       schema.EventWagerStatusChanged,
		MarketID:   w.MarketID,
		WagerID:    w.ID,
		WagerState: w.State,
		Reason:     w.Reason,
	}); err != nil {
		logs.Warnf("publish wager status, err: %+v", err)
	}
}
