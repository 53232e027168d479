// Package position owns the cross-market shared mutable state: per-market
// and per-event positions plus the process-wide risk aggregates. Every
// mutation and every validation snapshot goes through one mutex, so risk
// checks never observe a torn update.
package position

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/obs"
	"github.com/doug4987/New-MM-Test/internal/schema"
)

// RiskView is the consistent snapshot handed to the risk gate for one
// candidate wager. All fields are read under the same lock that applies the
// eventual reservation, closing the check-then-act window.
type RiskView struct {
	Day               string
	DailyRealizedPnL  decimal.Decimal
	TotalOpenExposure decimal.Decimal
	OpenWagerCount    int
	EventExposure     decimal.Decimal
	MarketNet         decimal.Decimal
}

// holding is the tracker's view of one live wager: the exposure reserved for
// it and the stake already matched into a position.
type holding struct {
	marketID string
	eventID  string
	strategy string
	side     schema.Side
	stake    decimal.Decimal
	reserved decimal.Decimal
	matched  decimal.Decimal
	open     bool
}

// Tracker is the single writer for Position and RiskState.
type Tracker struct {
	mu sync.Mutex

	day          string
	dailyPnL     decimal.Decimal
	openExposure decimal.Decimal
	openCount    int

	holdings       map[string]*holding
	marketNet      map[string]decimal.Decimal
	marketExposure map[string]decimal.Decimal
	marketEvent    map[string]string
	eventExposure  map[string]decimal.Decimal

	now func() time.Time
}

// NewTracker creates an empty tracker with the daily window anchored to the
// current UTC date.
func NewTracker() *Tracker {
	t := &Tracker{
		holdings:       make(map[string]*holding),
		marketNet:      make(map[string]decimal.Decimal),
		marketExposure: make(map[string]decimal.Decimal),
		marketEvent:    make(map[string]string),
		eventExposure:  make(map[string]decimal.Decimal),
		now:            time.Now,
	}
	t.day = t.today()
	return t
}

func (t *Tracker) today() string {
	return t.now().UTC().Format("2006-01-02")
}

// rollDay resets the daily aggregates when the UTC date has moved past the
// current window. Caller holds the lock.
func (t *Tracker) rollDay() {
	today := t.today()
	if today == t.day {
		return
	}
	logs.Infof("daily risk window rolled %s -> %s, realized pnl was %s", t.day, today, t.dailyPnL)
	t.day = today
	t.dailyPnL = decimal.Zero
	obs.DailyRealizedPnL.Set(0)
}

// ResetDaily forces the daily window to restart now.
func (t *Tracker) ResetDaily() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.day = t.today()
	t.dailyPnL = decimal.Zero
	obs.DailyRealizedPnL.Set(0)
	logs.Info("daily risk statistics reset")
}

// EvaluateAndReserve atomically snapshots the risk state relevant to the
// candidate, runs decide, and when decide accepts, reserves the returned
// exposure before unlocking. The reservation is released or finalized once
// the wager reaches a terminal status.
func (t *Tracker) EvaluateAndReserve(w *schema.Wager, decide func(RiskView) (reserve decimal.Decimal, accept bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDay()

	view := RiskView{
		Day:               t.day,
		DailyRealizedPnL:  t.dailyPnL,
		TotalOpenExposure: t.openExposure,
		OpenWagerCount:    t.openCount,
		EventExposure:     t.eventExposure[w.EventID],
		MarketNet:         t.marketNet[w.MarketID],
	}

	reserve, accept := decide(view)
	if !accept {
		return
	}
	t.reserveLocked(*w, reserve)
}

// ReserveRestored re-registers the reservation for an open wager recovered
// from a snapshot. The matched share of a partial fill is already inside the
// restored position exposure, so only the unmatched share re-enters the
// aggregates; the holding keeps the full reservation so release and settle
// arithmetic stay identical to the live path.
func (t *Tracker) ReserveRestored(w schema.Wager) {
	t.mu.Lock()
	defer t.mu.Unlock()

	full := w.ImpliedExposure()
	unmatched := full
	if w.Matched.Sign() > 0 && w.Stake.Sign() > 0 {
		unmatched = full.Mul(w.Stake.Sub(w.Matched)).Div(w.Stake)
	}

	t.holdings[w.ID] = &holding{
		marketID: w.MarketID,
		eventID:  w.EventID,
		strategy: w.Strategy,
		side:     w.Side,
		stake:    w.Stake,
		reserved: full,
		matched:  w.Matched,
		open:     true,
	}
	t.openExposure = t.openExposure.Add(unmatched)
	t.openCount++
	t.marketExposure[w.MarketID] = t.marketExposure[w.MarketID].Add(unmatched)
	t.eventExposure[w.EventID] = t.eventExposure[w.EventID].Add(unmatched)
	t.marketEvent[w.MarketID] = w.EventID
	t.publishGauges()
}

func (t *Tracker) reserveLocked(w schema.Wager, exposure decimal.Decimal) {
	t.holdings[w.ID] = &holding{
		marketID: w.MarketID,
		eventID:  w.EventID,
		strategy: w.Strategy,
		side:     w.Side,
		stake:    w.Stake,
		reserved: exposure,
		open:     true,
	}
	t.openExposure = t.openExposure.Add(exposure)
	t.openCount++
	t.marketExposure[w.MarketID] = t.marketExposure[w.MarketID].Add(exposure)
	t.eventExposure[w.EventID] = t.eventExposure[w.EventID].Add(exposure)
	t.marketEvent[w.MarketID] = w.EventID
	t.publishGauges()
}

// Release drops the unmatched share of a wager's reservation. Called when a
// wager ends Rejected, Cancelled, or Expired; any already matched stake
// stays on the books as a position.
func (t *Tracker) Release(wagerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.holdings[wagerID]
	if !ok || !h.open {
		return
	}
	unmatched := h.reserved.Sub(t.matchedExposureLocked(h))
	if unmatched.Sign() > 0 {
		t.subtractExposureLocked(h, unmatched)
		h.reserved = h.reserved.Sub(unmatched)
	}
	h.open = false
	t.openCount--
	if h.matched.Sign() <= 0 {
		delete(t.holdings, wagerID)
	}
	t.publishGauges()
}

// ApplyFill books matched stake into the market position. totalMatched is
// the venue's cumulative figure for the wager; only the delta is applied, so
// replayed updates are idempotent.
func (t *Tracker) ApplyFill(wagerID string, w schema.Wager, totalMatched decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.holdings[wagerID]
	if !ok {
		return
	}
	delta := totalMatched.Sub(h.matched)
	if delta.Sign() <= 0 {
		return
	}
	if delta.GreaterThan(h.stake.Sub(h.matched)) {
		delta = h.stake.Sub(h.matched)
	}
	h.matched = h.matched.Add(delta)
	t.marketNet[h.marketID] = t.marketNet[h.marketID].Add(w.NetEffect(delta))
	t.publishGauges()
}

// Finalize closes out a wager that reached Matched in full: the wager stops
// counting against the concurrency ceiling while its exposure remains held
// as an open position until settlement.
func (t *Tracker) Finalize(wagerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.holdings[wagerID]
	if !ok || !h.open {
		return
	}
	h.open = false
	t.openCount--
	t.publishGauges()
}

// Settle applies the realized profit of a settled wager and removes its
// position exposure.
func (t *Tracker) Settle(wagerID string, w schema.Wager, profit decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDay()

	t.dailyPnL = t.dailyPnL.Add(profit)
	pnl, _ := t.dailyPnL.Float64()
	obs.DailyRealizedPnL.Set(pnl)

	h, ok := t.holdings[wagerID]
	if !ok {
		return
	}
	if h.open {
		h.open = false
		t.openCount--
	}
	if h.reserved.Sign() > 0 {
		t.subtractExposureLocked(h, h.reserved)
	}
	if h.matched.Sign() > 0 {
		t.marketNet[h.marketID] = t.marketNet[h.marketID].Sub(w.NetEffect(h.matched))
	}
	delete(t.holdings, wagerID)
	t.publishGauges()
}

// AddRealizedPnL adjusts the daily realized figure directly. Used for
// settlement updates that arrive for wagers the tracker no longer holds.
func (t *Tracker) AddRealizedPnL(profit decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDay()
	t.dailyPnL = t.dailyPnL.Add(profit)
	pnl, _ := t.dailyPnL.Float64()
	obs.DailyRealizedPnL.Set(pnl)
}

// matchedExposureLocked returns the share of the holding's reserved exposure
// attributable to already matched stake. Exposure is linear in stake.
func (t *Tracker) matchedExposureLocked(h *holding) decimal.Decimal {
	if h.matched.Sign() <= 0 || h.stake.Sign() <= 0 {
		return decimal.Zero
	}
	return h.reserved.Mul(h.matched).Div(h.stake)
}

func (t *Tracker) subtractExposureLocked(h *holding, exposure decimal.Decimal) {
	t.openExposure = t.openExposure.Sub(exposure)
	t.marketExposure[h.marketID] = t.marketExposure[h.marketID].Sub(exposure)
	t.eventExposure[h.eventID] = t.eventExposure[h.eventID].Sub(exposure)
}

func (t *Tracker) publishGauges() {
	exposure, _ := t.openExposure.Float64()
	obs.OpenExposure.Set(exposure)
	obs.OpenWagers.Set(float64(t.openCount))
}

// Risk returns a consistent copy of the process-wide aggregates.
func (t *Tracker) Risk() schema.RiskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDay()
	return schema.RiskSnapshot{
		Day:               t.day,
		DailyRealizedPnL:  t.dailyPnL,
		TotalOpenExposure: t.openExposure,
		OpenWagerCount:    t.openCount,
	}
}

// Net returns the net position held on one market.
func (t *Tracker) Net(marketID string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.marketNet[marketID]
}

// EventExposure returns the exposure aggregated over one event.
func (t *Tracker) EventExposure(eventID string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eventExposure[eventID]
}
