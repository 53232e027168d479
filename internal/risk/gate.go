// Package risk validates every prospective wager against live position,
// exposure, and loss limits before it may proceed to the venue.
package risk

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/obs"
	"github.com/doug4987/New-MM-Test/internal/position"
	"github.com/doug4987/New-MM-Test/internal/schema"
)

// Config defines the gate's limits. Zero-valued ceilings disable the
// corresponding check.
type Config struct {
	KillSwitch          bool            `json:"killSwitch"`
	MaxDailyLoss        decimal.Decimal `json:"maxDailyLoss"`
	MaxStakePerWager    decimal.Decimal `json:"maxStakePerWager"`
	MaxTotalExposure    decimal.Decimal `json:"maxTotalExposure"`
	MaxPositionSize     decimal.Decimal `json:"maxPositionSize"`
	MaxConcurrentWagers int             `json:"maxConcurrentWagers"`
}

// Action is the outcome category of a validation.
type Action uint16

const (
	ActionAccept Action = iota
	ActionResize
	ActionReject
)

func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "accept"
	case ActionResize:
		return "resize"
	case ActionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Decision is the result of validating one candidate wager. On Accept or
// Resize the candidate has been moved to Validated and its exposure is
// provisionally reserved; Stake carries the (possibly resized) size.
type Decision struct {
	Action Action
	Reason schema.RejectReason
	Stake  decimal.Decimal
}

// Gate evaluates candidates against a consistent snapshot of the shared
// risk state. The ordered checks short-circuit: the first failing check
// decides the outcome.
type Gate struct {
	cfg   Config
	state *position.Tracker
}

// NewGate creates a gate bound to the shared position tracker.
func NewGate(cfg Config, state *position.Tracker) *Gate {
	return &Gate{cfg: cfg, state: state}
}

// Validate checks a candidate wager. The snapshot read, the decision, and
// the exposure reservation happen atomically with respect to concurrent
// position updates, so a burst of concurrent quotes cannot all pass the same
// stale exposure figure.
func (g *Gate) Validate(w *schema.Wager) Decision {
	decision := Decision{Action: ActionReject, Reason: schema.RejectReasonInvalidWager, Stake: w.Stake}
	if w.State != schema.WagerStateProposed || !w.Price.Valid() || w.Stake.Sign() <= 0 {
		g.record(w, decision)
		return decision
	}

	g.state.EvaluateAndReserve(w, func(view position.RiskView) (decimal.Decimal, bool) {
		decision = g.evaluate(*w, view)
		if decision.Action == ActionReject {
			return decimal.Zero, false
		}
		w.Stake = decision.Stake
		w.State = schema.WagerStateValidated
		return w.ImpliedExposure(), true
	})

	g.record(w, decision)
	return decision
}

// evaluate applies the ordered checks against one consistent view.
func (g *Gate) evaluate(w schema.Wager, view position.RiskView) Decision {
	// 1. Kill switch / daily loss breach: trading halts outright.
	if g.cfg.KillSwitch {
		return Decision{Action: ActionReject, Reason: schema.RejectReasonKillSwitch, Stake: w.Stake}
	}
	if g.cfg.MaxDailyLoss.Sign() > 0 && view.DailyRealizedPnL.LessThanOrEqual(g.cfg.MaxDailyLoss.Neg()) {
		return Decision{Action: ActionReject, Reason: schema.RejectReasonDailyLossLimit, Stake: w.Stake}
	}

	// 2. Per-wager stake ceiling: resize down, a smaller version of the same
	// quote is still useful. The remaining checks see the resized stake.
	action := ActionAccept
	stake := w.Stake
	if g.cfg.MaxStakePerWager.Sign() > 0 && stake.GreaterThan(g.cfg.MaxStakePerWager) {
		stake = g.cfg.MaxStakePerWager
		w.Stake = stake
		action = ActionResize
	}
	exposure := w.ImpliedExposure()

	// 3. Total exposure ceiling.
	if g.cfg.MaxTotalExposure.Sign() > 0 &&
		view.TotalOpenExposure.Add(exposure).GreaterThan(g.cfg.MaxTotalExposure) {
		return Decision{Action: ActionReject, Reason: schema.RejectReasonTotalExposureLimit, Stake: stake}
	}

	// 4. Per-event position ceiling.
	if g.cfg.MaxPositionSize.Sign() > 0 &&
		view.EventExposure.Add(exposure).GreaterThan(g.cfg.MaxPositionSize) {
		return Decision{Action: ActionReject, Reason: schema.RejectReasonPositionLimit, Stake: stake}
	}

	// 5. Concurrency ceiling.
	if g.cfg.MaxConcurrentWagers > 0 && view.OpenWagerCount >= g.cfg.MaxConcurrentWagers {
		return Decision{Action: ActionReject, Reason: schema.RejectReasonConcurrencyLimit, Stake: stake}
	}

	return Decision{Action: action, Stake: stake}
}

func (g *Gate) record(w *schema.Wager, decision Decision) {
	obs.RiskDecisionsTotal.WithLabelValues(decision.Action.String(), decision.Reason.String()).Inc()
	switch decision.Action {
	case ActionReject:
		w.State = schema.WagerStateRejected
		w.Reason = decision.Reason
		logs.Debugf("risk rejected wager %s on %s: %s", w.ID, w.MarketID, decision.Reason)
	case ActionResize:
		logs.Debugf("risk resized wager %s on %s to stake %s", w.ID, w.MarketID, decision.Stake)
	}
}
