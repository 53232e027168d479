package schema

import "github.com/shopspring/decimal"

// WagerState tracks the lifecycle of a wager.
//
// Proposed -> Validated -> Submitted -> {Accepted, Rejected}
// Accepted -> {Matched, PartiallyMatched, Cancelled, Expired}
type WagerState uint16

const (
	WagerStateUnknown WagerState = iota
	WagerStateProposed
	WagerStateValidated
	WagerStateSubmitted
	WagerStateAccepted
	WagerStateRejected
	WagerStatePartiallyMatched
	WagerStateMatched
	WagerStateCancelled
	WagerStateExpired
)

// Terminal reports whether the state admits no further transitions.
func (s WagerState) Terminal() bool {
	switch s {
	case WagerStateRejected, WagerStateMatched, WagerStateCancelled, WagerStateExpired:
		return true
	default:
		return false
	}
}

func (s WagerState) String() string {
	switch s {
	case WagerStateProposed:
		return "proposed"
	case WagerStateValidated:
		return "validated"
	case WagerStateSubmitted:
		return "submitted"
	case WagerStateAccepted:
		return "accepted"
	case WagerStateRejected:
		return "rejected"
	case WagerStatePartiallyMatched:
		return "partially_matched"
	case WagerStateMatched:
		return "matched"
	case WagerStateCancelled:
		return "cancelled"
	case WagerStateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// RejectReason attributes a rejected or resized wager to the check or venue
// outcome that produced it.
type RejectReason uint16

const (
	RejectReasonNone RejectReason = iota
	RejectReasonKillSwitch
	RejectReasonDailyLossLimit
	RejectReasonStakeLimit
	RejectReasonTotalExposureLimit
	RejectReasonPositionLimit
	RejectReasonConcurrencyLimit
	RejectReasonVenueUnavailable
	RejectReasonVenueRejected
	RejectReasonInvalidWager
)

func (r RejectReason) String() string {
	switch r {
	case RejectReasonNone:
		return "none"
	case RejectReasonKillSwitch:
		return "KillSwitch"
	case RejectReasonDailyLossLimit:
		return "DailyLossLimit"
	case RejectReasonStakeLimit:
		return "StakeLimit"
	case RejectReasonTotalExposureLimit:
		return "TotalExposureLimit"
	case RejectReasonPositionLimit:
		return "PositionLimit"
	case RejectReasonConcurrencyLimit:
		return "ConcurrencyLimit"
	case RejectReasonVenueUnavailable:
		return "VenueUnavailable"
	case RejectReasonVenueRejected:
		return "VenueRejected"
	case RejectReasonInvalidWager:
		return "InvalidWager"
	default:
		return "unknown"
	}
}

// Wager is a proposed or live order against one selection.
type Wager struct {
	ID          string          `json:"id"`
	VenueID     string          `json:"venueId,omitempty"`
	MarketID    string          `json:"marketId"`
	EventID     string          `json:"eventId"`
	Side        Side            `json:"side"`
	SelectionID string          `json:"sourceSelectionId"`
	Price       Odds            `json:"price"`
	Stake       decimal.Decimal `json:"stake"`
	Matched     decimal.Decimal `json:"matched"`
	State       WagerState      `json:"state"`
	Reason      RejectReason    `json:"reason,omitempty"`
	Strategy    string          `json:"strategy,omitempty"`
	CreatedAt   int64           `json:"createdAt"`
	UpdatedAt   int64           `json:"updatedAt"`
}

// ImpliedExposure is the maximum potential loss if the wager settles
// unfavorably: the stake for a back bet, the lay liability otherwise.
func (w Wager) ImpliedExposure() decimal.Decimal {
	if w.Side == SideLay && w.Price.Valid() {
		return w.Stake.Mul(w.Price.PayoutMultiplier())
	}
	return w.Stake
}

// NetEffect is the signed position contribution of a filled stake:
// positive for back, negative for lay.
func (w Wager) NetEffect(filled decimal.Decimal) decimal.Decimal {
	if w.Side == SideLay {
		return filled.Neg()
	}
	return filled
}

// WagerUpdate is the canonical form of one venue wager-status payload.
type WagerUpdate struct {
	WagerID      string          `json:"wagerId"`
	VenueID      string          `json:"venueId,omitempty"`
	State        WagerState      `json:"state"`
	Reason       RejectReason    `json:"reason,omitempty"`
	MatchedStake decimal.Decimal `json:"matchedStake"`
	Settled      bool            `json:"settled,omitempty"`
	Profit       decimal.Decimal `json:"profit"`
	TsEvent      int64           `json:"tsEvent,omitempty"`
}
