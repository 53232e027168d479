package feed

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

// wagerPayload mirrors the venue's wager-status message shape.
type wagerPayload struct {
	Meta struct {
		ChangeType string `json:"change_type"`
	} `json:"_meta"`
	ExternalID   flexID           `json:"external_id"`
	WagerID      flexID           `json:"wager_id"`
	ID           flexID           `json:"id"`
	Status       string           `json:"status"`
	MatchedStake *decimal.Decimal `json:"matched_stake"`
	Profit       *decimal.Decimal `json:"profit"`
	Settled      bool             `json:"settled"`
}

// ParseWagerUpdate converts one raw wager-status payload into canonical
// form. Returns false for malformed payloads, which the caller drops.
func (n *Normalizer) ParseWagerUpdate(raw []byte) (schema.WagerUpdate, bool) {
	var p wagerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		n.drop("unmarshal wager payload: %v", err)
		return schema.WagerUpdate{}, false
	}

	wagerID := p.ExternalID.String()
	if wagerID == "" {
		n.drop("wager payload without external id, status=%q", p.Status)
		return schema.WagerUpdate{}, false
	}

	state, reason := wagerState(p.Status)
	if state == schema.WagerStateUnknown && !p.Settled {
		n.drop("wager payload with unknown status %q", p.Status)
		return schema.WagerUpdate{}, false
	}

	update := schema.WagerUpdate{
		WagerID: wagerID,
		VenueID: firstID(p.WagerID, p.ID),
		State:   state,
		Reason:  reason,
		Settled: p.Settled,
		TsEvent: time.Now().UTC().UnixNano(),
	}
	if p.MatchedStake != nil {
		update.MatchedStake = *p.MatchedStake
	}
	if p.Profit != nil {
		update.Profit = *p.Profit
	}
	return update, true
}

func wagerState(status string) (schema.WagerState, schema.RejectReason) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "open", "accepted", "unmatched":
		return schema.WagerStateAccepted, schema.RejectReasonNone
	case "partially_matched", "partial":
		return schema.WagerStatePartiallyMatched, schema.RejectReasonNone
	case "matched", "filled", "settled":
		return schema.WagerStateMatched, schema.RejectReasonNone
	case "cancelled", "canceled":
		return schema.WagerStateCancelled, schema.RejectReasonNone
	case "expired", "void":
		return schema.WagerStateExpired, schema.RejectReasonNone
	case "rejected", "invalid":
		return schema.WagerStateRejected, schema.RejectReasonVenueRejected
	default:
		return schema.WagerStateUnknown, schema.RejectReasonNone
	}
}
