package position

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

// Snapshot captures positions and risk aggregates for external persistence.
// Recorded exposures exclude the unmatched share of open-wager reservations:
// open wagers are persisted alongside this snapshot and re-reserved on
// restore, so including them here would double count.
func (t *Tracker) Snapshot() ([]schema.PositionSnapshot, schema.RiskSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollDay()

	marketExposure := make(map[string]decimal.Decimal, len(t.marketExposure))
	for marketID, exposure := range t.marketExposure {
		marketExposure[marketID] = exposure
	}
	for _, h := range t.holdings {
		if !h.open {
			continue
		}
		unmatched := h.reserved.Sub(t.matchedExposureLocked(h))
		if unmatched.Sign() > 0 {
			marketExposure[h.marketID] = marketExposure[h.marketID].Sub(unmatched)
		}
	}

	ids := make(map[string]struct{}, len(t.marketNet))
	for marketID := range t.marketNet {
		ids[marketID] = struct{}{}
	}
	for marketID := range marketExposure {
		ids[marketID] = struct{}{}
	}
	positions := make([]schema.PositionSnapshot, 0, len(ids))
	for marketID := range ids {
		net := t.marketNet[marketID]
		exposure := marketExposure[marketID]
		if net.Sign() == 0 && exposure.Sign() == 0 {
			continue
		}
		positions = append(positions, schema.PositionSnapshot{
			MarketID: marketID,
			EventID:  t.marketEvent[marketID],
			Net:      net,
			Exposure: exposure,
		})
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].MarketID < positions[j].MarketID })

	risk := schema.RiskSnapshot{
		Day:               t.day,
		DailyRealizedPnL:  t.dailyPnL,
		TotalOpenExposure: t.openExposure,
		OpenWagerCount:    t.openCount,
	}
	return positions, risk
}

// Restore seeds positions and the daily window from a snapshot. Open-wager
// reservations are re-registered separately via ReserveRestored, so the
// exposure and count aggregates are rebuilt rather than copied.
func (t *Tracker) Restore(positions []schema.PositionSnapshot, risk schema.RiskSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.holdings = make(map[string]*holding)
	t.marketNet = make(map[string]decimal.Decimal, len(positions))
	t.marketExposure = make(map[string]decimal.Decimal, len(positions))
	t.marketEvent = make(map[string]string, len(positions))
	t.eventExposure = make(map[string]decimal.Decimal)
	t.openExposure = decimal.Zero
	t.openCount = 0

	for _, p := range positions {
		t.marketNet[p.MarketID] = p.Net
		t.marketExposure[p.MarketID] = p.Exposure
		t.marketEvent[p.MarketID] = p.EventID
		if p.EventID != "" {
			t.eventExposure[p.EventID] = t.eventExposure[p.EventID].Add(p.Exposure)
		}
		t.openExposure = t.openExposure.Add(p.Exposure)
	}

	if risk.Day != "" {
		t.day = risk.Day
		t.dailyPnL = risk.DailyRealizedPnL
	}
	t.rollDay()
	t.publishGauges()
}
