package schema

import "github.com/shopspring/decimal"

// LevelSnapshot is one stored price level inside a book snapshot.
type LevelSnapshot struct {
	Side          Side            `json:"side"`
	SelectionID   string          `json:"sourceSelectionId"`
	SelectionName string          `json:"selectionName,omitempty"`
	Price         Odds            `json:"price"`
	Stake         decimal.Decimal `json:"stake"`
	UpdatedAt     int64           `json:"updatedAt"`
}

// BookSnapshot captures one market's full book state.
type BookSnapshot struct {
	Market     MarketInfo      `json:"market"`
	Levels     []LevelSnapshot `json:"levels"`
	LastUpdate int64           `json:"lastUpdate"`
	Halted     bool            `json:"halted,omitempty"`
}

// PositionSnapshot captures the net holding on one market.
type PositionSnapshot struct {
	MarketID string          `json:"marketId"`
	EventID  string          `json:"eventId"`
	Net      decimal.Decimal `json:"net"`
	Exposure decimal.Decimal `json:"exposure"`
}

// RiskSnapshot captures the process-wide risk aggregates.
type RiskSnapshot struct {
	Day               string          `json:"day"` // UTC date of the current daily window
	DailyRealizedPnL  decimal.Decimal `json:"dailyRealizedPnL"`
	TotalOpenExposure decimal.Decimal `json:"totalOpenExposure"`
	OpenWagerCount    int             `json:"openWagerCount"`
}

// Snapshot is the full externally persistable state of the core: order books,
// positions, risk aggregates, and open wagers. Produced by Snapshot() and
// consumed by Restore() on startup.
type Snapshot struct {
	Timestamp  int64              `json:"timestamp"`
	Books      []BookSnapshot     `json:"books"`
	Positions  []PositionSnapshot `json:"positions"`
	Risk       RiskSnapshot       `json:"risk"`
	OpenWagers []Wager            `json:"openWagers"`
}
