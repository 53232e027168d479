package schema

import "github.com/shopspring/decimal"

// LevelChange is the canonical description of one price-level mutation,
// produced by the feed normalizer. Price == OddsNone or Stake <= 0 means the
// level is absent from the book.
type LevelChange struct {
	MarketID      string          `json:"marketId"`
	Side          Side            `json:"side"`
	SelectionID   string          `json:"sourceSelectionId"`
	SelectionName string          `json:"selectionName,omitempty"`
	Price         Odds            `json:"price"`
	Stake         decimal.Decimal `json:"stake"`
	TsEvent       int64           `json:"tsEvent,omitempty"`
}

// Removes reports whether applying this change deletes the level.
func (c LevelChange) Removes() bool {
	return c.Price == OddsNone || !c.Price.Valid() || c.Stake.Sign() <= 0
}

// Quote is one priced level at the top of a book side.
type Quote struct {
	SelectionID string          `json:"sourceSelectionId"`
	Price       Odds            `json:"price"`
	Stake       decimal.Decimal `json:"stake"`
}

// TopOfBook carries the derived best-level fields of one market's book.
// Spread and Mid are defined only when both sides are present.
type TopOfBook struct {
	Bid    Quote   `json:"bid"`
	HasBid bool    `json:"hasBid"`
	Ask    Quote   `json:"ask"`
	HasAsk bool    `json:"hasAsk"`
	Spread Odds    `json:"spread"`
	Mid    float64 `json:"mid"`
}

// TwoSided reports whether both sides exist and the spread is defined.
func (t TopOfBook) TwoSided() bool {
	return t.HasBid && t.HasAsk
}

// BookDelta describes the effect of applying one batch of level changes,
// for downstream broadcast.
type BookDelta struct {
	Market    MarketInfo    `json:"market"`
	New       bool          `json:"new,omitempty"` // market created by this batch
	Upserted  []LevelChange `json:"upserted,omitempty"`
	Removed   []LevelChange `json:"removed,omitempty"`
	Top       TopOfBook     `json:"top"`
	TsApplied int64         `json:"tsApplied"`
}

// Empty reports whether the batch changed nothing.
func (d BookDelta) Empty() bool {
	return !d.New && len(d.Upserted) == 0 && len(d.Removed) == 0
}
