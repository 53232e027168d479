// Package book holds per-market order books built from discrete back/lay
// price levels and keeps their derived best-price fields consistent with
// every mutation.
package book

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

var ErrInvariantViolated = errors.New("order book invariant violated")

// level is one active price level. All stored levels are priced and carry a
// positive stake; placeholder rows never enter the book.
type level struct {
	SelectionID   string
	SelectionName string
	Price         schema.Odds
	Stake         decimal.Decimal
	Prob          float64
	Seq           uint64 // discovery order, tie-break for equal probabilities
	UpdatedAt     int64
}

// Book is one market's order book. Back levels are sorted highest implied
// probability first, lay levels lowest first; both are deduplicated by
// selection id.
type Book struct {
	market     schema.MarketInfo
	backs      []level
	lays       []level
	top        schema.TopOfBook
	lastUpdate int64
	nextSeq    uint64
	halted     bool
}

func newBook(market schema.MarketInfo) *Book {
	return &Book{market: market}
}

// apply mutates the book with one batch of canonical changes and reports the
// effective upserts and removals. Derived fields are recomputed before it
// returns; the book is never left inconsistent.
func (b *Book) apply(changes []schema.LevelChange, now int64) (upserted, removed []schema.LevelChange) {
	touched := false
	for _, c := range changes {
		side := b.sideLevels(c.Side)
		if side == nil {
			continue
		}
		idx := findLevel(*side, c.SelectionID)

		if c.Removes() {
			if idx < 0 {
				continue
			}
			*side = append((*side)[:idx], (*side)[idx+1:]...)
			removed = append(removed, c)
			touched = true
			continue
		}

		if idx >= 0 {
			lv := &(*side)[idx]
			if lv.Price == c.Price && lv.Stake.Equal(c.Stake) {
				continue // idempotent re-apply
			}
			lv.Price = c.Price
			lv.Stake = c.Stake
			lv.Prob = c.Price.ImpliedProbability()
			if c.SelectionName != "" {
				lv.SelectionName = c.SelectionName
			}
			lv.UpdatedAt = now
		} else {
			b.nextSeq++
			*side = append(*side, level{
				SelectionID:   c.SelectionID,
				SelectionName: c.SelectionName,
				Price:         c.Price,
				Stake:         c.Stake,
				Prob:          c.Price.ImpliedProbability(),
				Seq:           b.nextSeq,
				UpdatedAt:     now,
			})
		}
		upserted = append(upserted, c)
		touched = true
	}

	if touched {
		b.resort()
		b.recomputeTop()
		b.lastUpdate = now
	}
	return upserted, removed
}

func (b *Book) sideLevels(side schema.Side) *[]level {
	switch side {
	case schema.SideBack:
		return &b.backs
	case schema.SideLay:
		return &b.lays
	default:
		return nil
	}
}

func findLevel(levels []level, selectionID string) int {
	for i := range levels {
		if levels[i].SelectionID == selectionID {
			return i
		}
	}
	return -1
}

func (b *Book) resort() {
	sort.SliceStable(b.backs, func(i, j int) bool {
		if b.backs[i].Prob != b.backs[j].Prob {
			return b.backs[i].Prob > b.backs[j].Prob
		}
		return b.backs[i].Seq < b.backs[j].Seq
	})
	sort.SliceStable(b.lays, func(i, j int) bool {
		if b.lays[i].Prob != b.lays[j].Prob {
			return b.lays[i].Prob < b.lays[j].Prob
		}
		return b.lays[i].Seq < b.lays[j].Seq
	})
}

func (b *Book) recomputeTop() {
	var top schema.TopOfBook
	if len(b.backs) > 0 {
		best := b.backs[0]
		top.Bid = schema.Quote{SelectionID: best.SelectionID, Price: best.Price, Stake: best.Stake}
		top.HasBid = true
	}
	if len(b.lays) > 0 {
		best := b.lays[0]
		top.Ask = schema.Quote{SelectionID: best.SelectionID, Price: best.Price, Stake: best.Stake}
		top.HasAsk = true
	}
	if top.HasBid && top.HasAsk {
		top.Spread = top.Ask.Price - top.Bid.Price
		top.Mid = (float64(top.Bid.Price) + float64(top.Ask.Price)) / 2
	}
	b.top = top
}

// checkInvariants verifies both sides are sorted and deduplicated and that
// every stored level is priced with positive stake.
func (b *Book) checkInvariants() error {
	if err := checkSide(b.backs, true); err != nil {
		return errors.Wrap(err, "back levels").With("market", b.market.MarketID)
	}
	if err := checkSide(b.lays, false); err != nil {
		return errors.Wrap(err, "lay levels").With("market", b.market.MarketID)
	}
	return nil
}

func checkSide(levels []level, bestIsHighest bool) error {
	seen := make(map[string]struct{}, len(levels))
	for i, lv := range levels {
		if _, dup := seen[lv.SelectionID]; dup {
			return errors.Wrap(ErrInvariantViolated, "duplicate selection").With("selection", lv.SelectionID)
		}
		seen[lv.SelectionID] = struct{}{}
		if !lv.Price.Valid() || lv.Stake.Sign() <= 0 {
			return errors.Wrap(ErrInvariantViolated, "unpriced or empty level").With("selection", lv.SelectionID)
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1]
		if bestIsHighest && lv.Prob > prev.Prob {
			return errors.Wrap(ErrInvariantViolated, "back levels out of order")
		}
		if !bestIsHighest && lv.Prob < prev.Prob {
			return errors.Wrap(ErrInvariantViolated, "lay levels out of order")
		}
	}
	return nil
}

// Top returns the current derived best-price fields.
func (b *Book) Top() schema.TopOfBook {
	return b.top
}

// Market returns the book's immutable identity.
func (b *Book) Market() schema.MarketInfo {
	return b.market
}

// LastUpdate returns the timestamp of the most recent mutation.
func (b *Book) LastUpdate() int64 {
	return b.lastUpdate
}

// Depth returns the number of active levels per side.
func (b *Book) Depth() (backs, lays int) {
	return len(b.backs), len(b.lays)
}

func (b *Book) snapshot() schema.BookSnapshot {
	levels := make([]schema.LevelSnapshot, 0, len(b.backs)+len(b.lays))
	for _, lv := range b.backs {
		levels = append(levels, levelSnapshot(schema.SideBack, lv))
	}
	for _, lv := range b.lays {
		levels = append(levels, levelSnapshot(schema.SideLay, lv))
	}
	return schema.BookSnapshot{
		Market:     b.market,
		Levels:     levels,
		LastUpdate: b.lastUpdate,
		Halted:     b.halted,
	}
}

func levelSnapshot(side schema.Side, lv level) schema.LevelSnapshot {
	return schema.LevelSnapshot{
		Side:          side,
		SelectionID:   lv.SelectionID,
		SelectionName: lv.SelectionName,
		Price:         lv.Price,
		Stake:         lv.Stake,
		UpdatedAt:     lv.UpdatedAt,
	}
}
