// Package strategy implements the quoting loop: it reads order-book and
// inventory state and proposes bid/ask wagers, which always pass through the
// risk gate before submission.
package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/book"
	"github.com/doug4987/New-MM-Test/internal/bus"
	"github.com/doug4987/New-MM-Test/internal/obs"
	"github.com/doug4987/New-MM-Test/internal/position"
	"github.com/doug4987/New-MM-Test/internal/risk"
	"github.com/doug4987/New-MM-Test/internal/schema"
	"github.com/doug4987/New-MM-Test/internal/wager"
)

// Config tunes the market-making behavior.
type Config struct {
	Name            string          `json:"name"`
	Stake           decimal.Decimal `json:"stake"`
	SpreadMargin    float64         `json:"spreadMargin"`
	RefreshInterval time.Duration   `json:"refreshInterval"`
	SkewThreshold   decimal.Decimal `json:"skewThreshold"`
	MaxPositionSize decimal.Decimal `json:"maxPositionSize"`
}

func (c *Config) defaults() {
	if c.Name == "" {
		c.Name = "simple_market_maker"
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 5 * time.Second
	}
	if c.SpreadMargin <= 0 {
		c.SpreadMargin = 0.02
	}
}

// liveQuote remembers the wagers currently quoting one market.
type liveQuote struct {
	bidID    string
	bidPrice schema.Odds
	askID    string
	askPrice schema.Odds
}

// Maker quotes two-sided around the venue's best prices on a fixed cadence,
// and reactively when a book it quotes moves.
type Maker struct {
	cfg     Config
	books   *book.Store
	tracker *position.Tracker
	gate    *risk.Gate
	manager *wager.Manager
	sub     *bus.Subscriber

	quoting map[string]*liveQuote
}

// NewMaker wires the strategy. sub must be subscribed to the event bus
// before the book engine starts.
func NewMaker(cfg Config, books *book.Store, tracker *position.Tracker, gate *risk.Gate, manager *wager.Manager, sub *bus.Subscriber) *Maker {
	cfg.defaults()
	return &Maker{
		cfg:     cfg,
		books:   books,
		tracker: tracker,
		gate:    gate,
		manager: manager,
		sub:     sub,
		quoting: make(map[string]*liveQuote),
	}
}

// Run drives the quote loop until ctx is done.
func (m *Maker) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()
	logs.Infof("strategy %s started, refresh interval %s", m.cfg.Name, m.cfg.RefreshInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshAll(ctx)
		case event, ok := <-m.sub.Events():
			if !ok {
				return
			}
			if event.Kind != schema.EventOrderBookUpdated {
				continue
			}
			// React immediately for markets we are actively quoting; the
			// periodic refresh picks up the rest.
			if _, active := m.quoting[event.MarketID]; active {
				m.refreshMarket(ctx, event.MarketID)
			}
		}
	}
}

func (m *Maker) refreshAll(ctx context.Context) {
	for _, info := range m.books.Markets() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		m.refreshMarket(ctx, info.MarketID)
	}
}

// refreshMarket recomputes the target quote set for one market and replaces
// stale quotes. The order book observed here is always the latest applied
// state: the store recomputes derived fields synchronously on mutation.
func (m *Maker) refreshMarket(ctx context.Context, marketID string) {
	if m.books.Halted(marketID) {
		m.withdraw(ctx, marketID)
		return
	}
	top, ok := m.books.Top(marketID)
	if !ok || !top.TwoSided() {
		// No resolvable best bid/ask: never guess a price.
		m.withdraw(ctx, marketID)
		return
	}
	info, _ := m.books.Market(marketID)

	targetBid := top.Bid.Price.Widen(schema.SideBack, m.cfg.SpreadMargin)
	targetAsk := top.Ask.Price.Widen(schema.SideLay, m.cfg.SpreadMargin)
	bidSize, askSize := m.sizes(info)
	if bidSize.Sign() <= 0 && askSize.Sign() <= 0 {
		m.withdraw(ctx, marketID)
		return
	}

	lq := m.quoting[marketID]
	if lq == nil {
		lq = &liveQuote{}
		m.quoting[marketID] = lq
	}

	m.requote(ctx, info, top, schema.SideBack, targetBid, bidSize, lq)
	m.requote(ctx, info, top, schema.SideLay, targetAsk, askSize, lq)
}

// sizes computes the per-side quote size from configured stake, remaining
// inventory capacity, and skew. When net position exceeds the skew
// threshold the next quote biases toward flattening: smaller on the side
// that would grow exposure, larger on the side that would shrink it.
func (m *Maker) sizes(info schema.MarketInfo) (bid, ask decimal.Decimal) {
	size := m.cfg.Stake
	if m.cfg.MaxPositionSize.Sign() > 0 {
		capacity := m.cfg.MaxPositionSize.Sub(m.tracker.EventExposure(info.EventID))
		if capacity.LessThan(size) {
			size = capacity
		}
	}
	if size.Sign() <= 0 {
		return decimal.Zero, decimal.Zero
	}

	bid, ask = size, size
	if m.cfg.SkewThreshold.Sign() <= 0 {
		return bid, ask
	}
	net := m.tracker.Net(info.MarketID)
	half := decimal.NewFromInt(2)
	switch {
	case net.GreaterThan(m.cfg.SkewThreshold):
		// Long the back side: shrink the bid, lean on the ask.
		bid = bid.Div(half)
		ask = ask.Mul(decimal.NewFromFloat(1.5))
	case net.Neg().GreaterThan(m.cfg.SkewThreshold):
		ask = ask.Div(half)
		bid = bid.Mul(decimal.NewFromFloat(1.5))
	}
	return bid, ask
}

// requote replaces one side's quote when the target moved. Unchanged live
// quotes are left in the queue.
func (m *Maker) requote(ctx context.Context, info schema.MarketInfo, top schema.TopOfBook, side schema.Side, price schema.Odds, size decimal.Decimal, lq *liveQuote) {
	curID, curPrice := lq.bidID, lq.bidPrice
	selection := top.Bid.SelectionID
	if side == schema.SideLay {
		curID, curPrice = lq.askID, lq.askPrice
		selection = top.Ask.SelectionID
	}

	if size.Sign() <= 0 {
		if curID != "" {
			m.cancelQuote(ctx, curID)
			lq.set(side, "", schema.OddsNone)
		}
		return
	}
	if curID != "" && curPrice == price {
		if w, ok := m.manager.Get(curID); ok && !w.State.Terminal() {
			return
		}
	}
	if curID != "" {
		m.cancelQuote(ctx, curID)
		lq.set(side, "", schema.OddsNone)
	}

	candidate := schema.Wager{
		ID:          uuid.NewString(),
		MarketID:    info.MarketID,
		EventID:     info.EventID,
		Side:        side,
		SelectionID: selection,
		Price:       price,
		Stake:       size,
		State:       schema.WagerStateProposed,
		Strategy:    m.cfg.Name,
		CreatedAt:   time.Now().UTC().UnixNano(),
	}
	obs.QuotesProposedTotal.WithLabelValues(side.String()).Inc()

	decision := m.gate.Validate(&candidate)
	if decision.Action == risk.ActionReject {
		return
	}
	if err := m.manager.Place(ctx, candidate); err != nil {
		logs.Warnf("place quote on %s, err: %+v", info.MarketID, err)
		return
	}
	if w, ok := m.manager.Get(candidate.ID); !ok || w.State.Terminal() {
		return
	}
	lq.set(side, candidate.ID, price)
}

// withdraw cancels both live quotes for a market.
func (m *Maker) withdraw(ctx context.Context, marketID string) {
	lq, ok := m.quoting[marketID]
	if !ok {
		return
	}
	if lq.bidID != "" {
		m.cancelQuote(ctx, lq.bidID)
	}
	if lq.askID != "" {
		m.cancelQuote(ctx, lq.askID)
	}
	delete(m.quoting, marketID)
}

func (m *Maker) cancelQuote(ctx context.Context, id string) {
	if w, ok := m.manager.Get(id); !ok || w.State.Terminal() {
		return
	}
	if err := m.manager.Cancel(ctx, id); err != nil {
		logs.Debugf("cancel quote %s, err: %+v", id, err)
	}
}

func (lq *liveQuote) set(side schema.Side, id string, price schema.Odds) {
	if side == schema.SideLay {
		lq.askID, lq.askPrice = id, price
		return
	}
	lq.bidID, lq.bidPrice = id, price
}
