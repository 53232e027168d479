package book

import (
	"sort"
	"sync"

	"github.com/yanun0323/errors"

	"github.com/doug4987/New-MM-Test/internal/obs"
	"github.com/doug4987/New-MM-Test/internal/schema"
)

var ErrMarketHalted = errors.New("market halted")

// Store owns every order book, keyed by market. Writes for one market come
// from a single partition loop; the lock covers cross-market readers.
type Store struct {
	mu    sync.RWMutex
	books map[string]*Book
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{books: make(map[string]*Book)}
}

// Apply mutates one market's book with a batch of canonical changes and
// returns the resulting delta. Markets referenced before any discovery are
// created lazily from the identity carried in the batch. An invariant
// violation halts the market and returns the violation.
func (s *Store) Apply(market schema.MarketInfo, changes []schema.LevelChange, now int64) (schema.BookDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[market.MarketID]
	created := false
	if !ok {
		b = newBook(market)
		s.books[market.MarketID] = b
		created = true
		obs.ActiveMarkets.Set(float64(len(s.books)))
	}
	if b.halted {
		return schema.BookDelta{}, ErrMarketHalted
	}

	upserted, removed := b.apply(changes, now)

	if err := b.checkInvariants(); err != nil {
		b.halted = true
		obs.HaltedMarkets.Inc()
		return schema.BookDelta{}, err
	}

	return schema.BookDelta{
		Market:    b.market,
		New:       created,
		Upserted:  upserted,
		Removed:   removed,
		Top:       b.top,
		TsApplied: now,
	}, nil
}

// Top returns the derived best-price fields for one market.
func (s *Store) Top(marketID string) (schema.TopOfBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[marketID]
	if !ok {
		return schema.TopOfBook{}, false
	}
	return b.top, true
}

// Market returns the identity of one known market.
func (s *Store) Market(marketID string) (schema.MarketInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[marketID]
	if !ok {
		return schema.MarketInfo{}, false
	}
	return b.market, true
}

// Markets lists the identities of all known markets, sorted by id.
func (s *Store) Markets() []schema.MarketInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.MarketInfo, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b.market)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// Halted reports whether a market stopped quoting after an invariant
// violation.
func (s *Store) Halted(marketID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[marketID]
	return ok && b.halted
}

// View returns a copy of one market's full book state.
func (s *Store) View(marketID string) (schema.BookSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[marketID]
	if !ok {
		return schema.BookSnapshot{}, false
	}
	return b.snapshot(), true
}

// Len returns the number of known markets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books)
}

// Snapshot captures every book for external persistence, sorted by market id.
func (s *Store) Snapshot() []schema.BookSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.BookSnapshot, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market.MarketID < out[j].Market.MarketID })
	return out
}

// Restore replaces all books with the given snapshots. Used to seed state on
// startup before the feed starts.
func (s *Store) Restore(snapshots []schema.BookSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = make(map[string]*Book, len(snapshots))
	for _, snap := range snapshots {
		b := newBook(snap.Market)
		b.halted = snap.Halted
		for _, lv := range snap.Levels {
			side := b.sideLevels(lv.Side)
			if side == nil || !lv.Price.Valid() || lv.Stake.Sign() <= 0 {
				continue
			}
			b.nextSeq++
			*side = append(*side, level{
				SelectionID:   lv.SelectionID,
				SelectionName: lv.SelectionName,
				Price:         lv.Price,
				Stake:         lv.Stake,
				Prob:          lv.Price.ImpliedProbability(),
				Seq:           b.nextSeq,
				UpdatedAt:     lv.UpdatedAt,
			})
		}
		b.resort()
		b.recomputeTop()
		b.lastUpdate = snap.LastUpdate
		s.books[snap.Market.MarketID] = b
	}
	obs.ActiveMarkets.Set(float64(len(s.books)))
}
