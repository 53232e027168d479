package book

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/bus"
	"github.com/doug4987/New-MM-Test/internal/obs"
	"github.com/doug4987/New-MM-Test/internal/schema"
)

// Batch is one market's worth of canonical changes from a single venue
// update payload.
type Batch struct {
	Market  schema.MarketInfo
	Changes []schema.LevelChange
}

// Engine applies canonical change batches to the store through per-market
// partitions: one consumer loop per partition keeps venue-delivery order per
// market while allowing cross-market parallelism. Every applied batch is
// published on the bus as an OrderBookUpdated event.
type Engine struct {
	store      *Store
	events     *bus.Bus
	partitions []chan Batch
	wg         sync.WaitGroup
}

// NewEngine creates an engine with the given partition count and per-
// partition queue depth.
func NewEngine(store *Store, events *bus.Bus, partitions, queueDepth int) *Engine {
	if partitions <= 0 {
		partitions = 1
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	e := &Engine{
		store:      store,
		events:     events,
		partitions: make([]chan Batch, partitions),
	}
	for i := range e.partitions {
		e.partitions[i] = make(chan Batch, queueDepth)
	}
	return e
}

// Run starts the partition consumer loops and blocks until ctx is done and
// all loops have stopped. The partition channels are never closed: the feed
// goroutine may still be inside Submit when the context is cancelled, and a
// late Submit must fail with ctx.Err rather than panic.
func (e *Engine) Run(ctx context.Context) {
	for i := range e.partitions {
		e.wg.Add(1)
		go e.runPartition(ctx, e.partitions[i])
	}
	e.wg.Wait()
}

// Submit hands a batch to its market's partition. The send blocks when the
// partition is saturated so backpressure reaches the feed, rather than
// silently reordering or dropping book updates.
func (e *Engine) Submit(ctx context.Context, batch Batch) error {
	if batch.Market.MarketID == "" || len(batch.Changes) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := e.partitions[e.partitionFor(batch.Market.MarketID)]
	select {
	case ch <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) partitionFor(marketID string) int {
	h := fnv.New32a()
	h.Write([]byte(marketID))
	return int(h.Sum32() % uint32(len(e.partitions)))
}

func (e *Engine) runPartition(ctx context.Context, ch chan Batch) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Apply what was already queued so a replayed or shutting-down
			// session does not truncate its books mid-batch.
			for {
				select {
				case batch := <-ch:
					e.applyBatch(batch)
				default:
					return
				}
			}
		case batch := <-ch:
			e.applyBatch(batch)
		}
	}
}

func (e *Engine) applyBatch(batch Batch) {
	start := time.Now()
	delta, err := e.store.Apply(batch.Market, batch.Changes, start.UTC().UnixNano())
	obs.BookApplySeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, ErrMarketHalted) {
			logs.Debugf("drop batch for halted market %s", batch.Market.MarketID)
			return
		}
		// Invariant violation: the store already halted the market; quoting
		// for it stops, the rest of the pipeline keeps running.
		logs.Errorf("order book corrupted, market %s halted, err: %+v", batch.Market.MarketID, err)
		return
	}

	countChanges(delta)
	if delta.Empty() {
		return
	}

	if err := e.events.Publish(schema.Event{
		Kind:     schema.EventOrderBookUpdated,
		MarketID: delta.Market.MarketID,
		Delta:    delta,
	}); err != nil {
		logs.Warnf("publish book delta, err: %+v", err)
	}
}

func countChanges(delta schema.BookDelta) {
	if n := len(delta.Upserted); n > 0 {
		obs.LevelChangesTotal.WithLabelValues("upsert").Add(float64(n))
	}
	if n := len(delta.Removed); n > 0 {
		obs.LevelChangesTotal.WithLabelValues("remove").Add(float64(n))
	}
}
