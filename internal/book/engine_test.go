package book

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doug4987/New-MM-Test/internal/bus"
	"github.com/doug4987/New-MM-Test/internal/schema"
)

func TestEngineAppliesAndPublishes(t *testing.T) {
	events := bus.New()
	defer events.Close()
	sub := events.Subscribe("test", 4)

	store := NewStore()
	engine := NewEngine(store, events, 2, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Run(ctx)
	}()

	require.NoError(t, engine.Submit(ctx, Batch{
		Market: mlbMarket(),
		Changes: []schema.LevelChange{
			change(schema.SideBack, "b1", 140, 100),
		},
	}))

	select {
	case event := <-sub.Events():
		assert.Equal(t, schema.EventOrderBookUpdated, event.Kind)
		assert.Equal(t, "evt1_ml", event.MarketID)
	case <-time.After(2 * time.Second):
		t.Fatal("no book event published")
	}

	top, ok := store.Top("evt1_ml")
	require.True(t, ok)
	assert.Equal(t, schema.Odds(140), top.Bid.Price)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestSubmitAfterShutdownFailsCleanly(t *testing.T) {
	events := bus.New()
	defer events.Close()

	engine := NewEngine(NewStore(), events, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}

	// A feed goroutine can still be mid-submit when shutdown starts; the
	// call must surface the cancellation instead of panicking.
	batch := Batch{
		Market:  mlbMarket(),
		Changes: []schema.LevelChange{change(schema.SideBack, "b1", 140, 100)},
	}
	var err error
	assert.NotPanics(t, func() {
		for i := 0; i < 3; i++ {
			err = engine.Submit(ctx, batch)
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
}
