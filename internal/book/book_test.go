package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

func mlbMarket() schema.MarketInfo {
	return schema.MarketInfo{
		MarketID:  "evt1_ml",
		EventID:   "evt1",
		EventName: "Yankees @ Red Sox",
		Type:      schema.MarketTypeMoneyline,
	}
}

func change(side schema.Side, selection string, price schema.Odds, stake int64) schema.LevelChange {
	return schema.LevelChange{
		MarketID:    "evt1_ml",
		Side:        side,
		SelectionID: selection,
		Price:       price,
		Stake:       decimal.NewFromInt(stake),
	}
}

func TestTopOfBookSpreadAndMid(t *testing.T) {
	s := NewStore()

	delta, err := s.Apply(mlbMarket(), []schema.LevelChange{
		change(schema.SideBack, "b1", 140, 100),
		change(schema.SideLay, "l1", 160, 100),
	}, 1)
	require.NoError(t, err)
	require.True(t, delta.New)

	top, ok := s.Top("evt1_ml")
	require.True(t, ok)
	require.True(t, top.TwoSided())
	assert.Equal(t, schema.Odds(140), top.Bid.Price)
	assert.Equal(t, schema.Odds(160), top.Ask.Price)
	assert.Equal(t, schema.Odds(20), top.Spread)
	assert.InDelta(t, 150.0, top.Mid, 1e-9)
}

func TestBestBackIsHighestImpliedProbability(t *testing.T) {
	s := NewStore()

	// -120 implies 54.5%, +140 implies 41.7%; the -120 level is the better
	// back regardless of arrival order.
	_, err := s.Apply(mlbMarket(), []schema.LevelChange{
		change(schema.SideBack, "b1", 140, 100),
		change(schema.SideBack, "b2", -120, 50),
	}, 1)
	require.NoError(t, err)

	top, ok := s.Top("evt1_ml")
	require.True(t, ok)
	assert.Equal(t, "b2", top.Bid.SelectionID)
	assert.Equal(t, schema.Odds(-120), top.Bid.Price)
}

func TestEqualPricesKeepDiscoveryOrder(t *testing.T) {
	s := NewStore()

	_, err := s.Apply(mlbMarket(), []schema.LevelChange{
		change(schema.SideBack, "first", 140, 10),
		change(schema.SideBack, "second", 140, 20),
	}, 1)
	require.NoError(t, err)

	top, _ := s.Top("evt1_ml")
	assert.Equal(t, "first", top.Bid.SelectionID)

	// Updating the stake of the earlier level must not reorder the tie.
	_, err = s.Apply(mlbMarket(), []schema.LevelChange{
		change(schema.SideBack, "first", 140, 5),
	}, 2)
	require.NoError(t, err)
	top, _ = s.Top("evt1_ml")
	assert.Equal(t, "first", top.Bid.SelectionID)
}

func TestIdempotentReapply(t *testing.T) {
	s := NewStore()
	changes := []schema.LevelChange{
		change(schema.SideBack, "b1", 140, 100),
		change(schema.SideLay, "l1", 160, 100),
	}

	first, err := s.Apply(mlbMarket(), changes, 1)
	require.NoError(t, err)
	assert.Len(t, first.Upserted, 2)

	second, err := s.Apply(mlbMarket(), changes, 2)
	require.NoError(t, err)
	assert.True(t, second.Empty())

	view, _ := s.View("evt1_ml")
	assert.Len(t, view.Levels, 2)
	// Untouched books keep their original update time.
	assert.Equal(t, int64(1), view.LastUpdate)
}

func TestUnpricedChangeRemovesLevel(t *testing.T) {
	s := NewStore()
	_, err := s.Apply(mlbMarket(), []schema.LevelChange{
		change(schema.SideBack, "b1", 140, 100),
		change(schema.SideBack, "b2", 120, 100),
	}, 1)
	require.NoError(t, err)

	delta, err := s.Apply(mlbMarket(), []schema.LevelChange{
		change(schema.SideBack, "b1", schema.OddsNone, 0),
	}, 2)
	require.NoError(t, err)
	assert.Len(t, delta.Removed, 1)

	top, _ := s.Top("evt1_ml")
	assert.Equal(t, "b2", top.Bid.SelectionID)

	// Removing an absent level changes nothing.
	again, err := s.Apply(mlbMarket(), []schema.LevelChange{
		change(schema.SideBack, "b1", schema.OddsNone, 0),
	}, 3)
	require.NoError(t, err)
	assert.True(t, again.Empty())
}

func TestOneSidedBookIsNotTwoSided(t *testing.T) {
	s := NewStore()
	_, err := s.Apply(mlbMarket(), []schema.LevelChange{
		change(schema.SideBack, "b1", 140, 100),
	}, 1)
	require.NoError(t, err)

	top, ok := s.Top("evt1_ml")
	require.True(t, ok)
	assert.True(t, top.HasBid)
	assert.False(t, top.HasAsk)
	assert.False(t, top.TwoSided())
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewStore()
	_, err := s.Apply(mlbMarket(), []schema.LevelChange{
		change(schema.SideBack, "b1", 140, 100),
		change(schema.SideBack, "b2", 120, 40),
		change(schema.SideLay, "l1", 160, 100),
	}, 7)
	require.NoError(t, err)

	restored := NewStore()
	restored.Restore(s.Snapshot())

	require.Equal(t, 1, restored.Len())
	top, ok := restored.Top("evt1_ml")
	require.True(t, ok)
	// +120 implies 45.5%, so it is the better back of the two.
	assert.Equal(t, schema.Odds(120), top.Bid.Price)
	assert.Equal(t, schema.Odds(160), top.Ask.Price)
	original, _ := s.Top("evt1_ml")
	assert.Equal(t, original, top)

	view, _ := restored.View("evt1_ml")
	assert.Len(t, view.Levels, 3)
	assert.Equal(t, int64(7), view.LastUpdate)
	assert.False(t, restored.Halted("evt1_ml"))
}
