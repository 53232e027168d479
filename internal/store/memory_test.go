package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

func TestMemoryLoadBeforeSave(t *testing.T) {
	m := NewMemory()
	_, err := m.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestMemorySaveThenLoad(t *testing.T) {
	m := NewMemory()
	snap := schema.Snapshot{
		Timestamp: 1234,
		Positions: []schema.PositionSnapshot{
			{MarketID: "evt1_ml", EventID: "evt1", Net: decimal.NewFromInt(25)},
		},
		Risk: schema.RiskSnapshot{Day: "2026-03-01", DailyRealizedPnL: decimal.NewFromInt(-10)},
	}
	require.NoError(t, m.Save(context.Background(), snap))

	got, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), got.Timestamp)
	require.Len(t, got.Positions, 1)
	assert.True(t, got.Positions[0].Net.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, "2026-03-01", got.Risk.Day)
}

func TestMemoryLatestSaveWins(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Save(context.Background(), schema.Snapshot{Timestamp: 1}))
	require.NoError(t, m.Save(context.Background(), schema.Snapshot{Timestamp: 2}))

	got, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Timestamp)
	assert.NoError(t, m.Close())
}
