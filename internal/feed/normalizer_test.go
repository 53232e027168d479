package feed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

func TestNormalizeFlatSelections(t *testing.T) {
	n := NewNormalizer()

	raw := []byte(`{
		"_meta": {"change_type": "market_updated"},
		"sport_event_id": 9001,
		"market_id": "ml",
		"event_name": "Yankees @ Red Sox",
		"market_type": "moneyline",
		"selections": [
			[{"name": "Yankees", "odds": 140, "value": "250", "outcome_id": 11}],
			[{"name": "Yankees", "odds": 160, "value": "100", "outcome_id": 12}]
		]
	}`)

	updates := n.Normalize(raw)
	require.Len(t, updates, 1)

	u := updates[0]
	assert.True(t, u.Discovered)
	assert.Equal(t, "9001_ml", u.Market.MarketID)
	assert.Equal(t, "9001", u.Market.EventID)
	assert.Equal(t, schema.MarketTypeMoneyline, u.Market.Type)
	require.Len(t, u.Changes, 2)

	assert.Equal(t, schema.SideBack, u.Changes[0].Side)
	assert.Equal(t, schema.Odds(140), u.Changes[0].Price)
	assert.True(t, u.Changes[0].Stake.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "11", u.Changes[0].SelectionID)

	assert.Equal(t, schema.SideLay, u.Changes[1].Side)
	assert.Equal(t, schema.Odds(160), u.Changes[1].Price)

	// Second payload for the same market is no longer a discovery.
	updates = n.Normalize(raw)
	require.Len(t, updates, 1)
	assert.False(t, updates[0].Discovered)
}

func TestNormalizeNestedLinesFanOut(t *testing.T) {
	n := NewNormalizer()

	raw := []byte(`{
		"info": {"sport_event_id": "evt7", "market_id": "total", "market_type": "total"},
		"market_lines": [
			{"line": 8.5, "selections": [
				{"name": "Over", "odds": -110, "value": "50", "line_id": "o85"},
				{"name": "Under", "odds": -110, "value": "50", "line_id": "u85"}
			]},
			{"line": 9, "selections": [
				{"name": "Over", "odds": 120, "value": "30", "line_id": "o9"},
				{"name": "Under", "odds": -140, "value": "30", "line_id": "u9"}
			]}
		]
	}`)

	updates := n.Normalize(raw)
	require.Len(t, updates, 2)

	assert.Equal(t, "evt7_total_8.5", updates[0].Market.MarketID)
	assert.True(t, updates[0].Market.HasLine)
	assert.InDelta(t, 8.5, updates[0].Market.LineValue, 1e-9)
	assert.Equal(t, "evt7_total_9", updates[1].Market.MarketID)

	// A bare selection object parses the same as a one-element array, and
	// group parity assigns the sides.
	require.Len(t, updates[0].Changes, 2)
	assert.Equal(t, schema.SideBack, updates[0].Changes[0].Side)
	assert.Equal(t, schema.SideLay, updates[0].Changes[1].Side)
}

func TestNormalizePlaceholderOddsBecomeRemovals(t *testing.T) {
	n := NewNormalizer()

	raw := []byte(`{
		"sport_event_id": "evt1",
		"market_id": "ml",
		"selections": [[{"name": "Yankees", "odds": null, "value": "0", "outcome_id": 11}]]
	}`)

	updates := n.Normalize(raw)
	require.Len(t, updates, 1)
	require.Len(t, updates[0].Changes, 1)
	assert.Equal(t, schema.OddsNone, updates[0].Changes[0].Price)
	assert.True(t, updates[0].Changes[0].Removes())
}

func TestNormalizeMalformedPayloadsCounted(t *testing.T) {
	n := NewNormalizer()

	assert.Nil(t, n.Normalize([]byte(`not json`)))
	assert.Nil(t, n.Normalize([]byte(`{"_meta": {"change_type": "market_updated"}}`)))
	assert.EqualValues(t, 2, n.Malformed())

	// Selections without any usable id are dropped row by row.
	updates := n.Normalize([]byte(`{
		"sport_event_id": "evt1",
		"market_id": "ml",
		"selections": [[{"name": "Yankees", "odds": 140, "value": "10"}]]
	}`))
	assert.Nil(t, updates)
	assert.EqualValues(t, 3, n.Malformed())
}

func TestNormalizeFractionalOddsRound(t *testing.T) {
	n := NewNormalizer()

	updates := n.Normalize([]byte(`{
		"sport_event_id": "evt1",
		"market_id": "ml",
		"selections": [[{"name": "Yankees", "odds": -139.9, "value": "10", "outcome_id": 11}]]
	}`))
	require.Len(t, updates, 1)
	assert.Equal(t, schema.Odds(-140), updates[0].Changes[0].Price)
}

func TestParseWagerUpdate(t *testing.T) {
	n := NewNormalizer()

	update, ok := n.ParseWagerUpdate([]byte(`{
		"external_id": "w-123",
		"wager_id": 555,
		"status": "partially_matched",
		"matched_stake": "12.5"
	}`))
	require.True(t, ok)
	assert.Equal(t, "w-123", update.WagerID)
	assert.Equal(t, "555", update.VenueID)
	assert.Equal(t, schema.WagerStatePartiallyMatched, update.State)
	assert.True(t, update.MatchedStake.Equal(decimal.RequireFromString("12.5")))

	update, ok = n.ParseWagerUpdate([]byte(`{
		"external_id": "w-123",
		"status": "settled",
		"settled": true,
		"matched_stake": "50",
		"profit": "-7.25"
	}`))
	require.True(t, ok)
	assert.Equal(t, schema.WagerStateMatched, update.State)
	assert.True(t, update.Settled)
	assert.True(t, update.Profit.Equal(decimal.RequireFromString("-7.25")))

	_, ok = n.ParseWagerUpdate([]byte(`{"status": "open"}`))
	assert.False(t, ok)

	update, ok = n.ParseWagerUpdate([]byte(`{"external_id": "w-9", "status": "rejected"}`))
	require.True(t, ok)
	assert.Equal(t, schema.WagerStateRejected, update.State)
	assert.Equal(t, schema.RejectReasonVenueRejected, update.Reason)
}
