package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/pkg/ws"
)

func TestDispatchRoutesByChannelTag(t *testing.T) {
	var markets, wagers [][]byte
	onMarket := func(raw []byte) { markets = append(markets, raw) }
	onWager := func(raw []byte) { wagers = append(wagers, raw) }

	dispatch(ws.Message{Data: []byte(`{"channel": "market_updates", "event_id": "evt1"}`)}, onMarket, onWager)
	dispatch(ws.Message{Data: []byte(`{"channel": "wager_updates", "external_id": "v-1"}`)}, onMarket, onWager)

	require.Len(t, markets, 1)
	require.Len(t, wagers, 1)
	assert.Contains(t, string(markets[0]), "evt1")
	assert.Contains(t, string(wagers[0]), "v-1")
}

func TestDispatchUntaggedFrameIsMarketPayload(t *testing.T) {
	var markets, wagers int
	dispatch(ws.Message{Data: []byte(`{"event_id": "evt1", "markets": []}`)},
		func([]byte) { markets++ }, func([]byte) { wagers++ })

	assert.Equal(t, 1, markets)
	assert.Equal(t, 0, wagers)
}

func TestDispatchIgnoresUnknownChannel(t *testing.T) {
	var calls int
	handler := func([]byte) { calls++ }
	dispatch(ws.Message{Data: []byte(`{"channel": "heartbeat"}`)}, handler, handler)

	assert.Equal(t, 0, calls)
}

func TestDispatchCopiesFrameBuffer(t *testing.T) {
	frame := []byte(`{"channel": "market_updates", "event_id": "evt1"}`)
	var got []byte
	dispatch(ws.Message{Data: frame}, func(raw []byte) { got = raw }, func([]byte) {})

	require.NotNil(t, got)
	frame[0] = 'X'
	assert.Equal(t, byte('{'), got[0])
}
