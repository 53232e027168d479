// Package recorder captures the raw venue stream as JSON lines and replays
// it with the original pacing, so a session can be rerun through the whole
// pipeline offline.
package recorder

import (
	"encoding/json"
	"time"
)

// Record is one captured stream payload. Ts is the local receive time in
// unix nanoseconds; pacing on replay derives from Ts deltas.
type Record struct {
	Ts      int64           `json:"ts"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

const (
	ChannelMarketUpdates = "market_updates"
	ChannelWagerUpdates  = "wager_updates"
)

// Now is the timestamp source for captured records.
func Now() int64 {
	return time.Now().UnixNano()
}
