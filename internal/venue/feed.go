package venue

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"github.com/doug4987/New-MM-Test/pkg/scanner"
)

const subscribeRequestID = 1

// FeedConfig points the feed at the venue's websocket endpoint.
type FeedConfig struct {
	URL         string   `json:"url"`
	AccessKey   string   `json:"-"`
	Tournaments []string `json:"tournaments"`
}

// Feed consumes the venue's market-update and wager-status streams.
// Reconnection and backoff live inside the websocket client; the feed's
// contract to the core is raw payloads in receive order.
type Feed struct {
	cfg FeedConfig
	wss *ws.WebSocket
}

// NewFeed creates a feed for the configured endpoint.
func NewFeed(ctx context.Context, cfg FeedConfig) *Feed {
	return &Feed{
		cfg: cfg,
		wss: ws.New(ctx, cfg.URL),
	}
}

// Start opens the websocket connection.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start venue feed")
	}
	return nil
}

// Close tears the connection down.
func (f *Feed) Close() {
	f.wss.Close()
}

type subscribeRequest struct {
	ID          int      `json:"id"`
	Action      string   `json:"action"`
	AccessKey   string   `json:"access_key,omitempty"`
	Tournaments []string `json:"tournaments,omitempty"`
	Channels    []string `json:"channels,omitempty"`
}

type subscribeResponse struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	Error  any    `json:"error"`
}

// Subscribe authenticates and subscribes to market updates and wager status
// for the configured tournaments, waiting for the venue's confirmation.
func (f *Feed) Subscribe(ctx context.Context) error {
	if err := f.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := subscribeRequest{
				ID:          subscribeRequestID,
				Action:      "subscribe",
				AccessKey:   f.cfg.AccessKey,
				Tournaments: f.cfg.Tournaments,
				Channels:    []string{"market_updates", "wager_updates"},
			}
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[subscribeResponse](m)
			if !ok || resp.ID != subscribeRequestID {
				return false, nil
			}
			if resp.Error != nil || resp.Status != "success" {
				return false, errors.Errorf("subscribe rejected, err: %+v", resp.Error)
			}
			return true, nil
		},
	}); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

// Observe delivers raw payload bytes to the handlers in receive order until
// ctx is done. The handlers own all parsing; the feed never inspects
// payloads beyond the channel tag, which is peeked without a full decode.
func (f *Feed) Observe(ctx context.Context, onMarket, onWager func(raw []byte)) (unsubscribe func()) {
	ch, cancel := f.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				dispatch(m, onMarket, onWager)
			}
		}
	}()

	return cancel
}

// dispatch routes one frame by its channel tag. The client may reuse the
// frame buffer, so the handlers get their own copy.
func dispatch(m ws.Message, onMarket, onWager func(raw []byte)) {
	raw := make([]byte, len(m.Data))
	copy(raw, m.Data)

	channel, _ := scanner.StringField(raw, "channel")
	switch string(channel) {
	case "wager_updates":
		onWager(raw)
	case "market_updates", "":
		// Frames without a channel tag are market payloads on this venue.
		onMarket(raw)
	default:
		logs.Debugf("ignore feed channel %q", channel)
	}
}
