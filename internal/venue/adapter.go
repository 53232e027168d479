// Package venue holds the adapters between the core and the external
// betting exchange: the websocket feed delivering market and wager updates,
// and the order adapter submitting and cancelling wagers.
package venue

import (
	"context"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

// Outcome classifies one submit or cancel attempt. A nil error with
// Accepted=false is a venue-side refusal; Permanent distinguishes refusals
// that retrying cannot fix. Transport failures are returned as errors and
// are always retry-eligible.
type Outcome struct {
	Accepted  bool
	Permanent bool
	VenueID   string
	Reason    string
}

// OrderAdapter submits and cancels wagers at the venue.
type OrderAdapter interface {
	Submit(ctx context.Context, w schema.Wager) (Outcome, error)
	Cancel(ctx context.Context, w schema.Wager) (Outcome, error)
}
