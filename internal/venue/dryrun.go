package venue

import (
	"context"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

// DryRunAdapter simulates venue acceptance without any network call. Every
// wager still flows through the same state machine, so dry-run behavior is
// observationally identical to live mode.
type DryRunAdapter struct{}

// NewDryRunAdapter creates the no-op adapter.
func NewDryRunAdapter() *DryRunAdapter {
	return &DryRunAdapter{}
}

func (a *DryRunAdapter) Submit(_ context.Context, w schema.Wager) (Outcome, error) {
	venueID := "dry-" + uuid.NewString()
	logs.Debugf("dry-run submit wager %s on %s: %s @ %s", w.ID, w.MarketID, w.Stake, w.Price)
	return Outcome{Accepted: true, VenueID: venueID}, nil
}

func (a *DryRunAdapter) Cancel(_ context.Context, w schema.Wager) (Outcome, error) {
	logs.Debugf("dry-run cancel wager %s", w.ID)
	return Outcome{Accepted: true, VenueID: w.VenueID}, nil
}
