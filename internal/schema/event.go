package schema

// EventKind is the category of an event on the in-process bus.
type EventKind uint16

const (
	EventUnknown EventKind = iota
	EventOrderBookUpdated
	EventWagerStatusChanged
)

func (k EventKind) String() string {
	switch k {
	case EventOrderBookUpdated:
		return "order_book_updated"
	case EventWagerStatusChanged:
		return "wager_status_changed"
	default:
		return "unknown"
	}
}

// Event is the unit delivered to bus subscribers. Exactly one of the
// kind-specific groups is populated.
type Event struct {
	Kind     EventKind
	MarketID string

	// EventOrderBookUpdated
	Delta BookDelta

	// EventWagerStatusChanged
	WagerID    string
	WagerState WagerState
	Reason     RejectReason

	TsPublish int64
}
