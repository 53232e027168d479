package schema

import "strings"

// MarketType classifies a tradable line.
type MarketType uint16

const (
	MarketTypeUnknown MarketType = iota
	MarketTypeMoneyline
	MarketTypeSpread
	MarketTypeTotal
	MarketTypeOther
)

// ParseMarketType maps a venue market-type string to a MarketType.
// Unrecognized non-empty values map to MarketTypeOther.
func ParseMarketType(s string) MarketType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "moneyline":
		return MarketTypeMoneyline
	case "spread":
		return MarketTypeSpread
	case "total", "totals":
		return MarketTypeTotal
	case "":
		return MarketTypeUnknown
	default:
		return MarketTypeOther
	}
}

func (t MarketType) String() string {
	switch t {
	case MarketTypeMoneyline:
		return "moneyline"
	case MarketTypeSpread:
		return "spread"
	case MarketTypeTotal:
		return "total"
	case MarketTypeOther:
		return "other"
	default:
		return "unknown"
	}
}

// MarketInfo identifies one tradable line. Identity is immutable once created.
type MarketInfo struct {
	MarketID  string     `json:"marketId"`
	EventID   string     `json:"eventId"`
	EventName string     `json:"eventName"`
	Type      MarketType `json:"marketType"`
	LineValue float64    `json:"lineValue,omitempty"`
	HasLine   bool       `json:"hasLine,omitempty"`
}

// Side describes which way a price level faces. Back is willing to take the
// proposed price, lay is willing to offer against it.
type Side uint16

const (
	SideUnknown Side = iota
	SideBack
	SideLay
)

func (s Side) String() string {
	switch s {
	case SideBack:
		return "back"
	case SideLay:
		return "lay"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	switch s {
	case SideBack:
		return SideLay
	case SideLay:
		return SideBack
	default:
		return SideUnknown
	}
}
