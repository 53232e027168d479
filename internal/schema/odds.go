package schema

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Odds is an American-format price. Valid values are >= +100 or <= -100.
// OddsNone marks an unpriced placeholder level published by the venue before
// odds are posted; such levels are absent from the book, never zero-priced.
type Odds int64

// OddsNone is the unpriced sentinel. Zero is never a valid American price.
const OddsNone Odds = 0

// Valid reports whether o is a priceable American odds value.
func (o Odds) Valid() bool {
	return o >= 100 || o <= -100
}

// ImpliedProbability converts the price to a 0-1 probability.
// Returns 0 for OddsNone and malformed values.
func (o Odds) ImpliedProbability() float64 {
	switch {
	case o >= 100:
		return 100.0 / (float64(o) + 100.0)
	case o <= -100:
		return float64(-o) / (float64(-o) + 100.0)
	default:
		return 0
	}
}

// PayoutMultiplier returns profit per unit stake at this price.
// +160 pays 1.6x the stake, -140 pays 100/140 of the stake.
func (o Odds) PayoutMultiplier() decimal.Decimal {
	switch {
	case o >= 100:
		return decimal.NewFromInt(int64(o)).Div(decimal.NewFromInt(100))
	case o <= -100:
		return decimal.NewFromInt(100).Div(decimal.NewFromInt(int64(-o)))
	default:
		return decimal.Zero
	}
}

// Widen moves the price away from the given market side by margin
// (e.g. 0.02 for 2%), producing a less aggressive quote. Back quotes move to
// a lower price, lay quotes to a higher one. The result is clamped so it
// never crosses into the invalid (-100, +100) band.
func (o Odds) Widen(side Side, margin float64) Odds {
	if !o.Valid() || margin <= 0 {
		return o
	}
	shift := int64(float64(abs64(int64(o)))*margin + 0.5)
	if shift < 1 {
		shift = 1
	}
	var out int64
	switch side {
	case SideBack:
		out = int64(o) - shift
	case SideLay:
		out = int64(o) + shift
	default:
		return o
	}
	// American odds skip the (-100, +100) band entirely.
	if out > -100 && out < 100 {
		if out >= 0 {
			out = 100
		} else {
			out = -100
		}
	}
	return Odds(out)
}

func (o Odds) String() string {
	if o > 0 {
		return "+" + strconv.FormatInt(int64(o), 10)
	}
	return strconv.FormatInt(int64(o), 10)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
