package schema

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOddsValid(t *testing.T) {
	assert.True(t, Odds(100).Valid())
	assert.True(t, Odds(-100).Valid())
	assert.True(t, Odds(140).Valid())
	assert.True(t, Odds(-2500).Valid())
	assert.False(t, OddsNone.Valid())
	assert.False(t, Odds(99).Valid())
	assert.False(t, Odds(-99).Valid())
}

func TestImpliedProbability(t *testing.T) {
	assert.InDelta(t, 100.0/240.0, Odds(140).ImpliedProbability(), 1e-9)
	assert.InDelta(t, 0.6, Odds(-150).ImpliedProbability(), 1e-9)
	assert.InDelta(t, 0.5, Odds(100).ImpliedProbability(), 1e-9)
	assert.InDelta(t, 0.5, Odds(-100).ImpliedProbability(), 1e-9)
	assert.Zero(t, OddsNone.ImpliedProbability())
}

func TestPayoutMultiplier(t *testing.T) {
	assert.True(t, Odds(160).PayoutMultiplier().Equal(decimal.NewFromFloat(1.6)))
	want := decimal.NewFromInt(100).Div(decimal.NewFromInt(140))
	assert.True(t, Odds(-140).PayoutMultiplier().Equal(want))
	assert.True(t, OddsNone.PayoutMultiplier().IsZero())
}

func TestWiden(t *testing.T) {
	// 2% of 140 rounds to 3.
	assert.Equal(t, Odds(137), Odds(140).Widen(SideBack, 0.02))
	assert.Equal(t, Odds(143), Odds(140).Widen(SideLay, 0.02))

	// Never lands inside the (-100, +100) band.
	assert.Equal(t, Odds(100), Odds(101).Widen(SideBack, 0.02))
	assert.Equal(t, Odds(-100), Odds(-101).Widen(SideLay, 0.02))

	// Unpriced and zero-margin inputs pass through.
	assert.Equal(t, OddsNone, OddsNone.Widen(SideBack, 0.02))
	assert.Equal(t, Odds(140), Odds(140).Widen(SideBack, 0))
}

func TestWagerImpliedExposure(t *testing.T) {
	back := Wager{Side: SideBack, Price: 140, Stake: decimal.NewFromInt(50)}
	assert.True(t, back.ImpliedExposure().Equal(decimal.NewFromInt(50)))

	lay := Wager{Side: SideLay, Price: 160, Stake: decimal.NewFromInt(50)}
	assert.True(t, lay.ImpliedExposure().Equal(decimal.NewFromInt(80)))
}

func TestWagerNetEffect(t *testing.T) {
	filled := decimal.NewFromInt(25)
	back := Wager{Side: SideBack}
	lay := Wager{Side: SideLay}
	assert.True(t, back.NetEffect(filled).Equal(filled))
	assert.True(t, lay.NetEffect(filled).Equal(filled.Neg()))
}
