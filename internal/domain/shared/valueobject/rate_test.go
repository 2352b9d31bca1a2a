package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateFromPercent(t *testing.T) {
	t.Run("parses a percentage", func(t *testing.T) {
		r, err := NewRateFromPercent("9.5")
		require.NoError(t, err)
		assert.True(t, r.Fraction().Equal(decimal.RequireFromString("0.095")))
		assert.Equal(t, "9.5%", r.String())
	})

	t.Run("rejects out of range values", func(t *testing.T) {
		_, err := NewRateFromPercent("-1")
		assert.Error(t, err)
		_, err = NewRateFromPercent("150")
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := NewRateFromPercent("abc")
		assert.Error(t, err)
	})
}

func TestRateOf(t *testing.T) {
	r := MustRateFromPercent("9.5")
	assert.True(t, r.Of(MustMoney("20000", XAF)).Equals(MustMoney("1900", XAF)))
	assert.True(t, r.Of(MustMoney("15", XAF)).Equals(MustMoney("1", XAF)))
	assert.True(t, ZeroRate().Of(MustMoney("20000", XAF)).IsZero())
	assert.True(t, ZeroRate().IsZero())
}
