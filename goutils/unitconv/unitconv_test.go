package unitconv

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDisplay(t *testing.T) {
	t.Run("integer part only", func(t *testing.T) {
		assert.Equal(t, "5000", ToDisplay("5000000000000000000000", false))
	})

	t.Run("with fraction via modulo", func(t *testing.T) {
		assert.Equal(t, "1.50", ToDisplay("1500000000000000000", true))
		assert.Equal(t, "0.01", ToDisplay("10000000000000000", true))
	})

	t.Run("fraction truncates, never rounds", func(t *testing.T) {
		// 1.999... keeps .99
		assert.Equal(t, "1.99", ToDisplay("1999999999999999999", true))
	})

	t.Run("zero and empty", func(t *testing.T) {
		assert.Equal(t, "0", ToDisplay("0", false))
		assert.Equal(t, "0", ToDisplay("", true))
	})

	t.Run("malformed input yields sentinel", func(t *testing.T) {
		assert.Equal(t, NotAvailable, ToDisplay("not-a-number", false))
		assert.Equal(t, NotAvailable, ToDisplay("12.5", true))
	})
}

func TestParseDisplayRoundTrip(t *testing.T) {
	cases := []string{
		"0",
		"1",
		"90",
		"5000",
		"123456789",
	}

	for _, c := range cases {
		wei, err := ParseDisplay(c)
		assert.NoError(t, err)
		assert.Equal(t, c, ToDisplayBig(wei, false))
	}
}

func TestParseDisplay(t *testing.T) {
	t.Run("fractional amount", func(t *testing.T) {
		wei, err := ParseDisplay("1.5")
		assert.NoError(t, err)
		assert.Equal(t, "1500000000000000000", wei.String())
	})

	t.Run("comma decimal separator", func(t *testing.T) {
		wei, err := ParseDisplay("2,25")
		assert.NoError(t, err)
		assert.Equal(t, "2250000000000000000", wei.String())
	})

	t.Run("too many fractional digits", func(t *testing.T) {
		_, err := ParseDisplay("1.0000000000000000001")
		assert.ErrorIs(t, err, ErrMalformedAmount)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseDisplay("abc")
		assert.ErrorIs(t, err, ErrMalformedAmount)
	})
}

func TestToDisplayBigNegative(t *testing.T) {
	wei, ok := new(big.Int).SetString("-1500000000000000000", 10)
	assert.True(t, ok)
	assert.Equal(t, "-1.50", ToDisplayBig(wei, true))
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "1 234 567", GroupThousands("1234567"))
	assert.Equal(t, "123", GroupThousands("123"))
	assert.Equal(t, "1 000.25", GroupThousands("1000.25"))
	assert.Equal(t, "-12 345", GroupThousands("-12345"))
	assert.Equal(t, "0", GroupThousands(""))
}
