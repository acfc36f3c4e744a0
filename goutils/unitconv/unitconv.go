// Package unitconv is the single conversion path between wei-scale integers
// and display-unit strings. No other package divides by 10^18 on its own.
package unitconv

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// NotAvailable is returned for malformed input on display paths instead of an error.
const NotAvailable = "N/A"

var (
	weiPerUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	ErrMalformedAmount = errors.New("malformed display amount")
)

// ToDisplay converts a wei-scale integer string to a display-unit string.
// The integer part is computed by integer division, the optional 2-digit
// fraction by modulo. Floating point is never involved.
func ToDisplay(weiStr string, withFraction bool) string {
	if weiStr == "" || weiStr == "0" {
		return "0"
	}

	wei, ok := new(big.Int).SetString(weiStr, 10)
	if !ok {
		return NotAvailable
	}

	return ToDisplayBig(wei, withFraction)
}

// ToDisplayBig is ToDisplay for amounts already held as *big.Int.
func ToDisplayBig(wei *big.Int, withFraction bool) string {
	if wei == nil {
		return NotAvailable
	}

	quo, rem := new(big.Int).QuoRem(wei, weiPerUnit, new(big.Int))
	if !withFraction {
		return quo.String()
	}

	rem.Abs(rem)
	cents := new(big.Int).Quo(new(big.Int).Mul(rem, big.NewInt(100)), weiPerUnit)

	return fmt.Sprintf("%s.%02d", quo.String(), cents.Int64())
}

// ParseDisplay converts a display-unit amount ("12.5") back to wei. At most
// 18 fractional digits are honored; anything beyond is rejected rather than
// silently truncated.
func ParseDisplay(amount string) (*big.Int, error) {
	amount = strings.ReplaceAll(strings.TrimSpace(amount), ",", ".")
	if amount == "" {
		return nil, ErrMalformedAmount
	}

	neg := false
	if strings.HasPrefix(amount, "-") {
		neg = true
		amount = amount[1:]
	}

	intPart := amount
	fracPart := ""

	if idx := strings.IndexByte(amount, '.'); idx >= 0 {
		intPart, fracPart = amount[:idx], amount[idx+1:]
	}

	if intPart == "" {
		intPart = "0"
	}

	if len(fracPart) > 18 {
		return nil, ErrMalformedAmount
	}

	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, ErrMalformedAmount
	}

	wei := new(big.Int).Mul(whole, weiPerUnit)

	if fracPart != "" {
		frac, ok := new(big.Int).SetString(fracPart+strings.Repeat("0", 18-len(fracPart)), 10)
		if !ok {
			return nil, ErrMalformedAmount
		}

		wei.Add(wei, frac)
	}

	if neg {
		wei.Neg(wei)
	}

	return wei, nil
}

// GroupThousands inserts space separators into the integer portion of a
// numeric string. A fractional suffix is passed through untouched.
func GroupThousands(numStr string) string {
	if numStr == "" {
		return "0"
	}

	intPart := numStr
	suffix := ""

	if idx := strings.IndexByte(numStr, '.'); idx >= 0 {
		intPart, suffix = numStr[:idx], numStr[idx:]
	}

	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}

	n := len(intPart)
	if n <= 3 {
		return sign + intPart + suffix
	}

	var b strings.Builder

	head := n % 3
	if head > 0 {
		b.WriteString(intPart[:head])
	}

	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(intPart[i : i+3])
	}

	return sign + b.String() + suffix
}
