package billing

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative decimal quantity read leniently from JSON.
//
// Numbers and numeric strings are accepted. Anything else (null, booleans,
// objects, garbage strings, negative values, values above MaxAmount) becomes
// zero instead of failing the request.
type Amount struct {
	decimal.Decimal
}

// MaxAmount is the largest value a numeric(14,2) column holds.
var MaxAmount = decimal.RequireFromString("999999999999.99")

const (
	// maxScale is how many fractional digits input keeps.
	maxScale = 6
	// inputs written with exponents outside this range are rejected before
	// any arithmetic, since rescaling them costs time linear in the exponent
	minExponent = -64
	maxExponent = 12
)

func NewAmount(v float64) Amount {
	return Amount{decimal.NewFromFloat(v)}
}

// ParseAmount coerces s to an Amount using the same rules as JSON input.
func ParseAmount(s string) Amount {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return Amount{}
	}
	return bounded(d)
}

func bounded(d decimal.Decimal) Amount {
	if d.IsZero() {
		return Amount{}
	}
	exp := d.Exponent()
	if exp < minExponent || exp > maxExponent {
		return Amount{}
	}
	if exp < -maxScale {
		d = d.Round(maxScale)
	}
	if d.GreaterThan(MaxAmount) {
		return Amount{}
	}
	return Amount{d}
}

func (a Amount) Round2() Amount {
	return Amount{a.Round(2)}
}

// Format renders the amount with exactly two decimals.
func (a Amount) Format() string {
	return a.StringFixed(2)
}

// MarshalJSON writes at least two decimals, so money reads 25.00 while a
// quantity like 0.125 keeps its precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Exponent() >= -2 {
		return []byte(a.StringFixed(2)), nil
	}
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = Amount{}
			return nil
		}
		*a = ParseAmount(s)
		return nil
	}
	// null, true, {...} and [...] all fail to parse and end up as zero
	*a = ParseAmount(string(data))
	return nil
}
