package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount of Indian rupees held as an integer count of paise.
// All arithmetic stays in integer paise; nothing in this package ever
// round-trips through binary floating point.
type Money struct {
	paise int64
}

// Zero is the zero amount.
var Zero = Money{}

// FromPaise builds a Money from a raw paise count.
func FromPaise(p int64) Money {
	return Money{paise: p}
}

// FromRupees builds a Money from a whole-rupee count.
func FromRupees(r int64) Money {
	return Money{paise: r * 100}
}

// Parse reads a decimal rupee string ("270", "270.50") into Money.
// More than two fractional digits is an error, not a rounding.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	p := d.Shift(2)
	if !p.IsInteger() {
		return Zero, fmt.Errorf("amount %q has sub-paise precision", s)
	}
	return Money{paise: p.IntPart()}, nil
}

// Paise returns the raw minor-unit count.
func (m Money) Paise() int64 {
	return m.paise
}

func (m Money) Add(o Money) Money {
	return Money{paise: m.paise + o.paise}
}

func (m Money) Sub(o Money) Money {
	return Money{paise: m.paise - o.paise}
}

// MulInt scales the amount by an integer quantity.
func (m Money) MulInt(n int64) Money {
	return Money{paise: m.paise * n}
}

// Scale multiplies by an arbitrary decimal rate and rounds half-up to the
// nearest paisa. Used for percentage discounts and loyalty rates; the
// rounding happens exactly once, at this call.
func (m Money) Scale(rate decimal.Decimal) Money {
	p := decimal.NewFromInt(m.paise).Mul(rate).Round(0)
	return Money{paise: p.IntPart()}
}

// Percent returns pct% of the amount, pct in [0,100].
func (m Money) Percent(pct decimal.Decimal) Money {
	return m.Scale(pct.Div(decimal.NewFromInt(100)))
}

func (m Money) Cmp(o Money) int {
	switch {
	case m.paise < o.paise:
		return -1
	case m.paise > o.paise:
		return 1
	}
	return 0
}

func (m Money) Equal(o Money) bool {
	return m.paise == o.paise
}

func (m Money) IsZero() bool {
	return m.paise == 0
}

func (m Money) IsNegative() bool {
	return m.paise < 0
}

// Decimal returns the amount in rupees as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.paise).Shift(-2)
}

// String formats the amount to two decimals for display. Presentation only;
// never parse this back.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Max returns the larger of a and b.
func Max(a, b Money) Money {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// MarshalJSON encodes the amount as a decimal rupee string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a decimal rupee string or bare number, with the same
// sub-paise rejection as Parse.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores Money as its raw paise count.
func (m Money) Value() (driver.Value, error) {
	return m.paise, nil
}

// Scan reads Money back from a raw paise count.
func (m *Money) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		m.paise = v
	case nil:
		m.paise = 0
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
	return nil
}
