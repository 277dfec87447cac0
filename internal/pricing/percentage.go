package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidPercentage is returned for values outside [0, 100].
var ErrInvalidPercentage = errors.New("pricing: percentage must be between 0 and 100")

var hundred = decimal.NewFromInt(100)

// Percentage is a rate in the closed range [0, 100]. It is never interchangeable with Money.
type Percentage struct {
	d decimal.Decimal
}

// NewPercentage validates d.
func NewPercentage(d decimal.Decimal) (Percentage, error) {
	if d.IsNegative() || d.GreaterThan(hundred) {
		return Percentage{}, fmt.Errorf("%w: %s", ErrInvalidPercentage, d.String())
	}
	return Percentage{d: d}, nil
}

// PercentageFromString parses s, e.g. "12.5".
func PercentageFromString(s string) (Percentage, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Percentage{}, fmt.Errorf("%w: %q", ErrInvalidPercentage, s)
	}
	return NewPercentage(d)
}

// MustPercentage parses s and panics on error.
func MustPercentage(s string) Percentage {
	p, err := PercentageFromString(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Decimal returns the percentage value, e.g. 10 for 10%.
func (p Percentage) Decimal() decimal.Decimal { return p.d }

// Fraction returns the value divided by 100.
func (p Percentage) Fraction() decimal.Decimal { return p.d.Div(hundred) }

// IsZero reports whether the percentage is 0.
func (p Percentage) IsZero() bool { return p.d.IsZero() }

func (p Percentage) String() string { return p.d.String() }

// MarshalJSON encodes the value as a JSON string.
func (p Percentage) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.d.String())
}

// UnmarshalJSON accepts a JSON string or number.
func (p *Percentage) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPercentage, string(data))
	}
	parsed, err := NewPercentage(d)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
