package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrOverflow is returned when a result leaves the safe magnitude range.
	ErrOverflow = errors.New("pricing: value exceeds safe range")
	// ErrDivisionByZero is returned when a divisor is zero.
	ErrDivisionByZero = errors.New("pricing: division by zero")
	// ErrNonFinite is returned for NaN or infinite inputs.
	ErrNonFinite = errors.New("pricing: non-finite value")
	// ErrInvalidAmount is returned when a textual amount cannot be parsed.
	ErrInvalidAmount = errors.New("pricing: invalid amount")
)

// maxMagnitude bounds every amount handled by the engine (±10^12).
var maxMagnitude = decimal.New(1, 12)

// cent is the tolerance used when comparing derived totals.
var cent = decimal.New(1, -2)

// ArithmeticError reports a failed money operation together with its operands.
type ArithmeticError struct {
	Op    string
	Left  string
	Right string
	Err   error
}

// Error implements the error interface.
func (e *ArithmeticError) Error() string {
	if e == nil {
		return ""
	}
	if e.Right == "" {
		return fmt.Sprintf("pricing: %s(%s): %v", e.Op, e.Left, e.Err)
	}
	return fmt.Sprintf("pricing: %s(%s, %s): %v", e.Op, e.Left, e.Right, e.Err)
}

// Unwrap exposes the sentinel error.
func (e *ArithmeticError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Money is an exact decimal amount in the quote currency. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney validates d against the safe range.
func NewMoney(d decimal.Decimal) (Money, error) {
	if d.Abs().GreaterThan(maxMagnitude) {
		return Money{}, &ArithmeticError{Op: "new", Left: d.String(), Err: ErrOverflow}
	}
	return Money{d: d}, nil
}

// MoneyFromString parses a decimal string such as "650.00".
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return NewMoney(d)
}

// MoneyFromFloat converts f, rejecting NaN and infinities.
func MoneyFromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, &ArithmeticError{Op: "new", Left: fmt.Sprint(f), Err: ErrNonFinite}
	}
	return NewMoney(decimal.NewFromFloat(f))
}

// MoneyFromInt converts a whole amount.
func MoneyFromInt(n int64) (Money, error) {
	return NewMoney(decimal.NewFromInt(n))
}

// MustMoney parses s and panics on error. Intended for fixtures and tests.
func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String renders the exact value without rounding.
func (m Money) String() string { return m.d.String() }

// StringFixed renders the value rounded to places decimals.
func (m Money) StringFixed(places int32) string { return m.d.StringFixed(places) }

// IsZero reports whether m equals zero.
func (m Money) IsZero() bool { return m.d.IsZero() }

// IsNegative reports whether m is below zero.
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// IsPositive reports whether m is above zero.
func (m Money) IsPositive() bool { return m.d.IsPositive() }

// Cmp compares m and o.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// Equal reports exact equality.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// GreaterThan reports m > o.
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

// LessThan reports m < o.
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

// WithinCent reports whether m and o differ by at most one cent.
func (m Money) WithinCent(o Money) bool {
	return m.d.Sub(o.d).Abs().LessThanOrEqual(cent)
}

// Round rounds to the given number of decimal places. Only used when storing or displaying.
func (m Money) Round(places int32) Money { return Money{d: m.d.Round(places)} }

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	return checked("add", m.d, o.d, m.d.Add(o.d))
}

// Sub returns m - o. Intermediate negative results are allowed.
func (m Money) Sub(o Money) (Money, error) {
	return checked("sub", m.d, o.d, m.d.Sub(o.d))
}

// Mul returns m * factor.
func (m Money) Mul(factor decimal.Decimal) (Money, error) {
	return checked("mul", m.d, factor, m.d.Mul(factor))
}

// MulInt returns m * n.
func (m Money) MulInt(n int) (Money, error) {
	return m.Mul(decimal.NewFromInt(int64(n)))
}

// Div returns m / divisor.
func (m Money) Div(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, &ArithmeticError{Op: "div", Left: m.d.String(), Right: divisor.String(), Err: ErrDivisionByZero}
	}
	return checked("div", m.d, divisor, m.d.Div(divisor))
}

// ApplyPercentage returns p percent of m.
func (m Money) ApplyPercentage(p Percentage) (Money, error) {
	return m.Mul(p.Fraction())
}

// Neg returns -m.
func (m Money) Neg() Money { return Money{d: m.d.Neg()} }

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Sum adds all values, failing on the first out-of-range partial sum.
func Sum(values ...Money) (Money, error) {
	total := Zero
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Money{}, err
		}
		total = next
	}
	return total, nil
}

// Ratio returns part / whole as a decimal. It fails when whole is zero.
func Ratio(part, whole Money) (decimal.Decimal, error) {
	if whole.IsZero() {
		return decimal.Zero, &ArithmeticError{Op: "ratio", Left: part.String(), Right: whole.String(), Err: ErrDivisionByZero}
	}
	return part.d.Div(whole.d), nil
}

// PercentOf returns part / whole × 100, or 0 when whole is zero.
func PercentOf(part, whole Money) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.d.Div(whole.d).Mul(decimal.NewFromInt(100))
}

// MarshalJSON encodes the exact value as a JSON string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.d.String())
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	parsed, err := NewMoney(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func checked(op string, left, right, result decimal.Decimal) (Money, error) {
	if result.Abs().GreaterThan(maxMagnitude) {
		return Money{}, &ArithmeticError{Op: op, Left: left.String(), Right: right.String(), Err: ErrOverflow}
	}
	return Money{d: result}, nil
}
