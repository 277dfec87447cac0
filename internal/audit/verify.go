package audit

import (
	"fmt"

	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// Output keys of the aggregation step read back by VerifyTotals.
const (
	KeyTotalCost   = "total_cost"
	KeyTotalMarkup = "total_markup"
	KeyTotalSell   = "total_sell"
)

// Verification is the outcome of re-deriving a total from a trail.
type Verification struct {
	Valid      bool          `json:"valid"`
	Expected   pricing.Money `json:"expected"`
	Actual     pricing.Money `json:"actual"`
	Difference pricing.Money `json:"difference"`
	Reason     string        `json:"reason,omitempty"`
}

// VerifyTotals re-derives the total sell price from the trail's own
// aggregation step (cost plus markup) and compares it with expected within
// one cent.
func VerifyTotals(t Trail, expected pricing.Money) Verification {
	v := Verification{Expected: expected}
	step, ok := t.Find(StepQuoteAggregation)
	if !ok {
		v.Reason = "aggregation step missing"
		return v
	}
	cost, err := pricing.MoneyFromString(step.Outputs[KeyTotalCost])
	if err != nil {
		v.Reason = "aggregation total_cost unreadable"
		return v
	}
	markup, err := pricing.MoneyFromString(step.Outputs[KeyTotalMarkup])
	if err != nil {
		v.Reason = "aggregation total_markup unreadable"
		return v
	}
	actual, err := cost.Add(markup)
	if err != nil {
		v.Reason = err.Error()
		return v
	}
	v.Actual = actual
	diff, err := actual.Sub(expected)
	if err != nil {
		v.Reason = err.Error()
		return v
	}
	v.Difference = diff
	if !actual.WithinCent(expected) {
		v.Reason = fmt.Sprintf("derived total %s differs from expected %s", actual, expected)
		return v
	}
	v.Valid = true
	return v
}

// EnsureTotals is VerifyTotals as an error. A mismatch is non-retryable.
func EnsureTotals(t Trail, expected pricing.Money) error {
	v := VerifyTotals(t, expected)
	if v.Valid {
		return nil
	}
	return validation.NewCalcError(validation.CodeCalcVerificationFailed, v.Reason, nil)
}
