package discount

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// Catalog is the reference data the discount engine reads.
type Catalog interface {
	DiscountsByCode(code string) []refdata.Discount
}

// Applied is a discount that survived eligibility and stacking.
type Applied struct {
	DiscountID   string               `json:"discount_id"`
	Name         string               `json:"name"`
	Code         string               `json:"code"`
	DiscountType refdata.DiscountType `json:"discount_type"`
	BaseType     refdata.BaseType     `json:"base_type"`
	Value        decimal.Decimal      `json:"value"`
	BaseAmount   pricing.Money        `json:"base_amount"`
	Reduction    pricing.Breakdown    `json:"reduction"`
	Clamped      bool                 `json:"clamped"`

	includeFestive bool
}

// Result is the outcome of the discount stage.
type Result struct {
	Applied   []Applied
	TotalCost pricing.Money
}

// Apply resolves, validates, stacks and computes the requested codes in
// request order. Ineligible discounts are dropped with a warning; a broken
// definition is blocking.
func Apply(cat Catalog, codes []string, stay Stay, base Base) (Result, []validation.Item, error) {
	var (
		res   = Result{TotalCost: pricing.Zero}
		items []validation.Item
		kept  []refdata.Discount
	)
	seen := map[string]bool{}
	for _, raw := range codes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" {
			continue
		}
		if seen[code] {
			items = append(items, validation.NewWarning(validation.CodeDuplicateDiscountCode,
				"discount code %s requested more than once", code).With("code", code))
			continue
		}
		seen[code] = true

		d, err := lookup(cat, code, stay.ResortID)
		if err != nil {
			items = append(items, removed(code, err))
			continue
		}
		if err := CheckConfig(d); err != nil {
			items = append(items, validation.NewBlocking(validation.CodeDiscountConfigInvalid,
				"discount %s is misconfigured", code).With("code", code).With("discount_id", d.ID))
			continue
		}
		if err := Validate(d, stay); err != nil {
			items = append(items, removed(code, err))
			continue
		}
		stackable := true
		for _, k := range kept {
			if !Stackable(k, d) {
				stackable = false
				break
			}
		}
		if !stackable {
			items = append(items, removed(code, ErrNotStackable))
			continue
		}
		kept = append(kept, d)
	}

	for _, d := range kept {
		amount, err := base.For(d)
		if err != nil {
			return Result{}, items, err
		}
		reduction, clamped, err := Compute(amount, d)
		if err != nil {
			return Result{}, items, err
		}
		if clamped {
			items = append(items, validation.NewWarning(validation.CodeDiscountExceedsBase,
				"discount %s exceeds its base and was limited to %s", d.Code, amount.StringFixed(2)).With("code", d.Code))
		}
		res.Applied = append(res.Applied, Applied{
			DiscountID:     d.ID,
			Name:           d.Name,
			Code:           d.Code,
			DiscountType:   d.DiscountType,
			BaseType:       d.BaseType,
			Value:          d.Value,
			BaseAmount:     amount,
			Reduction:      pricing.CostOnly(reduction),
			Clamped:        clamped,
			includeFestive: d.IncludeFestiveSupplements,
		})
	}

	// The summed reductions may not exceed the pre-tax subtotal.
	remaining, err := base.Total()
	if err != nil {
		return Result{}, items, err
	}
	for i := range res.Applied {
		a := &res.Applied[i]
		if a.Reduction.Cost.GreaterThan(remaining) {
			a.Reduction = pricing.CostOnly(remaining)
			a.Clamped = true
			items = append(items, validation.NewWarning(validation.CodeDiscountExceedsBase,
				"combined discounts exceed the pre-tax subtotal, %s limited", a.Code).With("code", a.Code))
		}
		if remaining, err = remaining.Sub(a.Reduction.Cost); err != nil {
			return Result{}, items, err
		}
		if res.TotalCost, err = res.TotalCost.Add(a.Reduction.Cost); err != nil {
			return Result{}, items, err
		}
	}
	return res, items, nil
}

// ApplyMarkup sets each discount's markup reduction to the same share of the
// markup carried by its base lines as its cost reduction is of the base cost.
func (r *Result) ApplyMarkup(markup Base) (pricing.Money, error) {
	total := pricing.Zero
	for i := range r.Applied {
		a := &r.Applied[i]
		if a.Reduction.Cost.IsZero() || !a.BaseAmount.IsPositive() {
			continue
		}
		baseMarkup, err := markup.For(refdata.Discount{BaseType: a.BaseType, IncludeFestiveSupplements: a.includeFestive})
		if err != nil {
			return pricing.Zero, err
		}
		share, err := pricing.Ratio(a.Reduction.Cost, a.BaseAmount)
		if err != nil {
			return pricing.Zero, err
		}
		m, err := baseMarkup.Mul(share)
		if err != nil {
			return pricing.Zero, err
		}
		if a.Reduction, err = a.Reduction.WithMarkup(m); err != nil {
			return pricing.Zero, err
		}
		if total, err = total.Add(m); err != nil {
			return pricing.Zero, err
		}
	}
	return total, nil
}

func lookup(cat Catalog, code, resortID string) (refdata.Discount, error) {
	candidates := cat.DiscountsByCode(code)
	if len(candidates) == 0 {
		return refdata.Discount{}, ErrUnknownCode
	}
	var global *refdata.Discount
	for i := range candidates {
		switch candidates[i].ResortID {
		case resortID:
			return candidates[i], nil
		case "":
			global = &candidates[i]
		}
	}
	if global != nil {
		return *global, nil
	}
	return refdata.Discount{}, ErrWrongResort
}

func removed(code string, reason error) validation.Item {
	return validation.NewWarning(validation.CodeDiscountAutoRemoved,
		"discount %s removed: %v", code, reason).With("code", code).With("reason", reasonKey(reason))
}

func reasonKey(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCode):
		return "UNKNOWN_CODE"
	case errors.Is(err, ErrInactive):
		return "INACTIVE"
	case errors.Is(err, ErrWrongResort):
		return "WRONG_RESORT"
	case errors.Is(err, ErrOutsideValidity):
		return "OUTSIDE_VALIDITY"
	case errors.Is(err, ErrMinimumNightsUnmet):
		return "MIN_NIGHTS"
	case errors.Is(err, ErrMaximumNightsExceeded):
		return "MAX_NIGHTS"
	case errors.Is(err, ErrBookingDateRequired), errors.Is(err, ErrBookingWindow):
		return "BOOKING_WINDOW"
	case errors.Is(err, ErrBlackoutSeason):
		return "BLACKOUT_SEASON"
	case errors.Is(err, ErrNotStackable):
		return "NOT_STACKABLE"
	default:
		return "NOT_ELIGIBLE"
	}
}
