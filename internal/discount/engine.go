// Package discount validates discount codes against a stay and computes their
// reductions. Every discount is computed on its own base; stacked discounts
// never compound. Bases are built from pre-tax lines only.
package discount

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
)

var (
	// ErrUnknownCode is returned when no discount carries the requested code.
	ErrUnknownCode = errors.New("discount code not found")
	// ErrInactive is returned for switched-off discounts.
	ErrInactive = errors.New("discount not active")
	// ErrWrongResort is returned when the code belongs to another resort.
	ErrWrongResort = errors.New("discount not valid at this resort")
	// ErrOutsideValidity is returned when check-in falls outside the validity window.
	ErrOutsideValidity = errors.New("discount not valid for the check-in date")
	// ErrMinimumNightsUnmet indicates the stay is shorter than required.
	ErrMinimumNightsUnmet = errors.New("discount minimum nights not met")
	// ErrMaximumNightsExceeded indicates the stay is longer than allowed.
	ErrMaximumNightsExceeded = errors.New("discount maximum nights exceeded")
	// ErrBookingDateRequired is returned when a booking-window rule cannot be checked.
	ErrBookingDateRequired = errors.New("discount requires a booking date")
	// ErrBookingWindow indicates the booking date is outside the days-before-arrival window.
	ErrBookingWindow = errors.New("booking date outside discount booking window")
	// ErrBlackoutSeason is returned when the stay touches an excluded season.
	ErrBlackoutSeason = errors.New("discount excluded for this season")
	// ErrNotStackable is returned when a discount cannot combine with one already applied.
	ErrNotStackable = errors.New("discount not stackable with applied discounts")
	// ErrInvalidConfig is returned for structurally broken discount definitions.
	ErrInvalidConfig = errors.New("discount configuration invalid")
)

// Stay is the context discount eligibility is evaluated against.
type Stay struct {
	ResortID    string
	CheckIn     calendar.Date
	CheckOut    calendar.Date
	Nights      int
	BookingDate calendar.Date
	SeasonIDs   []string
}

// Base holds the pre-tax amounts a discount can be computed on. It has no
// tax component, so no discount base can include tax.
type Base struct {
	Room        pricing.Money
	ExtraPerson pricing.Money
	Components  pricing.Money
	Festive     pricing.Money
}

// For returns the base amount for d's base type.
func (b Base) For(d refdata.Discount) (pricing.Money, error) {
	if d.BaseType == refdata.BaseRoomOnly {
		return b.Room, nil
	}
	total, err := pricing.Sum(b.Room, b.ExtraPerson, b.Components)
	if err != nil {
		return pricing.Zero, err
	}
	if d.IncludeFestiveSupplements {
		return total.Add(b.Festive)
	}
	return total, nil
}

// Total returns the whole pre-tax subtotal.
func (b Base) Total() (pricing.Money, error) {
	return pricing.Sum(b.Room, b.ExtraPerson, b.Components, b.Festive)
}

// CheckConfig rejects definitions that cannot be computed.
func CheckConfig(d refdata.Discount) error {
	if d.Value.IsNegative() {
		return ErrInvalidConfig
	}
	switch d.DiscountType {
	case refdata.DiscountPercentage:
		if d.Value.GreaterThan(decimal.NewFromInt(100)) {
			return ErrInvalidConfig
		}
	case refdata.DiscountFixedAmount:
	default:
		return ErrInvalidConfig
	}
	if d.BaseType != refdata.BaseRoomOnly && d.BaseType != refdata.BasePreTaxTotal {
		return ErrInvalidConfig
	}
	if d.MinNights != nil && d.MaxNights != nil && *d.MinNights > *d.MaxNights {
		return ErrInvalidConfig
	}
	return nil
}

// Validate ensures d can be applied to the stay.
func Validate(d refdata.Discount, stay Stay) error {
	if !d.IsActive {
		return ErrInactive
	}
	if d.ResortID != "" && d.ResortID != stay.ResortID {
		return ErrWrongResort
	}
	if !calendar.OptionalWindow(stay.CheckIn, d.ValidFrom, d.ValidTo) {
		return ErrOutsideValidity
	}
	if d.MinNights != nil && stay.Nights < *d.MinNights {
		return ErrMinimumNightsUnmet
	}
	if d.MaxNights != nil && stay.Nights > *d.MaxNights {
		return ErrMaximumNightsExceeded
	}
	if d.MinDaysBeforeArrival != nil || d.MaxDaysBeforeArrival != nil {
		if stay.BookingDate.IsZero() {
			return ErrBookingDateRequired
		}
		days := stay.BookingDate.DaysUntil(stay.CheckIn)
		if d.MinDaysBeforeArrival != nil && days < *d.MinDaysBeforeArrival {
			return ErrBookingWindow
		}
		if d.MaxDaysBeforeArrival != nil && days > *d.MaxDaysBeforeArrival {
			return ErrBookingWindow
		}
	}
	for _, blocked := range d.BlackoutSeasonIDs {
		for _, sid := range stay.SeasonIDs {
			if blocked == sid {
				return ErrBlackoutSeason
			}
		}
	}
	return nil
}

// Stackable reports whether a and b each list the other in stackable_with.
func Stackable(a, b refdata.Discount) bool {
	return lists(a.StackableWith, b.Code) && lists(b.StackableWith, a.Code)
}

func lists(codes []string, code string) bool {
	for _, c := range codes {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(code)) {
			return true
		}
	}
	return false
}

// Compute returns the reduction d yields on base and whether it had to be
// clamped to the base.
func Compute(base pricing.Money, d refdata.Discount) (pricing.Money, bool, error) {
	if !base.IsPositive() {
		return pricing.Zero, false, nil
	}
	var (
		reduction pricing.Money
		err       error
	)
	switch d.DiscountType {
	case refdata.DiscountPercentage:
		reduction, err = base.Mul(d.Value.Div(decimal.NewFromInt(100)))
	default:
		reduction, err = pricing.NewMoney(d.Value)
	}
	if err != nil {
		return pricing.Zero, false, err
	}
	if reduction.GreaterThan(base) {
		return base, true, nil
	}
	if reduction.IsNegative() {
		return pricing.Zero, false, nil
	}
	return reduction, false, nil
}
