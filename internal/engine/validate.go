package engine

import (
	"strconv"
	"strings"

	"github.com/noah-isme/atoll-quote/internal/audit"
	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/markup"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// validateInput runs the quote-level checks that need no pricing. Only an
// unusable exchange rate is returned as an error.
func (c *calculation) validateInput() error {
	in := c.input
	opts := c.engine.opts
	before := len(c.items)

	switch {
	case len(in.Legs) == 0:
		c.add(validation.NewBlocking(validation.CodeNoLegs, "quote has no legs"))
	case len(in.Legs) > opts.MaxLegs:
		c.add(validation.NewBlocking(validation.CodeTooManyLegs,
			"quote has %d legs, at most %d allowed", len(in.Legs), opts.MaxLegs).
			With("max_legs", strconv.Itoa(opts.MaxLegs)))
	}
	if in.ValidityDays < 0 || in.ValidityDays > opts.MaxValidityDays {
		c.add(validation.NewBlocking(validation.CodeInvalidValidityDays,
			"validity days must be between 1 and %d", opts.MaxValidityDays))
	}
	if err := c.lockCurrency(); err != nil {
		return err
	}
	c.add(markup.CheckOverride(in.MarkupOverride)...)

	for i, leg := range in.Legs {
		c.addForLeg(i, c.checkDates(leg)...)
	}
	c.checkSequence()
	c.checkTransferInputs()

	blocking := len(validation.BlockingOnly(c.items[before:]))
	c.trail.Record(audit.StepInputValidation, nil, map[string]string{
		"leg_count":       strconv.Itoa(len(in.Legs)),
		"currency_code":   in.CurrencyCode,
		"validity_days":   strconv.Itoa(c.validityDays()),
		"booking_date":    in.BookingDate.String(),
		"markup_override": strconv.FormatBool(in.MarkupOverride != nil),
		"transfer_count":  strconv.Itoa(len(in.InterResortTransfers)),
	}, map[string]string{
		"blocking": strconv.Itoa(blocking),
		"warnings": strconv.Itoa(len(c.items) - before - blocking),
	}, pricing.Zero)
	return nil
}

func (c *calculation) validityDays() int {
	if c.input.ValidityDays > 0 {
		return c.input.ValidityDays
	}
	return c.engine.opts.ValidityDays
}

// lockCurrency snapshots the quote currency. A currency whose rate cannot be
// used is a retryable failure: the reference data may be mid-refresh.
func (c *calculation) lockCurrency() error {
	code := strings.ToUpper(strings.TrimSpace(c.input.CurrencyCode))
	cur, ok := c.data.Currency(code)
	if !ok {
		c.add(validation.NewBlocking(validation.CodeCurrencyNotFound,
			"currency %q not found", c.input.CurrencyCode).With("currency_code", code))
		return nil
	}
	if !cur.ExchangeRateToBase.IsPositive() {
		return validation.NewCalcError(validation.CodeCalcFXLockFailed,
			"exchange rate for "+cur.Code+" is not positive", nil)
	}
	if cur.ExchangeRateToBase.LessThan(minExchangeRate) || cur.ExchangeRateToBase.GreaterThan(maxExchangeRate) {
		c.add(validation.NewWarning(validation.CodeExchangeRateExtreme,
			"exchange rate %s for %s is outside the expected range", cur.ExchangeRateToBase, cur.Code).
			With("currency_code", cur.Code))
	}
	c.currency = cur
	return nil
}

func (c *calculation) checkDates(leg LegInput) []validation.Item {
	opts := c.engine.opts
	if leg.CheckIn.IsZero() || leg.CheckOut.IsZero() {
		return []validation.Item{validation.NewBlocking(validation.CodeMissingDates, "check-in and check-out are required")}
	}
	nights := calendar.Nights(leg.CheckIn, leg.CheckOut)
	if nights <= 0 {
		return []validation.Item{validation.NewBlocking(validation.CodeInvalidDateRange,
			"check-out %s must be after check-in %s", leg.CheckOut, leg.CheckIn)}
	}
	var items []validation.Item
	if nights > opts.MaxStayNights {
		items = append(items, validation.NewBlocking(validation.CodeStayTooLong,
			"stay of %d nights exceeds %d", nights, opts.MaxStayNights).
			With("nights", strconv.Itoa(nights)))
	} else if nights > opts.LongStayNights {
		items = append(items, validation.NewWarning(validation.CodeLongStay,
			"stay of %d nights", nights).With("nights", strconv.Itoa(nights)))
	}
	if leg.CheckIn.Before(c.today) {
		items = append(items, validation.NewWarning(validation.CodeCheckInDatePassed,
			"check-in %s is in the past", leg.CheckIn).With("check_in", leg.CheckIn.String()))
	}
	return items
}

func datesUsable(leg LegInput) bool {
	return !leg.CheckIn.IsZero() && !leg.CheckOut.IsZero() && leg.CheckIn.Before(leg.CheckOut)
}

// checkSequence compares each leg with its predecessor in array order.
func (c *calculation) checkSequence() {
	legs := c.input.Legs
	for i := 1; i < len(legs); i++ {
		prev, cur := legs[i-1], legs[i]
		if !datesUsable(prev) || !datesUsable(cur) {
			continue
		}
		switch {
		case cur.CheckIn.Before(prev.CheckOut):
			c.addForLeg(i, validation.NewBlocking(validation.CodeLegDatesOverlap,
				"leg %d starts %s before leg %d ends %s", i+1, cur.CheckIn, i, prev.CheckOut))
		case cur.CheckIn.After(prev.CheckOut):
			gap := prev.CheckOut.DaysUntil(cur.CheckIn)
			c.addForLeg(i, validation.NewWarning(validation.CodeLegDateGap,
				"%d night gap before leg %d", gap, i+1).With("gap_days", strconv.Itoa(gap)))
		}
		if strings.EqualFold(prev.ResortID, cur.ResortID) {
			c.addForLeg(i, validation.NewWarning(validation.CodeSameResortConsecutiveLegs,
				"legs %d and %d are at the same resort", i, i+1).With("resort_id", cur.ResortID))
			continue
		}
		if !c.hasTransfer(i-1, i) {
			c.addForLeg(i, validation.NewWarning(validation.CodeInterResortTransferMissing,
				"no inter-resort transfer from leg %d to leg %d", i, i+1))
		}
	}
}

func (c *calculation) hasTransfer(from, to int) bool {
	for _, t := range c.input.InterResortTransfers {
		if t.FromLegIndex == from && t.ToLegIndex == to {
			return true
		}
	}
	return false
}

func (c *calculation) checkTransferInputs() {
	n := len(c.input.Legs)
	for j, t := range c.input.InterResortTransfers {
		idx := strconv.Itoa(j)
		if t.FromLegIndex < 0 || t.FromLegIndex >= n || t.ToLegIndex < 0 || t.ToLegIndex >= n || t.FromLegIndex == t.ToLegIndex {
			c.add(validation.NewBlocking(validation.CodeInvalidTransferLegIndex,
				"transfer %d references legs %d -> %d", j, t.FromLegIndex, t.ToLegIndex).
				With("transfer_index", idx))
			continue
		}
		if _, ok := c.data.TransferType(t.TransferTypeID); !ok {
			c.add(validation.NewBlocking(validation.CodeInterResortTransferTypeNotFound,
				"inter-resort transfer type %q not found", t.TransferTypeID).
				With("transfer_index", idx).With("transfer_type_id", t.TransferTypeID))
		}
	}
}
