package engine

import (
	"strconv"

	"github.com/noah-isme/atoll-quote/internal/audit"
	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/components"
	"github.com/noah-isme/atoll-quote/internal/markup"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// priceTransfers prices the inter-resort transfers once every leg is priced.
// They use the from-leg's party and markup and carry no tax.
func (c *calculation) priceTransfers(legs []LegResult) ([]TransferResult, error) {
	out := make([]TransferResult, 0, len(c.input.InterResortTransfers))
	override := c.input.MarkupOverride != nil
	for _, t := range c.input.InterResortTransfers {
		tt, ok := c.data.TransferType(t.TransferTypeID)
		if !ok {
			continue
		}
		from := legs[t.FromLegIndex]
		guests := from.Guests()
		cost, err := components.GuestCost(tt.GuestPricing, guests, 1)
		if err != nil {
			return nil, err
		}
		applier, items := markup.NewApplier(c.data, from.Resort.ID, override)
		if applier == nil {
			c.addForLeg(t.FromLegIndex, items...)
			continue
		}
		b, err := applier.Apply(string(refdata.ComponentInterResortTransfer), false, pricing.CostOnly(cost))
		if err != nil {
			return nil, err
		}
		legIdx := t.FromLegIndex
		c.trail.Record(audit.StepInterResortTransfer, &legIdx, map[string]string{
			"from_leg_index":   strconv.Itoa(t.FromLegIndex),
			"to_leg_index":     strconv.Itoa(t.ToLegIndex),
			"transfer_type_id": tt.ID,
			"pricing_mode":     string(tt.PricingMode),
			"guests":           strconv.Itoa(guests.Total()),
		}, map[string]string{
			"cost":   b.Cost.String(),
			"markup": b.Markup.String(),
			"sell":   b.Sell.String(),
		}, b.Sell)
		out = append(out, TransferResult{
			FromLegIndex:   t.FromLegIndex,
			ToLegIndex:     t.ToLegIndex,
			TransferTypeID: tt.ID,
			Name:           tt.Name,
			PricingMode:    string(tt.PricingMode),
			Adults:         guests.Adults,
			Children:       len(guests.Children),
			Pricing:        b,
		})
	}
	return out, nil
}

// aggregate sums legs and transfers into the quote totals, applies the
// quote-level override and records the aggregation step VerifyTotals reads.
func (c *calculation) aggregate(res *Result) error {
	parts := make([]pricing.Breakdown, 0, len(res.Legs)+len(res.InterResortTransfers))
	taxTotal, discountTotal := pricing.Zero, pricing.Zero
	var err error
	for _, leg := range res.Legs {
		parts = append(parts, leg.Totals)
		if taxTotal, err = taxTotal.Add(leg.Subtotals.Tax); err != nil {
			return err
		}
		if discountTotal, err = discountTotal.Add(leg.Subtotals.Discount.Cost); err != nil {
			return err
		}
	}
	for _, t := range res.InterResortTransfers {
		parts = append(parts, t.Pricing)
	}
	sum, err := pricing.SumBreakdowns(parts...)
	if err != nil {
		return err
	}

	totalMarkup := sum.Markup
	if o := c.input.MarkupOverride; o != nil {
		c.trail.Record(audit.StepQuoteMarkupOverride, nil, map[string]string{
			"type":   string(o.Type),
			"amount": o.Amount.String(),
		}, map[string]string{
			"line_item_markup_total": sum.Markup.String(),
		}, o.Amount)
		c.add(validation.NewWarning(validation.CodeQuoteLevelMarkupApplied,
			"quote-level markup of %s replaces line markup", o.Amount).With("amount", o.Amount.String()))
		totalMarkup = o.Amount
		override := *o
		res.MarkupOverride = &override
	}
	totals, err := pricing.NewBreakdown(sum.Cost, totalMarkup)
	if err != nil {
		return err
	}
	if totals.IsNegative() {
		return validation.NewCalcError(validation.CodeCalcNegativeFinalAmount,
			"quote total "+totals.Sell.String()+" is negative", nil)
	}
	markupPct := pricing.PercentOf(totals.Markup, totals.Cost)
	marginPct := pricing.PercentOf(totals.Markup, totals.Sell)

	switch {
	case totals.Markup.IsZero():
		c.add(validation.NewWarning(validation.CodeZeroMarkup, "quote carries no markup"))
	case c.engine.lowMargin.IsPositive() && marginPct.LessThan(c.engine.lowMargin):
		c.add(validation.NewWarning(validation.CodeLowMargin,
			"margin %s%% is below %s%%", marginPct.StringFixed(2), c.engine.lowMargin).
			With("margin_percentage", marginPct.StringFixed(2)))
	}

	validUntil := c.today.AddDays(c.validityDays())
	if len(res.Legs) > 0 && validUntil.After(res.Legs[0].CheckIn) {
		c.add(validation.NewWarning(validation.CodeQuoteValidityExceedsCheckIn,
			"quote valid until %s, after check-in %s", validUntil, res.Legs[0].CheckIn).
			With("valid_until", validUntil.String()))
	}
	c.checkRateValidity(res.Legs, validUntil)

	c.trail.Record(audit.StepQuoteAggregation, nil, map[string]string{
		"leg_count":      strconv.Itoa(len(res.Legs)),
		"transfer_count": strconv.Itoa(len(res.InterResortTransfers)),
	}, map[string]string{
		audit.KeyTotalCost:   totals.Cost.String(),
		audit.KeyTotalMarkup: totals.Markup.String(),
		audit.KeyTotalSell:   totals.Sell.String(),
		"markup_percentage":  markupPct.String(),
		"margin_percentage":  marginPct.String(),
	}, totals.Sell)

	res.Taxes, err = summariseTaxes(res.Legs)
	if err != nil {
		return err
	}
	res.Totals = Totals{
		TotalCost:        totals.Cost,
		TotalMarkup:      totals.Markup,
		TotalSell:        totals.Sell,
		TaxTotal:         taxTotal,
		DiscountTotal:    discountTotal,
		MarkupPercentage: markupPct,
		MarginPercentage: marginPct,
	}
	res.ValidUntil = validUntil
	return nil
}

// checkRateValidity warns once per rate whose validity ends before the quote does.
func (c *calculation) checkRateValidity(legs []LegResult, validUntil calendar.Date) {
	for _, leg := range legs {
		seen := map[string]bool{}
		for _, n := range leg.NightlyRates {
			if n.RateValidTo.IsZero() || !n.RateValidTo.Before(validUntil) || seen[n.RateID] {
				continue
			}
			seen[n.RateID] = true
			c.addForLeg(leg.Index, validation.NewWarning(validation.CodeRateValidityEnding,
				"rate %s expires %s, before the quote does", n.RateID, n.RateValidTo).
				With("rate_id", n.RateID).With("valid_until", validUntil.String()))
		}
	}
}

func summariseTaxes(legs []LegResult) ([]TaxSummary, error) {
	var out []TaxSummary
	pos := map[refdata.TaxType]int{}
	for _, leg := range legs {
		for _, line := range leg.Taxes {
			i, ok := pos[line.TaxType]
			if !ok {
				pos[line.TaxType] = len(out)
				out = append(out, TaxSummary{TaxType: line.TaxType})
				i = len(out) - 1
			}
			sum, err := out[i].Pricing.Add(line.Pricing)
			if err != nil {
				return nil, err
			}
			out[i].Pricing = sum
		}
	}
	return out, nil
}
