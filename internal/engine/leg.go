package engine

import (
	"strconv"
	"strings"

	"github.com/noah-isme/atoll-quote/internal/audit"
	"github.com/noah-isme/atoll-quote/internal/components"
	"github.com/noah-isme/atoll-quote/internal/discount"
	"github.com/noah-isme/atoll-quote/internal/markup"
	"github.com/noah-isme/atoll-quote/internal/occupancy"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/season"
	"github.com/noah-isme/atoll-quote/internal/tax"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// priceLeg runs the leg pipeline. ok is false when a stage produced a
// blocking item; later stages are then skipped for this leg only.
func (c *calculation) priceLeg(i int) (LegResult, bool, error) {
	in := c.input.Legs[i]
	legIdx := &i

	resort, rt, ok := c.resolveProperty(i, in)
	if !ok {
		return LegResult{}, false, nil
	}

	children, items := occupancy.ResolveChildren(c.data, in.Children)
	items = append(items, occupancy.CheckOccupancy(rt, in.Adults, len(in.Children))...)
	if !c.keep(i, items) {
		return LegResult{}, false, nil
	}
	guests := occupancy.Guests{Adults: in.Adults, Children: children}
	bands := make([]string, 0, len(children))
	for _, ch := range children {
		bands = append(bands, ch.AgeBandID)
	}
	c.trail.Record(audit.StepOccupancyResolution, legIdx, map[string]string{
		"room_type_id": rt.ID,
		"adults":       strconv.Itoa(in.Adults),
		"children":     strconv.Itoa(len(in.Children)),
	}, map[string]string{
		"guests":     strconv.Itoa(guests.Total()),
		"age_bands":  strings.Join(bands, ","),
		"max_adults": strconv.Itoa(rt.MaxAdults),
	}, pricing.Zero)

	resolution, items, err := season.Resolve(c.data, resort, rt.ID, in.CheckIn, in.CheckOut)
	if err != nil {
		return LegResult{}, false, err
	}
	if !validation.HasBlocking(items) {
		items = append(items, season.CheckRestrictions(c.data, resort.ID, rt.ID, in.CheckIn, in.CheckOut, resolution.SeasonIDs)...)
	}
	if !c.keep(i, items) {
		return LegResult{}, false, nil
	}
	for _, n := range resolution.Nights {
		if n.FromDefaultSeason {
			c.log.Debug().Str("resort_id", resort.ID).Str("date", n.Date.String()).Msg("default_season_used")
			break
		}
	}
	c.trail.Record(audit.StepRateResolution, legIdx, map[string]string{
		"resort_id":    resort.ID,
		"room_type_id": rt.ID,
		"check_in":     in.CheckIn.String(),
		"check_out":    in.CheckOut.String(),
	}, map[string]string{
		"nights":        strconv.Itoa(len(resolution.Nights)),
		"seasons":       strings.Join(resolution.SeasonIDs, ","),
		"room_subtotal": resolution.RoomSubtotal.String(),
	}, resolution.RoomSubtotal)

	extras, extraTotal, items, err := occupancy.ExtraPersonCharges(c.data, rt, guests, resolution.Nights)
	if err != nil {
		return LegResult{}, false, err
	}
	if !c.keep(i, items) {
		return LegResult{}, false, nil
	}
	if len(extras) > 0 {
		c.trail.Record(audit.StepExtraPersonCharges, legIdx, map[string]string{
			"base_adults":   strconv.Itoa(rt.BaseOccupancyAdults),
			"base_children": strconv.Itoa(rt.BaseOccupancyChildren),
		}, map[string]string{
			"lines": strconv.Itoa(len(extras)),
			"total": extraTotal.String(),
		}, extraTotal)
	}

	comps, items, err := components.Price(c.data, components.Request{
		Resort:                      resort,
		RoomTypeID:                  rt.ID,
		Guests:                      guests,
		CheckIn:                     in.CheckIn,
		CheckOut:                    in.CheckOut,
		MealPlanID:                  in.MealPlanID,
		TransferTypeID:              in.TransferTypeID,
		ActivityIDs:                 in.ActivityIDs,
		RemovedFestiveSupplementIDs: in.RemovedFestiveSupplementIDs,
	})
	if err != nil {
		return LegResult{}, false, err
	}
	if !c.keep(i, items) {
		return LegResult{}, false, nil
	}
	c.trail.Record(audit.StepComponentPricing, legIdx, map[string]string{
		"meal_plan_id":     in.MealPlanID,
		"transfer_type_id": in.TransferTypeID,
		"activity_ids":     strings.Join(in.ActivityIDs, ","),
	}, map[string]string{
		"lines":            strconv.Itoa(len(comps.Lines)),
		"festive_subtotal": comps.FestiveSubtotal.String(),
		"subtotal":         comps.Subtotal.String(),
	}, comps.Subtotal)

	nonFestive, err := comps.Subtotal.Sub(comps.FestiveSubtotal)
	if err != nil {
		return LegResult{}, false, err
	}
	base := discount.Base{
		Room:        resolution.RoomSubtotal,
		ExtraPerson: extraTotal,
		Components:  nonFestive,
		Festive:     comps.FestiveSubtotal,
	}
	preTax, err := base.Total()
	if err != nil {
		return LegResult{}, false, err
	}
	disc, items, err := discount.Apply(c.data, in.DiscountCodes, discount.Stay{
		ResortID:    resort.ID,
		CheckIn:     in.CheckIn,
		CheckOut:    in.CheckOut,
		Nights:      len(resolution.Nights),
		BookingDate: c.input.BookingDate,
		SeasonIDs:   resolution.SeasonIDs,
	}, base)
	if err != nil {
		return LegResult{}, false, err
	}
	if !c.keep(i, items) {
		return LegResult{}, false, nil
	}
	for _, a := range disc.Applied {
		if a.Clamped {
			c.log.Debug().Str("code", a.Code).Str("base", a.BaseAmount.String()).Msg("quote_discount_clamped")
		}
		c.trail.Record(audit.StepDiscountApplication, legIdx, map[string]string{
			"code":          a.Code,
			"discount_id":   a.DiscountID,
			"discount_type": string(a.DiscountType),
			"base_type":     string(a.BaseType),
			"value":         a.Value.String(),
			"base_amount":   a.BaseAmount.String(),
		}, map[string]string{
			"reduction": a.Reduction.Cost.String(),
			"clamped":   strconv.FormatBool(a.Clamped),
		}, a.Reduction.Cost)
	}
	postDiscount, err := preTax.Sub(disc.TotalCost)
	if err != nil {
		return LegResult{}, false, err
	}

	taxes, items, err := tax.Calculate(c.data, tax.Input{
		ResortID: resort.ID,
		Subtotal: postDiscount,
		Nights:   len(resolution.Nights),
		Adults:   in.Adults,
		Children: children,
	})
	if err != nil {
		return LegResult{}, false, err
	}
	if !c.keep(i, items) {
		return LegResult{}, false, nil
	}
	for _, line := range taxes.Lines {
		c.trail.Record(audit.StepTaxCalculation, legIdx, map[string]string{
			"tax_config_id":      line.TaxConfigID,
			"tax_type":           string(line.TaxType),
			"calculation_method": string(line.Method),
			"calculation_order":  strconv.Itoa(line.Order),
			"base_amount":        line.BaseAmount.String(),
			"guest_count":        strconv.Itoa(line.GuestCount),
		}, map[string]string{
			"amount": line.Pricing.Cost.String(),
		}, line.Pricing.Cost)
	}

	applier, items := markup.NewApplier(c.data, resort.ID, c.input.MarkupOverride != nil)
	if !c.keep(i, items) {
		return LegResult{}, false, nil
	}
	leg := LegResult{
		Index:              i,
		Resort:             resort,
		RoomType:           rt,
		CheckIn:            in.CheckIn,
		CheckOut:           in.CheckOut,
		Nights:             len(resolution.Nights),
		Adults:             in.Adults,
		Children:           children,
		NightlyRates:       resolution.Nights,
		ExtraPersonCharges: extras,
		Components:         comps.Lines,
		Taxes:              taxes.Lines,
		MarkupConfigID:     applier.Config().ID,
	}
	lineMarkup, discMarkup, err := c.applyMarkup(applier, &leg, &disc)
	if err != nil {
		return LegResult{}, false, err
	}
	leg.Discounts = disc.Applied
	cfg := applier.Config()
	c.trail.Record(audit.StepMarkupApplication, legIdx, map[string]string{
		"markup_config_id": cfg.ID,
		"markup_type":      string(cfg.MarkupType),
		"value":            cfg.Value.String(),
		"applies_to_taxes": strconv.FormatBool(cfg.AppliesToTaxes),
		"override":         strconv.FormatBool(c.input.MarkupOverride != nil),
	}, map[string]string{
		"line_item_markup_total":    lineMarkup.String(),
		"discount_markup_reduction": discMarkup.String(),
	}, lineMarkup)

	discTotal, err := pricing.SumBreakdowns(reductions(disc.Applied)...)
	if err != nil {
		return LegResult{}, false, err
	}
	cost, err := postDiscount.Add(taxes.Total)
	if err != nil {
		return LegResult{}, false, err
	}
	legMarkup, err := lineMarkup.Sub(discMarkup)
	if err != nil {
		return LegResult{}, false, err
	}
	totals, err := pricing.NewBreakdown(cost, legMarkup)
	if err != nil {
		return LegResult{}, false, err
	}
	if totals.IsNegative() {
		return LegResult{}, false, validation.NewCalcError(validation.CodeCalcNegativeFinalAmount,
			"leg "+strconv.Itoa(i+1)+" total is negative", nil)
	}
	leg.Subtotals = LegSubtotals{
		Room:         resolution.RoomSubtotal,
		ExtraPerson:  extraTotal,
		Components:   comps.Subtotal,
		PreTax:       preTax,
		Discount:     discTotal,
		PostDiscount: postDiscount,
		Tax:          taxes.Total,
	}
	leg.LineItemMarkupTotal = lineMarkup
	leg.Totals = totals
	c.trail.Record(audit.StepLegTotal, legIdx, map[string]string{
		"resort_id": resort.ID,
		"nights":    strconv.Itoa(leg.Nights),
	}, map[string]string{
		"cost":   totals.Cost.String(),
		"markup": totals.Markup.String(),
		"sell":   totals.Sell.String(),
	}, totals.Sell)
	return leg, true, nil
}

// keep records items against leg i and reports whether pricing may continue.
func (c *calculation) keep(i int, items []validation.Item) bool {
	c.addForLeg(i, items...)
	return !validation.HasBlocking(items)
}

func (c *calculation) resolveProperty(i int, in LegInput) (refdata.Resort, refdata.RoomType, bool) {
	resort, ok := c.data.Resort(in.ResortID)
	if !ok {
		c.addForLeg(i, validation.NewBlocking(validation.CodeResortNotFound,
			"resort %q not found", in.ResortID).With("resort_id", in.ResortID))
		return refdata.Resort{}, refdata.RoomType{}, false
	}
	var items []validation.Item
	if !resort.IsActive {
		items = append(items, validation.NewBlocking(validation.CodeResortInactive,
			"resort %s is not active", resort.ID).With("resort_id", resort.ID))
	}
	if c.currency.Code != "" && !strings.EqualFold(resort.CurrencyCode, c.currency.Code) {
		items = append(items, validation.NewBlocking(validation.CodeCurrencyMismatch,
			"resort %s prices in %s, quote is in %s", resort.ID, resort.CurrencyCode, c.currency.Code).
			With("resort_currency", resort.CurrencyCode))
	}
	rt, ok := c.data.RoomType(in.RoomTypeID)
	switch {
	case !ok:
		items = append(items, validation.NewBlocking(validation.CodeRoomTypeNotFound,
			"room type %q not found", in.RoomTypeID).With("room_type_id", in.RoomTypeID))
	case rt.ResortID != resort.ID:
		items = append(items, validation.NewBlocking(validation.CodeRoomTypeResortMismatch,
			"room type %s does not belong to resort %s", rt.ID, resort.ID).With("room_type_id", rt.ID))
	case !rt.IsActive:
		items = append(items, validation.NewBlocking(validation.CodeRoomTypeInactive,
			"room type %s is not active", rt.ID).With("room_type_id", rt.ID))
	}
	return resort, rt, c.keep(i, items)
}

// applyMarkup sets the markup layer of every priced line of leg and then the
// markup reduction of each discount. It returns the line markup total and
// the discount markup reduction.
func (c *calculation) applyMarkup(a *markup.Applier, leg *LegResult, disc *discount.Result) (pricing.Money, pricing.Money, error) {
	var (
		bucket discount.Base
		taxes  = pricing.Zero
		err    error
	)
	for j := range leg.NightlyRates {
		p := &leg.NightlyRates[j].Pricing
		if *p, err = a.Apply(string(refdata.ComponentRoom), false, *p); err != nil {
			return pricing.Zero, pricing.Zero, err
		}
		if bucket.Room, err = bucket.Room.Add(p.Markup); err != nil {
			return pricing.Zero, pricing.Zero, err
		}
	}
	for j := range leg.ExtraPersonCharges {
		p := &leg.ExtraPersonCharges[j].Pricing
		if *p, err = a.Apply(string(refdata.ComponentExtraPerson), false, *p); err != nil {
			return pricing.Zero, pricing.Zero, err
		}
		if bucket.ExtraPerson, err = bucket.ExtraPerson.Add(p.Markup); err != nil {
			return pricing.Zero, pricing.Zero, err
		}
	}
	for j := range leg.Components {
		line := &leg.Components[j]
		if line.Pricing, err = a.Apply(string(line.Kind), false, line.Pricing); err != nil {
			return pricing.Zero, pricing.Zero, err
		}
		target := &bucket.Components
		if line.Kind == refdata.ComponentFestiveSupplement {
			target = &bucket.Festive
		}
		if *target, err = target.Add(line.Pricing.Markup); err != nil {
			return pricing.Zero, pricing.Zero, err
		}
	}
	for j := range leg.Taxes {
		line := &leg.Taxes[j]
		if line.Pricing, err = a.Apply(string(line.TaxType), true, line.Pricing); err != nil {
			return pricing.Zero, pricing.Zero, err
		}
		if taxes, err = taxes.Add(line.Pricing.Markup); err != nil {
			return pricing.Zero, pricing.Zero, err
		}
	}
	lineTotal, err := bucket.Total()
	if err != nil {
		return pricing.Zero, pricing.Zero, err
	}
	if lineTotal, err = lineTotal.Add(taxes); err != nil {
		return pricing.Zero, pricing.Zero, err
	}
	discMarkup, err := disc.ApplyMarkup(bucket)
	if err != nil {
		return pricing.Zero, pricing.Zero, err
	}
	return lineTotal, discMarkup, nil
}

func reductions(applied []discount.Applied) []pricing.Breakdown {
	out := make([]pricing.Breakdown, 0, len(applied))
	for _, a := range applied {
		out = append(out, a.Reduction)
	}
	return out
}
