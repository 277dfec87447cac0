// Package tax evaluates a resort's taxes in calculation order over the
// post-discount subtotal.
package tax

import (
	"sort"

	"github.com/noah-isme/atoll-quote/internal/occupancy"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// Catalog is the reference data the tax engine reads.
type Catalog interface {
	TaxConfigurations(resortID string) []refdata.TaxConfiguration
}

// Input is what the tax stage needs from earlier stages. Subtotal is the
// explicit post-discount base; it is never re-derived from applies_to.
type Input struct {
	ResortID string
	Subtotal pricing.Money
	Nights   int
	Adults   int
	Children []occupancy.Child
}

// Line is one evaluated tax.
type Line struct {
	TaxConfigID      string              `json:"tax_config_id"`
	TaxType          refdata.TaxType     `json:"tax_type"`
	Name             string              `json:"name"`
	Method           refdata.TaxMethod   `json:"calculation_method"`
	Order            int                 `json:"calculation_order"`
	Rate             *pricing.Percentage `json:"rate,omitempty"`
	BaseAmount       pricing.Money       `json:"base_amount"`
	UnitAmount       pricing.Money       `json:"unit_amount"`
	GuestCount       int                 `json:"guest_count"`
	Nights           int                 `json:"nights"`
	IsCumulativeBase bool                `json:"is_cumulative_base"`
	Pricing          pricing.Breakdown   `json:"pricing"`
}

// Result is the outcome of the tax stage.
type Result struct {
	Lines []Line
	Total pricing.Money
}

// Calculate evaluates every active tax of the resort in ascending
// calculation order. A percentage tax is levied on the subtotal plus every
// earlier tax flagged as cumulative base; a fixed tax is levied per
// chargeable guest per night.
func Calculate(cat Catalog, in Input) (Result, []validation.Item, error) {
	configs := cat.TaxConfigurations(in.ResortID)
	if len(configs) == 0 {
		return Result{}, []validation.Item{validation.NewBlocking(validation.CodeCalcTaxConfigInvalid,
			"resort %s has no tax configuration", in.ResortID).With("resort_id", in.ResortID)}, nil
	}
	sort.SliceStable(configs, func(i, j int) bool { return configs[i].CalculationOrder < configs[j].CalculationOrder })

	var (
		res        = Result{Total: pricing.Zero}
		items      []validation.Item
		cumulative = pricing.Zero
	)
	for _, cfg := range configs {
		line := Line{
			TaxConfigID:      cfg.ID,
			TaxType:          cfg.TaxType,
			Name:             cfg.Name,
			Method:           cfg.CalculationMethod,
			Order:            cfg.CalculationOrder,
			IsCumulativeBase: cfg.IsCumulativeBase,
			Nights:           in.Nights,
		}
		var amount pricing.Money
		switch cfg.CalculationMethod {
		case refdata.TaxPercentage:
			if cfg.Rate == nil {
				items = append(items, invalid(cfg, "percentage tax without rate"))
				continue
			}
			base, err := in.Subtotal.Add(cumulative)
			if err != nil {
				return Result{}, items, err
			}
			if amount, err = base.ApplyPercentage(*cfg.Rate); err != nil {
				return Result{}, items, err
			}
			rate := *cfg.Rate
			line.Rate = &rate
			line.BaseAmount = base
		case refdata.TaxFixedPerPersonPerNight:
			if cfg.FixedAmount == nil || cfg.FixedAmount.IsNegative() {
				items = append(items, invalid(cfg, "fixed tax without a non-negative amount"))
				continue
			}
			guests, exempt := chargeableGuests(cfg, in.Adults, in.Children)
			if exempt > 0 {
				items = append(items, validation.NewWarning(validation.CodeChildTaxExemptionApplied,
					"%d child(ren) exempt from %s", exempt, cfg.Name).With("tax_config_id", cfg.ID))
			}
			perNight, err := cfg.FixedAmount.MulInt(guests)
			if err != nil {
				return Result{}, items, err
			}
			if amount, err = perNight.MulInt(in.Nights); err != nil {
				return Result{}, items, err
			}
			line.UnitAmount = *cfg.FixedAmount
			line.GuestCount = guests
		default:
			items = append(items, invalid(cfg, "unknown calculation method"))
			continue
		}
		line.Pricing = pricing.CostOnly(amount)
		res.Lines = append(res.Lines, line)

		var err error
		if res.Total, err = res.Total.Add(amount); err != nil {
			return Result{}, items, err
		}
		if cfg.IsCumulativeBase {
			if cumulative, err = cumulative.Add(amount); err != nil {
				return Result{}, items, err
			}
		}
	}
	if validation.HasBlocking(items) {
		return Result{}, items, nil
	}
	return res, items, nil
}

// chargeableGuests counts adults plus children old enough to pay. Children
// are only counted when the tax applies to children and they have reached
// the threshold age.
func chargeableGuests(cfg refdata.TaxConfiguration, adults int, children []occupancy.Child) (count, exempt int) {
	count = adults
	for _, c := range children {
		if cfg.AppliesToChildren && c.Age >= cfg.ChildAgeThreshold {
			count++
			continue
		}
		exempt++
	}
	return count, exempt
}

func invalid(cfg refdata.TaxConfiguration, reason string) validation.Item {
	return validation.NewBlocking(validation.CodeCalcTaxConfigInvalid,
		"tax %s: %s", cfg.Name, reason).With("tax_config_id", cfg.ID)
}
