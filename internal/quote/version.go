package quote

import (
	"fmt"
	"time"

	"github.com/noah-isme/atoll-quote/internal/audit"
	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/engine"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// Version triggers.
const (
	TriggerAPI         = "api"
	TriggerRecalculate = "recalculate"
)

// Version is an immutable, persisted calculation of a quote. Amounts are
// rounded to the currency's decimal places; the audit trail is kept as the
// engine produced it.
type Version struct {
	ID              string              `json:"id"`
	QuoteID         string              `json:"quote_id"`
	Number          int                 `json:"version"`
	CalculationID   string              `json:"calculation_id"`
	ConsultantID    string              `json:"consultant_id"`
	Trigger         string              `json:"trigger"`
	ClientName      string              `json:"client_name"`
	ClientEmail     string              `json:"client_email,omitempty"`
	CurrencyCode    string              `json:"currency_code"`
	ExchangeRate    engine.ExchangeRate `json:"exchange_rate"`
	RefdataChecksum string              `json:"refdata_checksum"`
	Legs            []VersionLeg        `json:"legs"`
	Transfers       []VersionTransfer   `json:"inter_resort_transfers"`
	Taxes           []engine.TaxSummary `json:"taxes"`
	Totals          engine.Totals       `json:"totals"`
	Warnings        []validation.Item   `json:"warnings"`
	Audit           audit.Trail         `json:"audit"`
	ValidUntil      calendar.Date       `json:"valid_until"`
	CalculatedAt    time.Time           `json:"calculated_at"`
	CreatedAt       time.Time           `json:"created_at"`
	Request         CalculateRequest    `json:"request"`
}

// VersionLeg is a persisted leg with its priced lines.
type VersionLeg struct {
	ID           string            `json:"id"`
	Index        int               `json:"index"`
	ResortID     string            `json:"resort_id"`
	ResortName   string            `json:"resort_name"`
	RoomTypeID   string            `json:"room_type_id"`
	RoomTypeName string            `json:"room_type_name"`
	CheckIn      calendar.Date     `json:"check_in"`
	CheckOut     calendar.Date     `json:"check_out"`
	Nights       int               `json:"nights"`
	Adults       int               `json:"adults"`
	Children     int               `json:"children"`
	Lines        []VersionLine     `json:"lines"`
	Subtotals    LegSubtotals      `json:"subtotals"`
	Totals       pricing.Breakdown `json:"totals"`
}

// LegSubtotals mirrors engine.LegSubtotals after rounding.
type LegSubtotals struct {
	Room         pricing.Money     `json:"room"`
	ExtraPerson  pricing.Money     `json:"extra_person"`
	Components   pricing.Money     `json:"components"`
	PreTax       pricing.Money     `json:"pre_tax"`
	Discount     pricing.Breakdown `json:"discount"`
	PostDiscount pricing.Money     `json:"post_discount"`
	Tax          pricing.Money     `json:"tax"`
}

// Line categories of a persisted leg.
const (
	LineRoom        = "ROOM"
	LineExtraPerson = "EXTRA_PERSON"
	LineDiscount    = "DISCOUNT"
	LineTax         = "TAX"
)

// VersionLine is one priced line of a leg. Discount lines carry the
// reduction as positive amounts.
type VersionLine struct {
	Category    string            `json:"category"`
	ReferenceID string            `json:"reference_id"`
	Description string            `json:"description"`
	Quantity    int               `json:"quantity"`
	Pricing     pricing.Breakdown `json:"pricing"`
}

// VersionTransfer is a persisted inter-resort transfer. Leg references are
// ids, not positions.
type VersionTransfer struct {
	ID             string            `json:"id"`
	FromLegID      string            `json:"from_leg_id"`
	ToLegID        string            `json:"to_leg_id"`
	TransferTypeID string            `json:"transfer_type_id"`
	Name           string            `json:"name"`
	Adults         int               `json:"adults"`
	Children       int               `json:"children"`
	Pricing        pricing.Breakdown `json:"pricing"`
}

// Summary is the list view of a version.
type Summary struct {
	ID            string        `json:"id"`
	Number        int           `json:"version"`
	CalculationID string        `json:"calculation_id"`
	Trigger       string        `json:"trigger"`
	CurrencyCode  string        `json:"currency_code"`
	TotalSell     pricing.Money `json:"total_sell"`
	ValidUntil    calendar.Date `json:"valid_until"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Summary returns the list view of v.
func (v Version) Summary() Summary {
	return Summary{
		ID:            v.ID,
		Number:        v.Number,
		CalculationID: v.CalculationID,
		Trigger:       v.Trigger,
		CurrencyCode:  v.CurrencyCode,
		TotalSell:     v.Totals.TotalSell,
		ValidUntil:    v.ValidUntil,
		CreatedAt:     v.CreatedAt,
	}
}

// assembly carries what buildVersion needs besides the engine result.
type assembly struct {
	QuoteID         string
	Number          int
	ConsultantID    string
	Trigger         string
	RefdataChecksum string
	Request         CalculateRequest
	Now             time.Time
	NewID           func() string
}

// buildVersion turns a successful result into a Version: ids are assigned to
// the version, legs and transfers, transfer leg positions are resolved to
// leg ids and every stored amount is rounded to the currency's places.
func buildVersion(res engine.Result, in engine.QuoteInput, a assembly) (Version, error) {
	if !res.Success {
		return Version{}, fmt.Errorf("quote: cannot persist a failed calculation %s", res.CalculationID)
	}
	places := res.ExchangeRate.DecimalPlaces

	legIDs := make([]string, len(res.Legs))
	legs := make([]VersionLeg, len(res.Legs))
	for i, leg := range res.Legs {
		legIDs[i] = a.NewID()
		legs[i] = versionLeg(legIDs[i], leg, places)
	}

	transfers := make([]VersionTransfer, 0, len(res.InterResortTransfers))
	for _, t := range res.InterResortTransfers {
		if t.FromLegIndex < 0 || t.FromLegIndex >= len(legIDs) || t.ToLegIndex < 0 || t.ToLegIndex >= len(legIDs) {
			return Version{}, fmt.Errorf("quote: transfer references leg %d->%d outside %d legs", t.FromLegIndex, t.ToLegIndex, len(legIDs))
		}
		transfers = append(transfers, VersionTransfer{
			ID:             a.NewID(),
			FromLegID:      legIDs[t.FromLegIndex],
			ToLegID:        legIDs[t.ToLegIndex],
			TransferTypeID: t.TransferTypeID,
			Name:           t.Name,
			Adults:         t.Adults,
			Children:       t.Children,
			Pricing:        t.Pricing.Round(places),
		})
	}

	taxes := make([]engine.TaxSummary, len(res.Taxes))
	for i, t := range res.Taxes {
		taxes[i] = engine.TaxSummary{TaxType: t.TaxType, Pricing: t.Pricing.Round(places)}
	}

	return Version{
		ID:              a.NewID(),
		QuoteID:         a.QuoteID,
		Number:          a.Number,
		CalculationID:   res.CalculationID,
		ConsultantID:    a.ConsultantID,
		Trigger:         a.Trigger,
		ClientName:      in.ClientName,
		ClientEmail:     in.ClientEmail,
		CurrencyCode:    res.ExchangeRate.CurrencyCode,
		ExchangeRate:    res.ExchangeRate,
		RefdataChecksum: a.RefdataChecksum,
		Legs:            legs,
		Transfers:       transfers,
		Taxes:           taxes,
		Totals:          roundTotals(res.Totals, places),
		Warnings:        res.Warnings,
		Audit:           res.Audit.WithLegIDs(legIDs),
		ValidUntil:      res.ValidUntil,
		CalculatedAt:    res.CalculatedAt,
		CreatedAt:       a.Now.UTC(),
		Request:         a.Request,
	}, nil
}

func versionLeg(id string, leg engine.LegResult, places int32) VersionLeg {
	out := VersionLeg{
		ID:           id,
		Index:        leg.Index,
		ResortID:     leg.Resort.ID,
		ResortName:   leg.Resort.Name,
		RoomTypeID:   leg.RoomType.ID,
		RoomTypeName: leg.RoomType.Name,
		CheckIn:      leg.CheckIn,
		CheckOut:     leg.CheckOut,
		Nights:       leg.Nights,
		Adults:       leg.Adults,
		Children:     len(leg.Children),
		Subtotals: LegSubtotals{
			Room:         leg.Subtotals.Room.Round(places),
			ExtraPerson:  leg.Subtotals.ExtraPerson.Round(places),
			Components:   leg.Subtotals.Components.Round(places),
			PreTax:       leg.Subtotals.PreTax.Round(places),
			Discount:     leg.Subtotals.Discount.Round(places),
			PostDiscount: leg.Subtotals.PostDiscount.Round(places),
			Tax:          leg.Subtotals.Tax.Round(places),
		},
		Totals: leg.Totals.Round(places),
	}
	for _, n := range leg.NightlyRates {
		out.Lines = append(out.Lines, VersionLine{
			Category:    LineRoom,
			ReferenceID: n.RateID,
			Description: n.Date.String() + " " + n.SeasonName,
			Quantity:    1,
			Pricing:     n.Pricing.Round(places),
		})
	}
	for _, c := range leg.ExtraPersonCharges {
		out.Lines = append(out.Lines, VersionLine{
			Category:    LineExtraPerson,
			ReferenceID: c.ChargeID,
			Description: string(c.GuestType) + " " + string(c.ChargeType),
			Quantity:    c.Units,
			Pricing:     c.Pricing.Round(places),
		})
	}
	for _, c := range leg.Components {
		out.Lines = append(out.Lines, VersionLine{
			Category:    string(c.Kind),
			ReferenceID: c.ReferenceID,
			Description: c.Name,
			Quantity:    c.Times,
			Pricing:     c.Pricing.Round(places),
		})
	}
	for _, d := range leg.Discounts {
		out.Lines = append(out.Lines, VersionLine{
			Category:    LineDiscount,
			ReferenceID: d.DiscountID,
			Description: d.Code,
			Quantity:    1,
			Pricing:     d.Reduction.Round(places),
		})
	}
	for _, t := range leg.Taxes {
		out.Lines = append(out.Lines, VersionLine{
			Category:    LineTax,
			ReferenceID: t.TaxConfigID,
			Description: t.Name,
			Quantity:    1,
			Pricing:     t.Pricing.Round(places),
		})
	}
	return out
}

// roundTotals rounds the totals for persistence. Sell is re-derived from the
// rounded cost and markup so the stored totals stay balanced.
func roundTotals(t engine.Totals, places int32) engine.Totals {
	headline := pricing.Breakdown{Cost: t.TotalCost, Markup: t.TotalMarkup, Sell: t.TotalSell}.Round(places)
	return engine.Totals{
		TotalCost:        headline.Cost,
		TotalMarkup:      headline.Markup,
		TotalSell:        headline.Sell,
		TaxTotal:         t.TaxTotal.Round(places),
		DiscountTotal:    t.DiscountTotal.Round(places),
		MarkupPercentage: t.MarkupPercentage.Round(2),
		MarginPercentage: t.MarginPercentage.Round(2),
	}
}
