package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/atoll-quote/internal/audit"
	"github.com/noah-isme/atoll-quote/internal/calendar"
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

// QuoteInput is everything a calculation needs besides reference data.
// Legs are positional: their order is the itinerary order.
type QuoteInput struct {
	ClientName           string           `json:"client_name"`
	ClientEmail          string           `json:"client_email"`
	CurrencyCode         string           `json:"currency_code"`
	ValidityDays         int              `json:"validity_days"`
	BookingDate          calendar.Date    `json:"booking_date"`
	Legs                 []LegInput       `json:"legs"`
	InterResortTransfers []TransferInput  `json:"inter_resort_transfers,omitempty"`
	MarkupOverride       *markup.Override `json:"markup_override,omitempty"`
}

// LegInput is one resort stay.
type LegInput struct {
	ResortID                    string                 `json:"resort_id"`
	RoomTypeID                  string                 `json:"room_type_id"`
	CheckIn                     calendar.Date          `json:"check_in"`
	CheckOut                    calendar.Date          `json:"check_out"`
	Adults                      int                    `json:"adults"`
	Children                    []occupancy.ChildInput `json:"children,omitempty"`
	MealPlanID                  string                 `json:"meal_plan_id,omitempty"`
	TransferTypeID              string                 `json:"transfer_type_id,omitempty"`
	ActivityIDs                 []string               `json:"activity_ids,omitempty"`
	DiscountCodes               []string               `json:"discount_codes,omitempty"`
	RemovedFestiveSupplementIDs []string               `json:"removed_festive_supplement_ids,omitempty"`
}

// TransferInput moves the party between two legs. Both indices are 0-based
// positions in QuoteInput.Legs and must differ.
type TransferInput struct {
	FromLegIndex   int    `json:"from_leg_index"`
	ToLegIndex     int    `json:"to_leg_index"`
	TransferTypeID string `json:"transfer_type_id"`
}

// DataAccess is the read-only reference data a calculation consumes.
type DataAccess interface {
	season.Catalog
	occupancy.BandCatalog
	occupancy.ChargeCatalog
	components.Catalog
	discount.Catalog
	tax.Catalog
	markup.Catalog
	Resort(id string) (refdata.Resort, bool)
	RoomType(id string) (refdata.RoomType, bool)
	Currency(code string) (refdata.Currency, bool)
}

// LegSubtotals are the intermediate amounts of a leg, all unrounded.
type LegSubtotals struct {
	Room         pricing.Money     `json:"room"`
	ExtraPerson  pricing.Money     `json:"extra_person"`
	Components   pricing.Money     `json:"components"`
	PreTax       pricing.Money     `json:"pre_tax"`
	Discount     pricing.Breakdown `json:"discount"`
	PostDiscount pricing.Money     `json:"post_discount"`
	Tax          pricing.Money     `json:"tax"`
}

// LegResult is a fully priced leg.
type LegResult struct {
	Index               int                     `json:"index"`
	Resort              refdata.Resort          `json:"resort"`
	RoomType            refdata.RoomType        `json:"room_type"`
	CheckIn             calendar.Date           `json:"check_in"`
	CheckOut            calendar.Date           `json:"check_out"`
	Nights              int                     `json:"nights"`
	Adults              int                     `json:"adults"`
	Children            []occupancy.Child       `json:"children"`
	NightlyRates        []season.NightlyRate    `json:"nightly_rates"`
	ExtraPersonCharges  []occupancy.ExtraCharge `json:"extra_person_charges"`
	Components          []components.Line       `json:"components"`
	Discounts           []discount.Applied      `json:"discounts"`
	Taxes               []tax.Line              `json:"taxes"`
	MarkupConfigID      string                  `json:"markup_config_id,omitempty"`
	Subtotals           LegSubtotals            `json:"subtotals"`
	LineItemMarkupTotal pricing.Money           `json:"line_item_markup_total"`
	Totals              pricing.Breakdown       `json:"totals"`
}

// Guests returns the resolved party of the leg.
func (l LegResult) Guests() occupancy.Guests {
	return occupancy.Guests{Adults: l.Adults, Children: l.Children}
}

// TransferResult is a priced inter-resort transfer. Leg references stay
// positional; the calling service maps them to leg ids.
type TransferResult struct {
	FromLegIndex   int               `json:"from_leg_index"`
	ToLegIndex     int               `json:"to_leg_index"`
	TransferTypeID string            `json:"transfer_type_id"`
	Name           string            `json:"name"`
	PricingMode    string            `json:"pricing_mode"`
	Adults         int               `json:"adults"`
	Children       int               `json:"children"`
	Pricing        pricing.Breakdown `json:"pricing"`
}

// TaxSummary totals one tax type across legs.
type TaxSummary struct {
	TaxType refdata.TaxType   `json:"tax_type"`
	Pricing pricing.Breakdown `json:"pricing"`
}

// Totals are the quote-level figures. TotalSell is always TotalCost plus
// TotalMarkup.
type Totals struct {
	TotalCost        pricing.Money   `json:"total_cost"`
	TotalMarkup      pricing.Money   `json:"total_markup"`
	TotalSell        pricing.Money   `json:"total_sell"`
	TaxTotal         pricing.Money   `json:"tax_total"`
	DiscountTotal    pricing.Money   `json:"discount_total"`
	MarkupPercentage decimal.Decimal `json:"markup_percentage"`
	MarginPercentage decimal.Decimal `json:"margin_percentage"`
}

// ExchangeRate snapshots the quote currency at calculation time.
type ExchangeRate struct {
	CurrencyCode  string          `json:"currency_code"`
	RateToBase    decimal.Decimal `json:"rate_to_base"`
	DecimalPlaces int32           `json:"decimal_places"`
	CapturedAt    time.Time       `json:"captured_at"`
}

// Result is the outcome of a calculation. When Success is false, Warnings
// holds at least one blocking item and every other numeric field is zero.
type Result struct {
	Success              bool              `json:"success"`
	CalculationID        string            `json:"calculation_id"`
	Legs                 []LegResult       `json:"legs"`
	InterResortTransfers []TransferResult  `json:"inter_resort_transfers"`
	Taxes                []TaxSummary      `json:"taxes"`
	Totals               Totals            `json:"totals"`
	MarkupOverride       *markup.Override  `json:"markup_override,omitempty"`
	Warnings             []validation.Item `json:"warnings"`
	Audit                audit.Trail       `json:"audit"`
	ExchangeRate         ExchangeRate      `json:"exchange_rate"`
	CalculatedAt         time.Time         `json:"calculated_at"`
	ValidUntil           calendar.Date     `json:"valid_until"`
}

// Blocking returns the blocking items of the result.
func (r Result) Blocking() []validation.Item {
	return validation.BlockingOnly(r.Warnings)
}
