// Package refdata holds the closed reference-data snapshot the quote engine
// prices against: currencies, resorts, rates, charges, taxes, discounts and
// markup rules.
package refdata

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/pricing"
)

// GuestType distinguishes adult from child charges.
type GuestType string

const (
	GuestAdult GuestType = "ADULT"
	GuestChild GuestType = "CHILD"
)

// ChargeType controls how an extra-person charge accrues.
type ChargeType string

const (
	ChargePerPersonPerNight ChargeType = "PER_PERSON_PER_NIGHT"
	ChargePerStay           ChargeType = "PER_STAY"
)

// PricingMode selects per-guest or flat pricing for optional components.
type PricingMode string

const (
	PricingPerPerson  PricingMode = "PER_PERSON"
	PricingPerBooking PricingMode = "PER_BOOKING"
	PricingPerTrip    PricingMode = "PER_TRIP"
)

// TaxType names a tax. Only GreenTax carries special treatment.
type TaxType string

const (
	TaxGreen         TaxType = "GREEN_TAX"
	TaxGST           TaxType = "GST"
	TaxServiceCharge TaxType = "SERVICE_CHARGE"
)

// TaxMethod is the calculation method of a tax configuration.
type TaxMethod string

const (
	TaxPercentage             TaxMethod = "PERCENTAGE"
	TaxFixedPerPersonPerNight TaxMethod = "FIXED_PER_PERSON_PER_NIGHT"
)

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// BaseType selects the line items a discount is computed against.
type BaseType string

const (
	BaseRoomOnly    BaseType = "ROOM_ONLY"
	BasePreTaxTotal BaseType = "PRE_TAX_TOTAL"
)

// MarkupType selects percentage or fixed markup.
type MarkupType string

const (
	MarkupPercentage MarkupType = "PERCENTAGE"
	MarkupFixed      MarkupType = "FIXED"
)

// ComponentType names a priced line category. Markup exclusions refer to
// these values or to a TaxType.
type ComponentType string

const (
	ComponentRoom                ComponentType = "ROOM"
	ComponentExtraPerson         ComponentType = "EXTRA_PERSON"
	ComponentMealPlan            ComponentType = "MEAL_PLAN"
	ComponentTransfer            ComponentType = "TRANSFER"
	ComponentActivity            ComponentType = "ACTIVITY"
	ComponentFestiveSupplement   ComponentType = "FESTIVE_SUPPLEMENT"
	ComponentInterResortTransfer ComponentType = "INTER_RESORT_TRANSFER"
)

type Currency struct {
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	Symbol             string          `json:"symbol"`
	DecimalPlaces      int32           `json:"decimal_places"`
	ExchangeRateToBase decimal.Decimal `json:"exchange_rate_to_base"`
	IsBase             bool            `json:"is_base"`
}

type Resort struct {
	ID                         string `json:"id"`
	Name                       string `json:"name"`
	CurrencyCode               string `json:"currency_code"`
	TransferRequired           bool   `json:"transfer_required"`
	DefaultSeasonID            string `json:"default_season_id,omitempty"`
	AllowDefaultSeasonFallback bool   `json:"allow_default_season_fallback"`
	IsActive                   bool   `json:"is_active"`
}

type RoomType struct {
	ID                    string `json:"id"`
	ResortID              string `json:"resort_id"`
	Name                  string `json:"name"`
	BaseOccupancyAdults   int    `json:"base_occupancy_adults"`
	BaseOccupancyChildren int    `json:"base_occupancy_children"`
	MaxAdults             int    `json:"max_adults"`
	MaxChildren           int    `json:"max_children"`
	MaxTotalOccupancy     int    `json:"max_total_occupancy"`
	IsActive              bool   `json:"is_active"`
}

// Season is a resort date window. Date ranges are inclusive; when seasons
// overlap the highest Priority wins.
type Season struct {
	ID         string           `json:"id"`
	ResortID   string           `json:"resort_id"`
	Name       string           `json:"name"`
	Priority   int              `json:"priority"`
	DateRanges []calendar.Range `json:"date_ranges"`
}

// Covers reports whether any of the season's ranges contains d.
func (s Season) Covers(d calendar.Date) bool {
	for _, r := range s.DateRanges {
		if r.Contains(d) {
			return true
		}
	}
	return false
}

type Rate struct {
	ID          string        `json:"id"`
	RoomTypeID  string        `json:"room_type_id"`
	SeasonID    string        `json:"season_id"`
	NightlyCost pricing.Money `json:"nightly_cost"`
	ValidFrom   calendar.Date `json:"valid_from"`
	ValidTo     calendar.Date `json:"valid_to"`
	IsActive    bool          `json:"is_active"`
}

// ValidOn reports whether the rate is active and d is inside its optional validity window.
func (r Rate) ValidOn(d calendar.Date) bool {
	return r.IsActive && calendar.OptionalWindow(d, r.ValidFrom, r.ValidTo)
}

// ExtraPersonCharge prices guests above a room type's base occupancy. An
// empty SeasonID or AgeBandID matches any season or band.
type ExtraPersonCharge struct {
	ID         string        `json:"id"`
	RoomTypeID string        `json:"room_type_id"`
	SeasonID   string        `json:"season_id,omitempty"`
	GuestType  GuestType     `json:"guest_type"`
	AgeBandID  string        `json:"age_band_id,omitempty"`
	ChargeType ChargeType    `json:"charge_type"`
	Cost       pricing.Money `json:"cost"`
}

type ChildAgeBand struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	MinAge int    `json:"min_age"`
	MaxAge int    `json:"max_age"`
}

// Contains reports whether age lies in [MinAge, MaxAge].
func (b ChildAgeBand) Contains(age int) bool {
	return age >= b.MinAge && age <= b.MaxAge
}

// GuestPricing is the shared per-guest or flat price list used by meal plans,
// transfers, activities and festive supplements.
type GuestPricing struct {
	PricingMode PricingMode              `json:"pricing_mode"`
	AdultCost   pricing.Money            `json:"adult_cost"`
	ChildCosts  map[string]pricing.Money `json:"child_costs,omitempty"`
	FlatCost    pricing.Money            `json:"flat_cost"`
}

// ChildCost returns the cost for a child in band, falling back to the adult cost.
func (p GuestPricing) ChildCost(bandID string) pricing.Money {
	if cost, ok := p.ChildCosts[bandID]; ok {
		return cost
	}
	return p.AdultCost
}

// MealPlan is priced per night.
type MealPlan struct {
	ID       string `json:"id"`
	ResortID string `json:"resort_id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	GuestPricing
}

// TransferType with an empty ResortID is an inter-resort transfer.
type TransferType struct {
	ID       string `json:"id"`
	ResortID string `json:"resort_id,omitempty"`
	Name     string `json:"name"`
	Mode     string `json:"mode"`
	GuestPricing
}

type Activity struct {
	ID             string          `json:"id"`
	ResortID       string          `json:"resort_id"`
	Name           string          `json:"name"`
	IsDateSpecific bool            `json:"is_date_specific"`
	AvailableDates []calendar.Date `json:"available_dates,omitempty"`
	GuestPricing
}

// TaxConfiguration is one resort tax. AppliesTo is descriptive only.
type TaxConfiguration struct {
	ID                string              `json:"id"`
	ResortID          string              `json:"resort_id"`
	TaxType           TaxType             `json:"tax_type"`
	Name              string              `json:"name"`
	CalculationMethod TaxMethod           `json:"calculation_method"`
	Rate              *pricing.Percentage `json:"rate,omitempty"`
	FixedAmount       *pricing.Money      `json:"fixed_amount,omitempty"`
	CalculationOrder  int                 `json:"calculation_order"`
	IsCumulativeBase  bool                `json:"is_cumulative_base"`
	AppliesTo         string              `json:"applies_to,omitempty"`
	AppliesToChildren bool                `json:"applies_to_children"`
	ChildAgeThreshold int                 `json:"child_age_threshold"`
	IsActive          bool                `json:"is_active"`
}

// Discount is a promotional code. An empty ResortID applies to every resort.
type Discount struct {
	ID                        string          `json:"id"`
	ResortID                  string          `json:"resort_id,omitempty"`
	Code                      string          `json:"code"`
	Name                      string          `json:"name"`
	DiscountType              DiscountType    `json:"discount_type"`
	BaseType                  BaseType        `json:"base_type"`
	Value                     decimal.Decimal `json:"value"`
	MinNights                 *int            `json:"min_nights,omitempty"`
	MaxNights                 *int            `json:"max_nights,omitempty"`
	MinDaysBeforeArrival      *int            `json:"min_days_before_arrival,omitempty"`
	MaxDaysBeforeArrival      *int            `json:"max_days_before_arrival,omitempty"`
	BlackoutSeasonIDs         []string        `json:"blackout_season_ids,omitempty"`
	StackableWith             []string        `json:"stackable_with,omitempty"`
	ValidFrom                 calendar.Date   `json:"valid_from"`
	ValidTo                   calendar.Date   `json:"valid_to"`
	IncludeFestiveSupplements bool            `json:"include_festive_supplements"`
	IsActive                  bool            `json:"is_active"`
}

// MarkupConfiguration with an empty ResortID is the global fallback.
type MarkupConfiguration struct {
	ID                 string          `json:"id"`
	ResortID           string          `json:"resort_id,omitempty"`
	MarkupType         MarkupType      `json:"markup_type"`
	Value              decimal.Decimal `json:"value"`
	AppliesToTaxes     bool            `json:"applies_to_taxes"`
	ExcludedComponents []string        `json:"excluded_components,omitempty"`
}

// Excludes reports whether a line category is listed as excluded.
func (m MarkupConfiguration) Excludes(kind string) bool {
	for _, c := range m.ExcludedComponents {
		if c == kind {
			return true
		}
	}
	return false
}

// FestiveSupplement is charged once per stay when any trigger date falls
// inside the stay and the supplement's validity window.
type FestiveSupplement struct {
	ID           string          `json:"id"`
	ResortID     string          `json:"resort_id"`
	Name         string          `json:"name"`
	TriggerDates []calendar.Date `json:"trigger_dates"`
	ValidFrom    calendar.Date   `json:"valid_from"`
	ValidTo      calendar.Date   `json:"valid_to"`
	RoomTypeIDs  []string        `json:"room_type_ids,omitempty"`
	GuestPricing
}

type MinimumStayRule struct {
	ID         string        `json:"id"`
	ResortID   string        `json:"resort_id"`
	RoomTypeID string        `json:"room_type_id,omitempty"`
	SeasonID   string        `json:"season_id,omitempty"`
	StartDate  calendar.Date `json:"start_date"`
	EndDate    calendar.Date `json:"end_date"`
	MinNights  int           `json:"min_nights"`
}

type BlackoutDate struct {
	ID         string        `json:"id"`
	ResortID   string        `json:"resort_id"`
	RoomTypeID string        `json:"room_type_id,omitempty"`
	StartDate  calendar.Date `json:"start_date"`
	EndDate    calendar.Date `json:"end_date"`
	Reason     string        `json:"reason,omitempty"`
}

// Data is the serialised form of the snapshot.
type Data struct {
	Currencies           []Currency            `json:"currencies"`
	Resorts              []Resort              `json:"resorts"`
	RoomTypes            []RoomType            `json:"room_types"`
	Seasons              []Season              `json:"seasons"`
	Rates                []Rate                `json:"rates"`
	ExtraPersonCharges   []ExtraPersonCharge   `json:"extra_person_charges"`
	ChildAgeBands        []ChildAgeBand        `json:"child_age_bands"`
	MealPlans            []MealPlan            `json:"meal_plans"`
	TransferTypes        []TransferType        `json:"transfer_types"`
	Activities           []Activity            `json:"activities"`
	TaxConfigurations    []TaxConfiguration    `json:"tax_configurations"`
	Discounts            []Discount            `json:"discounts"`
	MarkupConfigurations []MarkupConfiguration `json:"markup_configurations"`
	FestiveSupplements   []FestiveSupplement   `json:"festive_supplements"`
	MinimumStayRules     []MinimumStayRule     `json:"minimum_stay_rules"`
	BlackoutDates        []BlackoutDate        `json:"blackout_dates"`
}
