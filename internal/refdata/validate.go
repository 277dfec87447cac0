package refdata

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyCollection is returned when a required collection has no records.
	ErrEmptyCollection = errors.New("refdata: required collection is empty")
	// ErrDuplicateID is returned when two records in a collection share an id.
	ErrDuplicateID = errors.New("refdata: duplicate id")
	// ErrDanglingReference is returned when a record points at a missing record.
	ErrDanglingReference = errors.New("refdata: dangling reference")
	// ErrAgeBandPartition is returned when child age bands do not cover 0-11 exactly once.
	ErrAgeBandPartition = errors.New("refdata: child age bands must partition ages 0-11")
	// ErrDuplicateTaxOrder is returned when a resort has two active taxes with the same calculation order.
	ErrDuplicateTaxOrder = errors.New("refdata: duplicate tax calculation order")
	// ErrInvalidRecord is returned for records violating a data constraint.
	ErrInvalidRecord = errors.New("refdata: invalid record")
)

// MaxChildAge is the oldest age covered by child age bands.
const MaxChildAge = 11

// Validate checks structural integrity of a snapshot: required collections
// are populated, ids are unique, references resolve, age bands partition
// 0-11 and tax calculation orders are unique per resort. All violations are
// returned joined.
func Validate(data Data) error {
	v := &validator{}
	v.required("currencies", len(data.Currencies))
	v.required("resorts", len(data.Resorts))
	v.required("room_types", len(data.RoomTypes))
	v.required("seasons", len(data.Seasons))
	v.required("rates", len(data.Rates))
	v.required("child_age_bands", len(data.ChildAgeBands))
	v.required("tax_configurations", len(data.TaxConfigurations))
	v.required("markup_configurations", len(data.MarkupConfigurations))

	currencies := map[string]bool{}
	baseCount := 0
	for _, c := range data.Currencies {
		v.unique("currencies", c.Code, currencies)
		if c.IsBase {
			baseCount++
		}
		if !c.ExchangeRateToBase.IsPositive() {
			v.invalid("currency %s: exchange_rate_to_base must be positive", c.Code)
		}
		if c.DecimalPlaces < 0 || c.DecimalPlaces > 4 {
			v.invalid("currency %s: decimal_places out of range", c.Code)
		}
	}
	if len(data.Currencies) > 0 && baseCount != 1 {
		v.invalid("exactly one base currency required, found %d", baseCount)
	}

	resorts := map[string]bool{}
	for _, r := range data.Resorts {
		v.unique("resorts", r.ID, resorts)
		v.ref(currencies, r.CurrencyCode, "resort %s: currency %s", r.ID, r.CurrencyCode)
	}

	roomTypes := map[string]bool{}
	roomResort := map[string]string{}
	for _, rt := range data.RoomTypes {
		v.unique("room_types", rt.ID, roomTypes)
		roomResort[rt.ID] = rt.ResortID
		v.ref(resorts, rt.ResortID, "room type %s: resort %s", rt.ID, rt.ResortID)
		if rt.MaxAdults < 1 || rt.MaxTotalOccupancy < 1 {
			v.invalid("room type %s: max occupancy must be positive", rt.ID)
		}
		if rt.BaseOccupancyAdults > rt.MaxAdults || rt.BaseOccupancyChildren > rt.MaxChildren {
			v.invalid("room type %s: base occupancy exceeds maximum", rt.ID)
		}
	}

	seasons := map[string]bool{}
	seasonResort := map[string]string{}
	for _, s := range data.Seasons {
		v.unique("seasons", s.ID, seasons)
		seasonResort[s.ID] = s.ResortID
		v.ref(resorts, s.ResortID, "season %s: resort %s", s.ID, s.ResortID)
		for _, dr := range s.DateRanges {
			if !dr.Valid() {
				v.invalid("season %s: invalid date range %s..%s", s.ID, dr.Start, dr.End)
			}
		}
	}
	for _, r := range data.Resorts {
		if r.DefaultSeasonID == "" {
			if r.AllowDefaultSeasonFallback {
				v.invalid("resort %s: fallback allowed without default season", r.ID)
			}
			continue
		}
		if !v.ref(seasons, r.DefaultSeasonID, "resort %s: default season %s", r.ID, r.DefaultSeasonID) {
			continue
		}
		if seasonResort[r.DefaultSeasonID] != r.ID {
			v.invalid("resort %s: default season %s belongs to another resort", r.ID, r.DefaultSeasonID)
		}
	}

	rates := map[string]bool{}
	for _, r := range data.Rates {
		v.unique("rates", r.ID, rates)
		okRoom := v.ref(roomTypes, r.RoomTypeID, "rate %s: room type %s", r.ID, r.RoomTypeID)
		okSeason := v.ref(seasons, r.SeasonID, "rate %s: season %s", r.ID, r.SeasonID)
		if okRoom && okSeason && roomResort[r.RoomTypeID] != seasonResort[r.SeasonID] {
			v.invalid("rate %s: room type and season belong to different resorts", r.ID)
		}
		if r.NightlyCost.IsNegative() {
			v.invalid("rate %s: negative nightly cost", r.ID)
		}
	}

	bands := map[string]bool{}
	for _, b := range data.ChildAgeBands {
		v.unique("child_age_bands", b.ID, bands)
	}
	v.agePartition(data.ChildAgeBands)

	charges := map[string]bool{}
	for _, c := range data.ExtraPersonCharges {
		v.unique("extra_person_charges", c.ID, charges)
		v.ref(roomTypes, c.RoomTypeID, "extra person charge %s: room type %s", c.ID, c.RoomTypeID)
		if c.SeasonID != "" {
			v.ref(seasons, c.SeasonID, "extra person charge %s: season %s", c.ID, c.SeasonID)
		}
		if c.AgeBandID != "" {
			v.ref(bands, c.AgeBandID, "extra person charge %s: age band %s", c.ID, c.AgeBandID)
		}
		if c.GuestType != GuestAdult && c.GuestType != GuestChild {
			v.invalid("extra person charge %s: guest type %q", c.ID, c.GuestType)
		}
		if c.ChargeType != ChargePerPersonPerNight && c.ChargeType != ChargePerStay {
			v.invalid("extra person charge %s: charge type %q", c.ID, c.ChargeType)
		}
		if c.Cost.IsNegative() {
			v.invalid("extra person charge %s: negative cost", c.ID)
		}
	}

	meals := map[string]bool{}
	for _, m := range data.MealPlans {
		v.unique("meal_plans", m.ID, meals)
		v.ref(resorts, m.ResortID, "meal plan %s: resort %s", m.ID, m.ResortID)
		v.guestPricing("meal plan "+m.ID, m.GuestPricing, bands, PricingPerPerson, PricingPerBooking)
	}
	transfers := map[string]bool{}
	for _, t := range data.TransferTypes {
		v.unique("transfer_types", t.ID, transfers)
		if t.ResortID != "" {
			v.ref(resorts, t.ResortID, "transfer type %s: resort %s", t.ID, t.ResortID)
		}
		v.guestPricing("transfer type "+t.ID, t.GuestPricing, bands, PricingPerPerson, PricingPerTrip)
	}
	activities := map[string]bool{}
	for _, a := range data.Activities {
		v.unique("activities", a.ID, activities)
		v.ref(resorts, a.ResortID, "activity %s: resort %s", a.ID, a.ResortID)
		v.guestPricing("activity "+a.ID, a.GuestPricing, bands, PricingPerPerson, PricingPerBooking)
		if a.IsDateSpecific && len(a.AvailableDates) == 0 {
			v.invalid("activity %s: date specific without available dates", a.ID)
		}
	}

	taxes := map[string]bool{}
	orders := map[string]map[int]string{}
	for _, t := range data.TaxConfigurations {
		v.unique("tax_configurations", t.ID, taxes)
		v.ref(resorts, t.ResortID, "tax %s: resort %s", t.ID, t.ResortID)
		switch t.CalculationMethod {
		case TaxPercentage:
			if t.Rate == nil {
				v.invalid("tax %s: percentage method without rate", t.ID)
			}
		case TaxFixedPerPersonPerNight:
			if t.FixedAmount == nil || t.FixedAmount.IsNegative() {
				v.invalid("tax %s: fixed method without non-negative amount", t.ID)
			}
		default:
			v.invalid("tax %s: calculation method %q", t.ID, t.CalculationMethod)
		}
		if !t.IsActive {
			continue
		}
		if orders[t.ResortID] == nil {
			orders[t.ResortID] = map[int]string{}
		}
		if other, dup := orders[t.ResortID][t.CalculationOrder]; dup {
			v.add(fmt.Errorf("%w: resort %s order %d used by %s and %s", ErrDuplicateTaxOrder, t.ResortID, t.CalculationOrder, other, t.ID))
			continue
		}
		orders[t.ResortID][t.CalculationOrder] = t.ID
	}

	discounts := map[string]bool{}
	for _, d := range data.Discounts {
		v.unique("discounts", d.ID, discounts)
		if d.ResortID != "" {
			v.ref(resorts, d.ResortID, "discount %s: resort %s", d.ID, d.ResortID)
		}
		if d.Code == "" {
			v.invalid("discount %s: empty code", d.ID)
		}
		for _, sid := range d.BlackoutSeasonIDs {
			v.ref(seasons, sid, "discount %s: blackout season %s", d.ID, sid)
		}
	}

	markups := map[string]bool{}
	markupScope := map[string]string{}
	for _, m := range data.MarkupConfigurations {
		v.unique("markup_configurations", m.ID, markups)
		if m.ResortID != "" {
			v.ref(resorts, m.ResortID, "markup %s: resort %s", m.ID, m.ResortID)
		}
		if other, dup := markupScope[m.ResortID]; dup {
			v.invalid("markup %s: scope %q already configured by %s", m.ID, m.ResortID, other)
		}
		markupScope[m.ResortID] = m.ID
		if m.MarkupType != MarkupPercentage && m.MarkupType != MarkupFixed {
			v.invalid("markup %s: markup type %q", m.ID, m.MarkupType)
		}
	}

	festive := map[string]bool{}
	for _, f := range data.FestiveSupplements {
		v.unique("festive_supplements", f.ID, festive)
		v.ref(resorts, f.ResortID, "festive supplement %s: resort %s", f.ID, f.ResortID)
		v.guestPricing("festive supplement "+f.ID, f.GuestPricing, bands, PricingPerPerson, PricingPerBooking)
		for _, id := range f.RoomTypeIDs {
			v.ref(roomTypes, id, "festive supplement %s: room type %s", f.ID, id)
		}
	}

	stays := map[string]bool{}
	for _, r := range data.MinimumStayRules {
		v.unique("minimum_stay_rules", r.ID, stays)
		v.ref(resorts, r.ResortID, "minimum stay %s: resort %s", r.ID, r.ResortID)
		if r.RoomTypeID != "" {
			v.ref(roomTypes, r.RoomTypeID, "minimum stay %s: room type %s", r.ID, r.RoomTypeID)
		}
		if r.SeasonID != "" {
			v.ref(seasons, r.SeasonID, "minimum stay %s: season %s", r.ID, r.SeasonID)
		}
		if r.MinNights < 1 {
			v.invalid("minimum stay %s: min_nights must be positive", r.ID)
		}
	}

	blackouts := map[string]bool{}
	for _, b := range data.BlackoutDates {
		v.unique("blackout_dates", b.ID, blackouts)
		v.ref(resorts, b.ResortID, "blackout %s: resort %s", b.ID, b.ResortID)
		if b.RoomTypeID != "" {
			v.ref(roomTypes, b.RoomTypeID, "blackout %s: room type %s", b.ID, b.RoomTypeID)
		}
		if b.StartDate.IsZero() || b.EndDate.IsZero() || b.EndDate.Before(b.StartDate) {
			v.invalid("blackout %s: invalid date range", b.ID)
		}
	}

	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) add(err error) { v.errs = append(v.errs, err) }

func (v *validator) invalid(format string, args ...any) {
	v.add(fmt.Errorf("%w: "+format, append([]any{ErrInvalidRecord}, args...)...))
}

func (v *validator) required(name string, n int) {
	if n == 0 {
		v.add(fmt.Errorf("%w: %s", ErrEmptyCollection, name))
	}
}

func (v *validator) unique(collection, id string, seen map[string]bool) {
	if id == "" {
		v.invalid("%s: record without id", collection)
		return
	}
	if seen[id] {
		v.add(fmt.Errorf("%w: %s %s", ErrDuplicateID, collection, id))
		return
	}
	seen[id] = true
}

func (v *validator) ref(known map[string]bool, id string, format string, args ...any) bool {
	if known[id] {
		return true
	}
	v.add(fmt.Errorf("%w: "+format, append([]any{ErrDanglingReference}, args...)...))
	return false
}

func (v *validator) guestPricing(owner string, p GuestPricing, bands map[string]bool, modes ...PricingMode) {
	allowed := false
	for _, m := range modes {
		if p.PricingMode == m {
			allowed = true
		}
	}
	if !allowed {
		v.invalid("%s: pricing mode %q", owner, p.PricingMode)
	}
	if p.AdultCost.IsNegative() || p.FlatCost.IsNegative() {
		v.invalid("%s: negative cost", owner)
	}
	for bandID, cost := range p.ChildCosts {
		v.ref(bands, bandID, "%s: child cost band %s", owner, bandID)
		if cost.IsNegative() {
			v.invalid("%s: negative child cost for %s", owner, bandID)
		}
	}
}

func (v *validator) agePartition(bands []ChildAgeBand) {
	if len(bands) == 0 {
		return
	}
	sorted := make([]ChildAgeBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinAge < sorted[j].MinAge })
	next := 0
	for _, b := range sorted {
		if b.MinAge > b.MaxAge {
			v.add(fmt.Errorf("%w: band %s has min_age > max_age", ErrAgeBandPartition, b.ID))
			return
		}
		if b.MinAge != next {
			v.add(fmt.Errorf("%w: band %s starts at %d, expected %d", ErrAgeBandPartition, b.ID, b.MinAge, next))
			return
		}
		next = b.MaxAge + 1
	}
	if next != MaxChildAge+1 {
		v.add(fmt.Errorf("%w: bands end at %d", ErrAgeBandPartition, next-1))
	}
}
