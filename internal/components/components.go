// Package components prices the optional parts of a leg: meal plan,
// transfer, activities and the festive supplements a stay triggers.
// Lines carry cost only; markup and discounts are applied by later stages.
package components

import (
	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/occupancy"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// Catalog is the reference data the pricers read.
type Catalog interface {
	MealPlan(id string) (refdata.MealPlan, bool)
	TransferType(id string) (refdata.TransferType, bool)
	Activity(id string) (refdata.Activity, bool)
	FestiveSupplements(resortID string) []refdata.FestiveSupplement
}

// Line is one priced component.
type Line struct {
	Kind        refdata.ComponentType `json:"kind"`
	ReferenceID string                `json:"reference_id"`
	Name        string                `json:"name"`
	PricingMode refdata.PricingMode   `json:"pricing_mode"`
	Adults      int                   `json:"adults"`
	Children    int                   `json:"children"`
	Times       int                   `json:"times"`
	IsMandatory bool                  `json:"is_mandatory"`
	Pricing     pricing.Breakdown     `json:"pricing"`
}

// Request describes the components selected for one leg.
type Request struct {
	Resort                      refdata.Resort
	RoomTypeID                  string
	Guests                      occupancy.Guests
	CheckIn                     calendar.Date
	CheckOut                    calendar.Date
	MealPlanID                  string
	TransferTypeID              string
	ActivityIDs                 []string
	RemovedFestiveSupplementIDs []string
}

// Result groups the priced lines of a leg.
type Result struct {
	Lines           []Line
	Subtotal        pricing.Money
	FestiveSubtotal pricing.Money
}

// Price runs every pricer for the leg. Unknown references and resort
// mismatches are blocking; pricing continues past them so every problem is
// reported at once.
func Price(cat Catalog, req Request) (Result, []validation.Item, error) {
	var (
		res   Result
		items []validation.Item
	)
	nights := calendar.Nights(req.CheckIn, req.CheckOut)

	if req.MealPlanID == "" {
		items = append(items, validation.NewWarning(validation.CodeNoMealPlanSelected, "no meal plan selected"))
	} else {
		line, found, err := PriceMealPlan(cat, req.Resort.ID, req.MealPlanID, req.Guests, nights)
		if err != nil {
			return Result{}, items, err
		}
		items = append(items, found...)
		if line != nil {
			res.Lines = append(res.Lines, *line)
		}
	}

	if req.TransferTypeID == "" {
		if req.Resort.TransferRequired {
			items = append(items, validation.NewBlocking(validation.CodeTransferRequiredMissing,
				"%s requires a transfer", req.Resort.Name))
		}
	} else {
		line, found, err := PriceTransfer(cat, req.Resort.ID, req.TransferTypeID, req.Guests)
		if err != nil {
			return Result{}, items, err
		}
		items = append(items, found...)
		if line != nil {
			res.Lines = append(res.Lines, *line)
		}
	}

	seen := map[string]bool{}
	for _, id := range req.ActivityIDs {
		if seen[id] {
			items = append(items, validation.NewWarning(validation.CodeDuplicateActivity,
				"activity %s selected more than once", id).With("activity_id", id))
		}
		seen[id] = true
		line, found, err := PriceActivity(cat, req.Resort.ID, id, req.Guests, req.CheckIn, req.CheckOut)
		if err != nil {
			return Result{}, items, err
		}
		items = append(items, found...)
		if line != nil {
			res.Lines = append(res.Lines, *line)
		}
	}

	festive, found, err := FestiveSupplements(cat, req.Resort.ID, req.RoomTypeID, req.Guests, req.CheckIn, req.CheckOut, req.RemovedFestiveSupplementIDs)
	if err != nil {
		return Result{}, items, err
	}
	items = append(items, found...)
	res.Lines = append(res.Lines, festive...)

	res.Subtotal, res.FestiveSubtotal = pricing.Zero, pricing.Zero
	for _, l := range res.Lines {
		if res.Subtotal, err = res.Subtotal.Add(l.Pricing.Cost); err != nil {
			return Result{}, items, err
		}
		if l.Kind == refdata.ComponentFestiveSupplement {
			if res.FestiveSubtotal, err = res.FestiveSubtotal.Add(l.Pricing.Cost); err != nil {
				return Result{}, items, err
			}
		}
	}
	return res, items, nil
}

// PriceMealPlan prices a meal plan for every night of the stay.
func PriceMealPlan(cat Catalog, resortID, id string, guests occupancy.Guests, nights int) (*Line, []validation.Item, error) {
	plan, ok := cat.MealPlan(id)
	if !ok {
		return nil, []validation.Item{validation.NewBlocking(validation.CodeMealPlanNotFound,
			"meal plan %s not found", id).With("meal_plan_id", id)}, nil
	}
	if plan.ResortID != resortID {
		return nil, []validation.Item{mismatch("meal plan", id, resortID)}, nil
	}
	cost, err := GuestCost(plan.GuestPricing, guests, nights)
	if err != nil {
		return nil, nil, err
	}
	return newLine(refdata.ComponentMealPlan, plan.ID, plan.Name, plan.PricingMode, guests, nights, false, cost), nil, nil
}

// PriceTransfer prices a transfer once for the leg. Transfers without a
// resort are shared and may be used at any resort.
func PriceTransfer(cat Catalog, resortID, id string, guests occupancy.Guests) (*Line, []validation.Item, error) {
	tt, ok := cat.TransferType(id)
	if !ok {
		return nil, []validation.Item{validation.NewBlocking(validation.CodeTransferTypeNotFound,
			"transfer type %s not found", id).With("transfer_type_id", id)}, nil
	}
	if tt.ResortID != "" && tt.ResortID != resortID {
		return nil, []validation.Item{mismatch("transfer type", id, resortID)}, nil
	}
	cost, err := GuestCost(tt.GuestPricing, guests, 1)
	if err != nil {
		return nil, nil, err
	}
	return newLine(refdata.ComponentTransfer, tt.ID, tt.Name, tt.PricingMode, guests, 1, false, cost), nil, nil
}

// PriceActivity prices an activity once for the leg. Date-specific
// activities must run on at least one night of the stay.
func PriceActivity(cat Catalog, resortID, id string, guests occupancy.Guests, checkIn, checkOut calendar.Date) (*Line, []validation.Item, error) {
	act, ok := cat.Activity(id)
	if !ok {
		return nil, []validation.Item{validation.NewBlocking(validation.CodeActivityNotFound,
			"activity %s not found", id).With("activity_id", id)}, nil
	}
	if act.ResortID != resortID {
		return nil, []validation.Item{mismatch("activity", id, resortID)}, nil
	}
	if act.IsDateSpecific && !availableDuring(act.AvailableDates, checkIn, checkOut) {
		return nil, []validation.Item{validation.NewBlocking(validation.CodeActivityNotAvailable,
			"%s is not available between %s and %s", act.Name, checkIn, checkOut).With("activity_id", id)}, nil
	}
	cost, err := GuestCost(act.GuestPricing, guests, 1)
	if err != nil {
		return nil, nil, err
	}
	return newLine(refdata.ComponentActivity, act.ID, act.Name, act.PricingMode, guests, 1, false, cost), nil, nil
}

// FestiveSupplements prices every supplement triggered by the stay. All
// triggered supplements are mandatory: asking to remove one only produces a
// warning.
func FestiveSupplements(cat Catalog, resortID, roomTypeID string, guests occupancy.Guests, checkIn, checkOut calendar.Date, removed []string) ([]Line, []validation.Item, error) {
	removeReq := make(map[string]bool, len(removed))
	for _, id := range removed {
		removeReq[id] = true
	}
	var (
		lines []Line
		items []validation.Item
	)
	for _, fs := range cat.FestiveSupplements(resortID) {
		if !appliesToRoom(fs.RoomTypeIDs, roomTypeID) || !triggered(fs, checkIn, checkOut) {
			continue
		}
		cost, err := GuestCost(fs.GuestPricing, guests, 1)
		if err != nil {
			return nil, nil, err
		}
		lines = append(lines, *newLine(refdata.ComponentFestiveSupplement, fs.ID, fs.Name, fs.PricingMode, guests, 1, true, cost))
		items = append(items, validation.NewWarning(validation.CodeFestiveSupplementApplied,
			"%s applied to the stay", fs.Name).With("festive_supplement_id", fs.ID))
		if removeReq[fs.ID] {
			items = append(items, validation.NewWarning(validation.CodeMandatorySupplementRetained,
				"%s is mandatory and cannot be removed", fs.Name).With("festive_supplement_id", fs.ID))
		}
	}
	return lines, items, nil
}

// GuestCost prices p for the party, multiplied by times. Per-person modes sum
// the adult cost and each child's band cost; flat modes ignore the party.
func GuestCost(p refdata.GuestPricing, guests occupancy.Guests, times int) (pricing.Money, error) {
	var once pricing.Money
	switch p.PricingMode {
	case refdata.PricingPerPerson:
		adults, err := p.AdultCost.MulInt(guests.Adults)
		if err != nil {
			return pricing.Zero, err
		}
		once = adults
		for _, c := range guests.Children {
			if once, err = once.Add(p.ChildCost(c.AgeBandID)); err != nil {
				return pricing.Zero, err
			}
		}
	default:
		once = p.FlatCost
	}
	return once.MulInt(times)
}

func newLine(kind refdata.ComponentType, id, name string, mode refdata.PricingMode, guests occupancy.Guests, times int, mandatory bool, cost pricing.Money) *Line {
	return &Line{
		Kind:        kind,
		ReferenceID: id,
		Name:        name,
		PricingMode: mode,
		Adults:      guests.Adults,
		Children:    len(guests.Children),
		Times:       times,
		IsMandatory: mandatory,
		Pricing:     pricing.CostOnly(cost),
	}
}

func mismatch(kind, id, resortID string) validation.Item {
	return validation.NewBlocking(validation.CodeComponentResortMismatch,
		"%s %s does not belong to resort %s", kind, id, resortID).
		With("component_id", id).With("resort_id", resortID)
}

func availableDuring(dates []calendar.Date, checkIn, checkOut calendar.Date) bool {
	for _, d := range dates {
		if calendar.InStay(d, checkIn, checkOut) {
			return true
		}
	}
	return false
}

func appliesToRoom(roomTypeIDs []string, roomTypeID string) bool {
	if len(roomTypeIDs) == 0 {
		return true
	}
	for _, id := range roomTypeIDs {
		if id == roomTypeID {
			return true
		}
	}
	return false
}

func triggered(fs refdata.FestiveSupplement, checkIn, checkOut calendar.Date) bool {
	for _, d := range fs.TriggerDates {
		if calendar.InStay(d, checkIn, checkOut) && calendar.OptionalWindow(d, fs.ValidFrom, fs.ValidTo) {
			return true
		}
	}
	return false
}
