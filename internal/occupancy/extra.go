package occupancy

import (
	"sort"
	"strconv"

	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/season"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// ChargeCatalog is the reference data needed to price extra guests.
type ChargeCatalog interface {
	ExtraPersonCharges(roomTypeID string) []refdata.ExtraPersonCharge
}

// ExtraCharge is one priced extra-person charge, aggregated over every guest
// and night it applied to. Units is person-nights for per-night charges and
// persons for per-stay charges.
type ExtraCharge struct {
	ChargeID   string             `json:"charge_id"`
	GuestType  refdata.GuestType  `json:"guest_type"`
	AgeBandID  string             `json:"age_band_id,omitempty"`
	SeasonID   string             `json:"season_id,omitempty"`
	ChargeType refdata.ChargeType `json:"charge_type"`
	Guests     int                `json:"guests"`
	Units      int                `json:"units"`
	UnitCost   pricing.Money      `json:"unit_cost"`
	Pricing    pricing.Breakdown  `json:"pricing"`
}

type extraGuest struct {
	guestType refdata.GuestType
	bandID    string
	label     string
}

// chargeableGuests lists guests above base occupancy. Adult and child base
// slots do not cross-fill; the youngest children take the free child slots.
func chargeableGuests(rt refdata.RoomType, guests Guests) []extraGuest {
	var out []extraGuest
	for i := rt.BaseOccupancyAdults; i < guests.Adults; i++ {
		out = append(out, extraGuest{guestType: refdata.GuestAdult, label: "adult " + strconv.Itoa(i+1)})
	}
	children := make([]Child, len(guests.Children))
	copy(children, guests.Children)
	sort.SliceStable(children, func(i, j int) bool { return children[i].Age < children[j].Age })
	for i := rt.BaseOccupancyChildren; i < len(children); i++ {
		c := children[i]
		out = append(out, extraGuest{guestType: refdata.GuestChild, bandID: c.AgeBandID, label: "child " + strconv.Itoa(c.Index+1)})
	}
	return out
}

// ExtraPersonCharges prices every guest above base occupancy across the
// stay's nights. Per-night charges accrue once per guest per night using that
// night's season. A guest pays at most one per-stay charge, the one selected
// on the earliest night that resolves to a per-stay charge.
func ExtraPersonCharges(cat ChargeCatalog, rt refdata.RoomType, guests Guests, nights []season.NightlyRate) ([]ExtraCharge, pricing.Money, []validation.Item, error) {
	extras := chargeableGuests(rt, guests)
	if len(extras) == 0 || len(nights) == 0 {
		return nil, pricing.Zero, nil, nil
	}
	charges := cat.ExtraPersonCharges(rt.ID)

	var (
		lines []ExtraCharge
		index = map[string]int{}
		items []validation.Item
	)
	for _, g := range extras {
		stayCharged := false
		touched := map[string]bool{}
		for _, night := range nights {
			c, ok := selectCharge(charges, g, night.SeasonID)
			if !ok {
				items = append(items, validation.NewBlocking(validation.CodeExtraPersonChargeNotFound,
					"no extra person charge for %s in room type %s", g.label, rt.Name).
					With("guest_type", string(g.guestType)).With("age_band_id", g.bandID).With("season_id", night.SeasonID))
				return nil, pricing.Zero, items, nil
			}
			if c.ChargeType == refdata.ChargePerStay {
				if stayCharged {
					continue
				}
				stayCharged = true
			}
			pos, exists := index[c.ID]
			if !exists {
				pos = len(lines)
				index[c.ID] = pos
				lines = append(lines, ExtraCharge{
					ChargeID:   c.ID,
					GuestType:  c.GuestType,
					AgeBandID:  c.AgeBandID,
					SeasonID:   c.SeasonID,
					ChargeType: c.ChargeType,
					UnitCost:   c.Cost,
				})
			}
			if !touched[c.ID] {
				touched[c.ID] = true
				lines[pos].Guests++
			}
			lines[pos].Units++
		}
	}

	total := pricing.Zero
	for i := range lines {
		cost, err := lines[i].UnitCost.MulInt(lines[i].Units)
		if err != nil {
			return nil, pricing.Zero, items, err
		}
		lines[i].Pricing = pricing.CostOnly(cost)
		if total, err = total.Add(cost); err != nil {
			return nil, pricing.Zero, items, err
		}
	}
	return lines, total, items, nil
}

// selectCharge picks the most specific charge for a guest on a night:
// season-specific beats season-agnostic, band-specific beats band-agnostic,
// ties go to the lowest id.
func selectCharge(charges []refdata.ExtraPersonCharge, g extraGuest, seasonID string) (refdata.ExtraPersonCharge, bool) {
	best, bestScore, found := refdata.ExtraPersonCharge{}, -1, false
	for _, c := range charges {
		if c.GuestType != g.guestType {
			continue
		}
		if c.SeasonID != "" && c.SeasonID != seasonID {
			continue
		}
		if c.AgeBandID != "" && c.AgeBandID != g.bandID {
			continue
		}
		score := 0
		if c.SeasonID != "" {
			score += 2
		}
		if c.AgeBandID != "" {
			score++
		}
		if score > bestScore || (score == bestScore && c.ID < best.ID) {
			best, bestScore, found = c, score, true
		}
	}
	return best, found
}

func childIndex(i int) string { return strconv.Itoa(i) }
