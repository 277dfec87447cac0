package season

import (
	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// CheckRestrictions applies blackout dates and minimum-stay rules to a stay.
// seasonIDs are the seasons the stay resolved to; a season-scoped minimum
// stay applies when any night falls in that season.
func CheckRestrictions(cat Catalog, resortID, roomTypeID string, checkIn, checkOut calendar.Date, seasonIDs []string) []validation.Item {
	var items []validation.Item
	last := checkOut.AddDays(-1)

	for _, b := range cat.BlackoutDates(resortID) {
		if b.RoomTypeID != "" && b.RoomTypeID != roomTypeID {
			continue
		}
		if b.StartDate.After(last) || b.EndDate.Before(checkIn) {
			continue
		}
		items = append(items, validation.NewBlocking(validation.CodeBlackoutDate,
			"stay overlaps blackout %s to %s", b.StartDate, b.EndDate).
			With("blackout_id", b.ID).With("reason", b.Reason))
	}

	inSeason := make(map[string]bool, len(seasonIDs))
	for _, id := range seasonIDs {
		inSeason[id] = true
	}
	nights := calendar.Nights(checkIn, checkOut)
	required, ruleID := 0, ""
	for _, r := range cat.MinimumStayRules(resortID) {
		if r.RoomTypeID != "" && r.RoomTypeID != roomTypeID {
			continue
		}
		if r.SeasonID != "" && !inSeason[r.SeasonID] {
			continue
		}
		if !calendar.OptionalWindow(checkIn, r.StartDate, r.EndDate) {
			continue
		}
		if r.MinNights > required {
			required, ruleID = r.MinNights, r.ID
		}
	}
	if nights < required {
		items = append(items, validation.NewBlocking(validation.CodeMinimumStayNotMet,
			"minimum stay is %d nights, requested %d", required, nights).
			With("rule_id", ruleID))
	}
	return items
}
