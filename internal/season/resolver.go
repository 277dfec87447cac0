// Package season resolves the season and room rate of every night of a stay
// and applies resort stay restrictions.
package season

import (
	"sort"

	"github.com/noah-isme/atoll-quote/internal/calendar"
	"github.com/noah-isme/atoll-quote/internal/pricing"
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// Catalog is the reference data the resolver reads.
type Catalog interface {
	SeasonsForResort(resortID string) []refdata.Season
	Season(id string) (refdata.Season, bool)
	RatesFor(roomTypeID, seasonID string) []refdata.Rate
	MinimumStayRules(resortID string) []refdata.MinimumStayRule
	BlackoutDates(resortID string) []refdata.BlackoutDate
}

// NightlyRate is the priced room rate of one calendar night.
type NightlyRate struct {
	Date              calendar.Date     `json:"date"`
	SeasonID          string            `json:"season_id"`
	SeasonName        string            `json:"season_name"`
	RateID            string            `json:"rate_id"`
	RateValidTo       calendar.Date     `json:"-"`
	FromDefaultSeason bool              `json:"from_default_season"`
	Pricing           pricing.Breakdown `json:"pricing"`
}

// Resolution is the outcome of resolving every night of a stay.
type Resolution struct {
	Nights       []NightlyRate
	RoomSubtotal pricing.Money
	// SeasonIDs lists the distinct seasons touched, in stay order.
	SeasonIDs []string
}

// Resolve walks [checkIn, checkOut) night by night. A night without a
// season (and no permitted fallback) or without a valid rate yields a
// blocking item and stops resolution. Every change of season between
// consecutive nights yields its own boundary warning. The returned error is
// reserved for arithmetic failures.
func Resolve(cat Catalog, resort refdata.Resort, roomTypeID string, checkIn, checkOut calendar.Date) (Resolution, []validation.Item, error) {
	var (
		res      Resolution
		items    []validation.Item
		fallback bool
	)
	seasons := cat.SeasonsForResort(resort.ID)
	seen := map[string]bool{}
	total := pricing.Zero

	for _, night := range calendar.StayNights(checkIn, checkOut) {
		s, fromDefault, ok := seasonFor(cat, seasons, resort, night)
		if !ok {
			items = append(items, validation.NewBlocking(validation.CodeCalcSeasonNotFound,
				"no season covers %s at resort %s", night, resort.ID).
				With("date", night.String()).With("resort_id", resort.ID))
			return Resolution{}, items, nil
		}
		rate, ok := rateFor(cat, roomTypeID, s.ID, night)
		if !ok {
			items = append(items, validation.NewBlocking(validation.CodeCalcRateNotFound,
				"no rate for room type %s in season %s on %s", roomTypeID, s.Name, night).
				With("date", night.String()).With("season_id", s.ID).With("room_type_id", roomTypeID))
			return Resolution{}, items, nil
		}
		if n := len(res.Nights); n > 0 && res.Nights[n-1].SeasonID != s.ID {
			items = append(items, validation.NewWarning(validation.CodeSeasonBoundaryCrossing,
				"stay crosses from %s to %s on %s", res.Nights[n-1].SeasonName, s.Name, night).
				With("date", night.String()).With("from_season_id", res.Nights[n-1].SeasonID).With("to_season_id", s.ID))
		}
		if fromDefault && !fallback {
			fallback = true
			items = append(items, validation.NewWarning(validation.CodeDefaultSeasonFallback,
				"no explicit season covers %s, default season %s used", night, s.Name).
				With("date", night.String()).With("season_id", s.ID))
		}
		next, err := total.Add(rate.NightlyCost)
		if err != nil {
			return Resolution{}, items, err
		}
		total = next
		if !seen[s.ID] {
			seen[s.ID] = true
			res.SeasonIDs = append(res.SeasonIDs, s.ID)
		}
		res.Nights = append(res.Nights, NightlyRate{
			Date:              night,
			SeasonID:          s.ID,
			SeasonName:        s.Name,
			RateID:            rate.ID,
			RateValidTo:       rate.ValidTo,
			FromDefaultSeason: fromDefault,
			Pricing:           pricing.CostOnly(rate.NightlyCost),
		})
	}
	res.RoomSubtotal = total
	return res, items, nil
}

// seasonFor returns the explicit season covering d, or the resort default
// when fallback is allowed. seasons must be ordered by priority.
func seasonFor(cat Catalog, seasons []refdata.Season, resort refdata.Resort, d calendar.Date) (refdata.Season, bool, bool) {
	for _, s := range seasons {
		if s.Covers(d) {
			return s, false, true
		}
	}
	if resort.AllowDefaultSeasonFallback && resort.DefaultSeasonID != "" {
		if s, ok := cat.Season(resort.DefaultSeasonID); ok {
			return s, true, true
		}
	}
	return refdata.Season{}, false, false
}

func rateFor(cat Catalog, roomTypeID, seasonID string, d calendar.Date) (refdata.Rate, bool) {
	rates := cat.RatesFor(roomTypeID, seasonID)
	sort.Slice(rates, func(i, j int) bool { return rates[i].ID < rates[j].ID })
	for _, r := range rates {
		if r.ValidOn(d) {
			return r, true
		}
	}
	return refdata.Rate{}, false
}
