package refdata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"sort"
	"strings"
)

// Store is a read-only, indexed snapshot of Data. It is safe for concurrent
// use because nothing mutates it after NewStore returns.
type Store struct {
	currencies      map[string]Currency
	resorts         map[string]Resort
	roomTypes       map[string]RoomType
	seasons         map[string]Season
	seasonsByResort map[string][]Season
	rates           map[rateKey][]Rate
	extraCharges    map[string][]ExtraPersonCharge
	ageBands        []ChildAgeBand
	ageBandsByID    map[string]ChildAgeBand
	mealPlans       map[string]MealPlan
	transferTypes   map[string]TransferType
	activities      map[string]Activity
	taxes           map[string][]TaxConfiguration
	discounts       map[string][]Discount
	resortMarkup    map[string]MarkupConfiguration
	globalMarkup    *MarkupConfiguration
	festive         map[string][]FestiveSupplement
	minimumStays    map[string][]MinimumStayRule
	blackouts       map[string][]BlackoutDate
	counts          map[string]int
	checksum        string
}

type rateKey struct {
	roomTypeID string
	seasonID   string
}

// NewStore indexes data. It does not validate; run Validate first when the
// data comes from outside the process.
func NewStore(data Data) *Store {
	s := &Store{
		currencies:      make(map[string]Currency, len(data.Currencies)),
		resorts:         make(map[string]Resort, len(data.Resorts)),
		roomTypes:       make(map[string]RoomType, len(data.RoomTypes)),
		seasons:         make(map[string]Season, len(data.Seasons)),
		seasonsByResort: make(map[string][]Season),
		rates:           make(map[rateKey][]Rate),
		extraCharges:    make(map[string][]ExtraPersonCharge),
		ageBandsByID:    make(map[string]ChildAgeBand, len(data.ChildAgeBands)),
		mealPlans:       make(map[string]MealPlan, len(data.MealPlans)),
		transferTypes:   make(map[string]TransferType, len(data.TransferTypes)),
		activities:      make(map[string]Activity, len(data.Activities)),
		taxes:           make(map[string][]TaxConfiguration),
		discounts:       make(map[string][]Discount),
		resortMarkup:    make(map[string]MarkupConfiguration),
		festive:         make(map[string][]FestiveSupplement),
		minimumStays:    make(map[string][]MinimumStayRule),
		blackouts:       make(map[string][]BlackoutDate),
	}
	for _, c := range data.Currencies {
		s.currencies[strings.ToUpper(c.Code)] = c
	}
	for _, r := range data.Resorts {
		s.resorts[r.ID] = r
	}
	for _, rt := range data.RoomTypes {
		s.roomTypes[rt.ID] = rt
	}
	for _, season := range data.Seasons {
		s.seasons[season.ID] = season
		s.seasonsByResort[season.ResortID] = append(s.seasonsByResort[season.ResortID], season)
	}
	for id := range s.seasonsByResort {
		sort.SliceStable(s.seasonsByResort[id], func(i, j int) bool {
			a, b := s.seasonsByResort[id][i], s.seasonsByResort[id][j]
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			return a.ID < b.ID
		})
	}
	for _, rate := range data.Rates {
		key := rateKey{roomTypeID: rate.RoomTypeID, seasonID: rate.SeasonID}
		s.rates[key] = append(s.rates[key], rate)
	}
	for _, c := range data.ExtraPersonCharges {
		s.extraCharges[c.RoomTypeID] = append(s.extraCharges[c.RoomTypeID], c)
	}
	s.ageBands = slices.Clone(data.ChildAgeBands)
	sort.SliceStable(s.ageBands, func(i, j int) bool { return s.ageBands[i].MinAge < s.ageBands[j].MinAge })
	for _, b := range data.ChildAgeBands {
		s.ageBandsByID[b.ID] = b
	}
	for _, m := range data.MealPlans {
		s.mealPlans[m.ID] = m
	}
	for _, t := range data.TransferTypes {
		s.transferTypes[t.ID] = t
	}
	for _, a := range data.Activities {
		s.activities[a.ID] = a
	}
	for _, t := range data.TaxConfigurations {
		if !t.IsActive {
			continue
		}
		s.taxes[t.ResortID] = append(s.taxes[t.ResortID], t)
	}
	for id := range s.taxes {
		sort.SliceStable(s.taxes[id], func(i, j int) bool {
			return s.taxes[id][i].CalculationOrder < s.taxes[id][j].CalculationOrder
		})
	}
	for _, d := range data.Discounts {
		code := normalizeCode(d.Code)
		s.discounts[code] = append(s.discounts[code], d)
	}
	for _, m := range data.MarkupConfigurations {
		if m.ResortID == "" {
			global := m
			s.globalMarkup = &global
			continue
		}
		s.resortMarkup[m.ResortID] = m
	}
	for _, f := range data.FestiveSupplements {
		s.festive[f.ResortID] = append(s.festive[f.ResortID], f)
	}
	for _, r := range data.MinimumStayRules {
		s.minimumStays[r.ResortID] = append(s.minimumStays[r.ResortID], r)
	}
	for _, b := range data.BlackoutDates {
		s.blackouts[b.ResortID] = append(s.blackouts[b.ResortID], b)
	}
	s.counts = map[string]int{
		"currencies":            len(data.Currencies),
		"resorts":               len(data.Resorts),
		"room_types":            len(data.RoomTypes),
		"seasons":               len(data.Seasons),
		"rates":                 len(data.Rates),
		"extra_person_charges":  len(data.ExtraPersonCharges),
		"child_age_bands":       len(data.ChildAgeBands),
		"meal_plans":            len(data.MealPlans),
		"transfer_types":        len(data.TransferTypes),
		"activities":            len(data.Activities),
		"tax_configurations":    len(data.TaxConfigurations),
		"discounts":             len(data.Discounts),
		"markup_configurations": len(data.MarkupConfigurations),
		"festive_supplements":   len(data.FestiveSupplements),
		"minimum_stay_rules":    len(data.MinimumStayRules),
		"blackout_dates":        len(data.BlackoutDates),
	}
	if raw, err := json.Marshal(data); err == nil {
		sum := sha256.Sum256(raw)
		s.checksum = hex.EncodeToString(sum[:])
	}
	return s
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Checksum identifies the snapshot content; it changes whenever any record changes.
func (s *Store) Checksum() string { return s.checksum }

// Counts returns the number of records per collection.
func (s *Store) Counts() map[string]int {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

func (s *Store) Currency(code string) (Currency, bool) {
	c, ok := s.currencies[strings.ToUpper(code)]
	return c, ok
}

func (s *Store) Resort(id string) (Resort, bool) {
	r, ok := s.resorts[id]
	return r, ok
}

func (s *Store) RoomType(id string) (RoomType, bool) {
	rt, ok := s.roomTypes[id]
	return rt, ok
}

func (s *Store) Season(id string) (Season, bool) {
	season, ok := s.seasons[id]
	return season, ok
}

// SeasonsForResort returns the resort's seasons ordered by descending
// priority, then ascending id.
func (s *Store) SeasonsForResort(resortID string) []Season {
	return slices.Clone(s.seasonsByResort[resortID])
}

// RatesFor returns every rate, active or not, for the room type in the season.
func (s *Store) RatesFor(roomTypeID, seasonID string) []Rate {
	return slices.Clone(s.rates[rateKey{roomTypeID: roomTypeID, seasonID: seasonID}])
}

func (s *Store) ExtraPersonCharges(roomTypeID string) []ExtraPersonCharge {
	return slices.Clone(s.extraCharges[roomTypeID])
}

// AgeBands returns all child age bands ordered by minimum age.
func (s *Store) AgeBands() []ChildAgeBand {
	return slices.Clone(s.ageBands)
}

func (s *Store) AgeBand(id string) (ChildAgeBand, bool) {
	b, ok := s.ageBandsByID[id]
	return b, ok
}

func (s *Store) MealPlan(id string) (MealPlan, bool) {
	m, ok := s.mealPlans[id]
	return m, ok
}

func (s *Store) TransferType(id string) (TransferType, bool) {
	t, ok := s.transferTypes[id]
	return t, ok
}

func (s *Store) Activity(id string) (Activity, bool) {
	a, ok := s.activities[id]
	return a, ok
}

// TaxConfigurations returns the resort's active taxes in calculation order.
func (s *Store) TaxConfigurations(resortID string) []TaxConfiguration {
	return slices.Clone(s.taxes[resortID])
}

// DiscountsByCode returns every discount carrying code, matched case-insensitively.
func (s *Store) DiscountsByCode(code string) []Discount {
	return slices.Clone(s.discounts[normalizeCode(code)])
}

// MarkupFor returns the resort's markup configuration, falling back to the
// global one. global reports whether the fallback was used.
func (s *Store) MarkupFor(resortID string) (cfg MarkupConfiguration, global bool, ok bool) {
	if m, found := s.resortMarkup[resortID]; found {
		return m, false, true
	}
	if s.globalMarkup != nil {
		return *s.globalMarkup, true, true
	}
	return MarkupConfiguration{}, false, false
}

func (s *Store) FestiveSupplements(resortID string) []FestiveSupplement {
	return slices.Clone(s.festive[resortID])
}

func (s *Store) MinimumStayRules(resortID string) []MinimumStayRule {
	return slices.Clone(s.minimumStays[resortID])
}

func (s *Store) BlackoutDates(resortID string) []BlackoutDate {
	return slices.Clone(s.blackouts[resortID])
}
