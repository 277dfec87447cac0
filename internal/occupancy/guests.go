// Package occupancy resolves child age bands, enforces room occupancy limits
// and prices guests above a room type's base occupancy.
package occupancy

import (
	"github.com/noah-isme/atoll-quote/internal/refdata"
	"github.com/noah-isme/atoll-quote/internal/validation"
)

// ChildInput is one child as supplied by the caller. AgeBandID is optional.
type ChildInput struct {
	Age       *int   `json:"age"`
	AgeBandID string `json:"age_band_id,omitempty"`
}

// Child is a child with its resolved age band.
type Child struct {
	Index       int    `json:"index"`
	Age         int    `json:"age"`
	AgeBandID   string `json:"age_band_id"`
	AgeBandName string `json:"age_band_name"`
}

// Guests is the resolved party of a room.
type Guests struct {
	Adults   int     `json:"adults"`
	Children []Child `json:"children"`
}

// Total returns adults plus children.
func (g Guests) Total() int { return g.Adults + len(g.Children) }

// BandCatalog is the reference data needed for age-band resolution.
type BandCatalog interface {
	AgeBands() []refdata.ChildAgeBand
	AgeBand(id string) (refdata.ChildAgeBand, bool)
}

// ResolveChildren maps every child to an age band. An explicit band id wins
// when it exists and contains the child's age; a band that disagrees with
// the age is a blocking mismatch rather than a silent override.
func ResolveChildren(cat BandCatalog, inputs []ChildInput) ([]Child, []validation.Item) {
	var (
		out   = make([]Child, 0, len(inputs))
		items []validation.Item
	)
	bands := cat.AgeBands()
	for i, in := range inputs {
		idx := childIndex(i)
		if in.Age == nil {
			items = append(items, validation.NewBlocking(validation.CodeMissingChildAge,
				"child %d has no age", i+1).With("child_index", idx))
			continue
		}
		age := *in.Age
		if age < 0 || age > refdata.MaxChildAge {
			items = append(items, validation.NewBlocking(validation.CodeInvalidChildAge,
				"child %d age %d is outside 0-%d", i+1, age, refdata.MaxChildAge).With("child_index", idx))
			continue
		}
		if in.AgeBandID != "" {
			band, ok := cat.AgeBand(in.AgeBandID)
			if !ok {
				items = append(items, validation.NewBlocking(validation.CodeAgeBandNotFound,
					"age band %s not found", in.AgeBandID).With("child_index", idx))
				continue
			}
			if !band.Contains(age) {
				items = append(items, validation.NewBlocking(validation.CodeAgeBandMismatch,
					"child %d age %d is outside band %s", i+1, age, band.Name).
					With("child_index", idx).With("age_band_id", band.ID))
				continue
			}
			out = append(out, Child{Index: i, Age: age, AgeBandID: band.ID, AgeBandName: band.Name})
			continue
		}
		band, ok := bandForAge(bands, age)
		if !ok {
			items = append(items, validation.NewBlocking(validation.CodeAgeBandNotFound,
				"no age band covers age %d", age).With("child_index", idx))
			continue
		}
		out = append(out, Child{Index: i, Age: age, AgeBandID: band.ID, AgeBandName: band.Name})
	}
	return out, items
}

func bandForAge(bands []refdata.ChildAgeBand, age int) (refdata.ChildAgeBand, bool) {
	for _, b := range bands {
		if b.Contains(age) {
			return b, true
		}
	}
	return refdata.ChildAgeBand{}, false
}

// CheckOccupancy rejects parties the room cannot hold.
func CheckOccupancy(rt refdata.RoomType, adults, children int) []validation.Item {
	var items []validation.Item
	if adults < 1 {
		items = append(items, validation.NewBlocking(validation.CodeNoAdults, "at least one adult is required"))
	}
	if adults > rt.MaxAdults {
		items = append(items, validation.NewBlocking(validation.CodeMaxAdultsExceeded,
			"%s holds at most %d adults, requested %d", rt.Name, rt.MaxAdults, adults))
	}
	if children > rt.MaxChildren {
		items = append(items, validation.NewBlocking(validation.CodeMaxChildrenExceeded,
			"%s holds at most %d children, requested %d", rt.Name, rt.MaxChildren, children))
	}
	if adults+children > rt.MaxTotalOccupancy {
		items = append(items, validation.NewBlocking(validation.CodeMaxOccupancyExceeded,
			"%s holds at most %d guests, requested %d", rt.Name, rt.MaxTotalOccupancy, adults+children))
	}
	return items
}
