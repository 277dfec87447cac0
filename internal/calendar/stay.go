package calendar

// Range is an inclusive date window [Start, End].
type Range struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Valid reports whether both ends are set and Start <= End.
func (r Range) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// Contains reports whether d lies inside the window, ends included.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Nights returns the number of nights between check-in and check-out.
func Nights(checkIn, checkOut Date) int {
	return checkIn.DaysUntil(checkOut)
}

// StayNights lists every night of [checkIn, checkOut), one date per night.
func StayNights(checkIn, checkOut Date) []Date {
	n := Nights(checkIn, checkOut)
	if n <= 0 {
		return nil
	}
	out := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, checkIn.AddDays(i))
	}
	return out
}

// InStay reports whether d is one of the nights of [checkIn, checkOut).
func InStay(d, checkIn, checkOut Date) bool {
	return !d.Before(checkIn) && d.Before(checkOut)
}

// OptionalWindow reports whether d falls within [from, to], where an unset bound is open.
func OptionalWindow(d, from, to Date) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}
