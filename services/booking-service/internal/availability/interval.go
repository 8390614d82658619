package availability

import "github.com/expertmarket/bookingengine/services/booking-service/internal/model"

// Interval is a half-open time-of-day range [Start, End) on a single date.
type Interval struct {
	Start model.Clock
	End   model.Clock
}

func Span(start model.Clock, durationMins int) Interval {
	return Interval{Start: start, End: start.Add(durationMins)}
}

// Overlaps reports whether two half-open intervals share any minute. Touching endpoints do not
// overlap, and the relation is symmetric.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && a.End > b.Start
}

func OverlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(iv, b) {
			return true
		}
	}
	return false
}

// Within reports whether iv lies entirely inside w.
func Within(iv, w Interval) bool {
	return iv.Start >= w.Start && iv.End <= w.End
}

// WithinAny reports whether iv fits inside a single window.
func WithinAny(iv Interval, windows []Interval) bool {
	for _, w := range windows {
		if Within(iv, w) {
			return true
		}
	}
	return false
}

// Windows converts rules into intervals, skipping inactive or empty ones.
func Windows(rules []model.AvailabilityRule) []Interval {
	out := make([]Interval, 0, len(rules))
	for _, r := range rules {
		if !r.Active || r.End <= r.Start {
			continue
		}
		out = append(out, Interval{Start: r.Start, End: r.End})
	}
	return out
}

// Busy converts bookings into intervals. Only bookings that hold calendar time are included.
func Busy(bookings []model.Booking) []Interval {
	out := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		if !b.Status.IsActive() {
			continue
		}
		out = append(out, Span(b.Start, b.DurationMins))
	}
	return out
}
