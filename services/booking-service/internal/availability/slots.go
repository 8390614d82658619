package availability

import (
	"sort"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
)

// DefaultStep is the grid resolution of the booking calendar, in minutes.
const DefaultStep = 30

// NoCutoff disables the "not in the past" check in FreeSlots.
const NoCutoff model.Clock = -1

// FreeSlots returns the start times, stepping by step minutes from each window's start, for
// which [t, t+duration) fits in the window, overlaps no busy interval and is later than cutoff.
// Candidates from overlapping windows are deduplicated; the result is ascending.
func FreeSlots(windows []Interval, duration, step int, busy []Interval, cutoff model.Clock) []model.Clock {
	if duration <= 0 || step <= 0 {
		return nil
	}

	seen := make(map[model.Clock]struct{})
	var slots []model.Clock
	for _, w := range windows {
		for t := w.Start; t.Add(duration) <= w.End; t = t.Add(step) {
			if cutoff != NoCutoff && t <= cutoff {
				continue
			}
			if OverlapsAny(Span(t, duration), busy) {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			slots = append(slots, t)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// Ticks expands busy intervals into the step-minute grid marks they touch, deduplicated and
// ascending. A mark is the start of a grid cell, so a 13:15 booking shades the 13:00 cell.
// Calendar views use it to shade occupied cells.
func Ticks(busy []Interval, step int) []model.Clock {
	if step <= 0 {
		return nil
	}
	seen := make(map[model.Clock]struct{})
	var out []model.Clock
	for _, b := range busy {
		first := model.Clock(int(b.Start) / step * step)
		for t := first; t < b.End; t = t.Add(step) {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
