package model

import (
	"fmt"
	"strings"
	"time"
)

// Clock is a time of day in minutes after midnight. Values past 24:00 appear only as the end
// of an interval that runs up to or over midnight.
type Clock int

const MinutesPerDay Clock = 24 * 60

// ParseClock parses "HH:MM". A trailing ":00" seconds part is accepted so stored values
// round-trip.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil || t.Second() != 0 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// ClockOf returns the wall-clock minute of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

// On anchors c to the wall clock of date's calendar day in loc. On a DST transition day the
// result is the instant the local clock reads c, not midnight plus c minutes.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, loc)
}

// String renders "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Long renders "HH:MM:SS", the stored representation.
func (c Clock) Long() string {
	return c.String() + ":00"
}

// Microseconds converts to the pgtype.Time representation.
func (c Clock) Microseconds() int64 {
	return int64(c) * int64(time.Minute/time.Microsecond)
}

// ClockFromMicroseconds truncates sub-minute precision.
func ClockFromMicroseconds(us int64) Clock {
	return Clock(us / int64(time.Minute/time.Microsecond))
}
