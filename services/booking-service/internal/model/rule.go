package model

import "time"

// AvailabilityRule is one weekly recurring window. DayOfWeek is ISO: 1 = Monday … 7 = Sunday.
type AvailabilityRule struct {
	ID         int64
	ProviderID string
	DayOfWeek  int
	Start      Clock
	End        Clock
	Active     bool
}

// ISOWeekday maps time.Weekday (Sunday = 0) onto 1..7 with Monday first.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// DateOnly truncates t to midnight of its calendar day in loc.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
