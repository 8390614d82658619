package availability

import (
	"errors"
	"strconv"
	"strings"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
)

var (
	ErrInvalidDay   = errors.New("day must be between 1 (Monday) and 7 (Sunday)")
	ErrInvalidStart = errors.New("start must be HH:MM")
	ErrInvalidEnd   = errors.New("end must be HH:MM")
	ErrEmptyWindow  = errors.New("end must be after start")
)

// ProposedRule is one row of a submitted weekly schedule, as entered in the form.
// A nil Active means the window is active.
type ProposedRule struct {
	Day    string
	Start  string
	End    string
	Active *bool
}

// Rejection records why a proposed row was dropped.
type Rejection struct {
	Index  int
	Rule   ProposedRule
	Reason error
}

// Validate splits proposed rows into rules to persist and rejected rows. It never fails as a
// whole.
func Validate(providerID string, proposed []ProposedRule) ([]model.AvailabilityRule, []Rejection) {
	accepted := make([]model.AvailabilityRule, 0, len(proposed))
	var rejected []Rejection
	for i, p := range proposed {
		rule, err := parseRule(providerID, p)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Rule: p, Reason: err})
			continue
		}
		accepted = append(accepted, rule)
	}
	return accepted, rejected
}

func parseRule(providerID string, p ProposedRule) (model.AvailabilityRule, error) {
	day, err := strconv.Atoi(strings.TrimSpace(p.Day))
	if err != nil || day < 1 || day > 7 {
		return model.AvailabilityRule{}, ErrInvalidDay
	}
	start, err := parseHHMM(p.Start)
	if err != nil {
		return model.AvailabilityRule{}, ErrInvalidStart
	}
	end, err := parseHHMM(p.End)
	if err != nil {
		return model.AvailabilityRule{}, ErrInvalidEnd
	}
	if end <= start {
		return model.AvailabilityRule{}, ErrEmptyWindow
	}
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return model.AvailabilityRule{
		ProviderID: providerID,
		DayOfWeek:  day,
		Start:      start,
		End:        end,
		Active:     active,
	}, nil
}

// parseHHMM accepts exactly two-digit hours and minutes, as the form widget emits.
func parseHHMM(s string) (model.Clock, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrInvalidStart
	}
	return model.ParseClock(s)
}
