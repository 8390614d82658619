package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/availability"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

// FreeSlots returns the bookable start times of the provider on date for a session of duration
// minutes. Dates before today have none; on today only starts after the current minute count.
func (s *Service) FreeSlots(ctx context.Context, providerID string, date time.Time, duration int) (slots []model.Clock, err error) {
	ctx, span := s.startSpan(ctx, "booking.FreeSlots",
		attribute.String("provider.id", providerID),
		attribute.String("date", date.Format(time.DateOnly)),
		attribute.Int("duration", duration),
	)
	defer func() { endSpan(span, err) }()

	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidBooking)
	}
	day := s.day(date)
	now := s.now().In(s.loc)
	today := model.DateOnly(now, s.loc)
	cutoff := availability.NoCutoff
	switch {
	case day.Before(today):
		return []model.Clock{}, nil
	case day.Equal(today):
		cutoff = model.ClockOf(now)
	}

	rules, err := s.rules.ActiveRulesForDay(ctx, providerID, model.ISOWeekday(day))
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	windows := availability.Windows(rules)
	if len(windows) == 0 {
		return []model.Clock{}, nil
	}
	booked, err := s.bookings.ListActiveOnDate(ctx, providerID, day, "")
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	slots = availability.FreeSlots(windows, duration, s.step, availability.Busy(booked), cutoff)
	if slots == nil {
		slots = []model.Clock{}
	}
	return slots, nil
}

// BookedTicks lists the grid marks covered by active bookings on date, for calendar shading.
func (s *Service) BookedTicks(ctx context.Context, providerID string, date time.Time) ([]model.Clock, error) {
	booked, err := s.bookings.ListActiveOnDate(ctx, providerID, s.day(date), "")
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	ticks := availability.Ticks(availability.Busy(booked), s.step)
	if ticks == nil {
		ticks = []model.Clock{}
	}
	return ticks, nil
}

// HasConflict reports whether [start, start+duration) overlaps an active booking of the
// provider on date. excludeID leaves one booking out, for rescheduling it.
func (s *Service) HasConflict(ctx context.Context, providerID string, date time.Time, start model.Clock, duration int, excludeID string) (bool, error) {
	booked, err := s.bookings.ListActiveOnDate(ctx, providerID, s.day(date), excludeID)
	if err != nil {
		return false, fmt.Errorf("load bookings: %w", err)
	}
	return availability.OverlapsAny(availability.Span(start, duration), availability.Busy(booked)), nil
}
