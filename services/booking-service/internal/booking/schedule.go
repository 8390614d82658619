package booking

import (
	"context"
	"fmt"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/availability"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

// ScheduleResult reports which submitted rows were stored and which were dropped.
type ScheduleResult struct {
	Accepted []model.AvailabilityRule
	Rejected []availability.Rejection
}

func (s *Service) ListRules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error) {
	rules, err := s.rules.ListRules(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// RulesForDay returns the active windows of an ISO weekday, ordered by start.
func (s *Service) RulesForDay(ctx context.Context, providerID string, day int) ([]model.AvailabilityRule, error) {
	if day < 1 || day > 7 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBooking, availability.ErrInvalidDay)
	}
	rules, err := s.rules.ActiveRulesForDay(ctx, providerID, day)
	if err != nil {
		return nil, fmt.Errorf("rules for day %d: %w", day, err)
	}
	return rules, nil
}

// ReplaceSchedule swaps the provider's whole weekly schedule for the valid subset of proposed.
// Invalid rows are reported, never returned as an error; when every row is invalid the
// provider ends up with an empty schedule.
func (s *Service) ReplaceSchedule(ctx context.Context, providerID string, proposed []availability.ProposedRule) (res ScheduleResult, err error) {
	ctx, span := s.startSpan(ctx, "booking.ReplaceSchedule",
		attribute.String("provider.id", providerID),
		attribute.Int("rules.proposed", len(proposed)),
	)
	defer func() { endSpan(span, err) }()

	if providerID == "" {
		return ScheduleResult{}, fmt.Errorf("%w: provider is required", ErrInvalidBooking)
	}
	accepted, rejected := availability.Validate(providerID, proposed)
	saved, err := s.rules.ReplaceRules(ctx, providerID, accepted)
	if err != nil {
		return ScheduleResult{}, fmt.Errorf("replace schedule: %w", err)
	}
	if len(rejected) > 0 {
		s.logger.Info("schedule rows rejected", "provider_id", providerID, "rejected", len(rejected), "accepted", len(saved))
	}
	return ScheduleResult{Accepted: saved, Rejected: rejected}, nil
}

func (s *Service) AvailableDays(ctx context.Context, providerID string) ([]int, error) {
	days, err := s.rules.AvailableDays(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("available days: %w", err)
	}
	return days, nil
}
