package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/availability"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type CreateRequest struct {
	ProviderID   string
	RequesterID  string
	Date         time.Time
	Start        model.Clock
	DurationMins int
	Note         string

	// IdempotencyKey makes retries of the same request return the booking the first attempt
	// created instead of a conflict with it.
	IdempotencyKey string
}

const maxIdempotencyKeyLen = 255

func (r CreateRequest) validate() error {
	switch {
	case strings.TrimSpace(r.ProviderID) == "":
		return fmt.Errorf("%w: provider is required", ErrInvalidBooking)
	case strings.TrimSpace(r.RequesterID) == "":
		return fmt.Errorf("%w: requester is required", ErrInvalidBooking)
	case r.DurationMins <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidBooking)
	case r.Start < 0 || r.Start >= model.MinutesPerDay:
		return fmt.Errorf("%w: start must be a time of day", ErrInvalidBooking)
	case len(r.IdempotencyKey) > maxIdempotencyKeyLen:
		return fmt.Errorf("%w: idempotency key is too long", ErrInvalidBooking)
	}
	return nil
}

// Create books a pending session. The checks run in order: entitlement, start in the future,
// no overlap with an active booking, inside one active window of that weekday. A request that
// repeats an idempotency key the requester already used returns the stored booking.
func (s *Service) Create(ctx context.Context, req CreateRequest) (b model.Booking, err error) {
	ctx, span := s.startSpan(ctx, "booking.Create",
		attribute.String("provider.id", req.ProviderID),
		attribute.String("date", req.Date.Format(time.DateOnly)),
		attribute.String("start", req.Start.String()),
		attribute.Int("duration", req.DurationMins),
	)
	defer func() { endSpan(span, err) }()

	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := req.validate(); err != nil {
		return model.Booking{}, err
	}
	candidate := model.Booking{
		ID:           uuid.NewString(),
		ProviderID:   req.ProviderID,
		RequesterID:  req.RequesterID,
		Date:         s.day(req.Date),
		Start:        req.Start,
		DurationMins: req.DurationMins,
		Status:       model.StatusPending,
		Note:         strings.TrimSpace(req.Note),
	}

	if prev, ok, err := s.replay(ctx, candidate, req.IdempotencyKey); err != nil || ok {
		return prev, err
	}

	ok, err := s.entitlements.CanUse(ctx, req.ProviderID, FeatureBooking)
	if err != nil {
		return model.Booking{}, fmt.Errorf("%w: %w", ErrEntitlementsUnavailable, err)
	}
	if !ok {
		return model.Booking{}, ErrNotEntitled
	}

	if !candidate.StartsAt(s.loc).After(s.now()) {
		return model.Booking{}, ErrInPast
	}

	conflict, err := s.HasConflict(ctx, req.ProviderID, candidate.Date, req.Start, req.DurationMins, "")
	if err != nil {
		return model.Booking{}, err
	}
	if conflict {
		return s.conflictOrReplay(ctx, candidate, req.IdempotencyKey)
	}

	rules, err := s.rules.ActiveRulesForDay(ctx, req.ProviderID, model.ISOWeekday(candidate.Date))
	if err != nil {
		return model.Booking{}, fmt.Errorf("load rules: %w", err)
	}
	if !availability.WithinAny(availability.Span(req.Start, req.DurationMins), availability.Windows(rules)) {
		return model.Booking{}, ErrOutsideAvailability
	}

	b, err = s.bookings.Insert(ctx, candidate, req.IdempotencyKey)
	switch {
	case errors.Is(err, storage.ErrConflict):
		return s.conflictOrReplay(ctx, candidate, req.IdempotencyKey)
	case errors.Is(err, storage.ErrDuplicateKey):
		if prev, ok, replayErr := s.replay(ctx, candidate, req.IdempotencyKey); replayErr != nil || ok {
			return prev, replayErr
		}
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	case err != nil:
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	span.SetAttributes(attribute.String("booking.id", b.ID))
	s.logger.Info("booking created", "booking_id", b.ID, "provider_id", b.ProviderID, "date", b.Date.Format(time.DateOnly), "start", b.Start.String())

	s.dispatcher.Dispatch(ctx, model.Event{
		Name:    model.EventCreated,
		Booking: b,
		Actor:   model.Actor{ID: req.RequesterID, Role: model.RoleRequester},
	})
	return b, nil
}

// conflictOrReplay resolves an overlap. The overlapping booking may be the one a concurrent
// attempt with the same idempotency key just stored.
func (s *Service) conflictOrReplay(ctx context.Context, want model.Booking, key string) (model.Booking, error) {
	prev, ok, err := s.replay(ctx, want, key)
	if err != nil {
		return model.Booking{}, err
	}
	if ok {
		return prev, nil
	}
	return model.Booking{}, ErrConflict
}

// replay looks up the booking stored under key. The stored booking must describe the same
// slot as want; a key reused for another slot is ErrKeyReused.
func (s *Service) replay(ctx context.Context, want model.Booking, key string) (model.Booking, bool, error) {
	if key == "" {
		return model.Booking{}, false, nil
	}
	prev, err := s.bookings.FindByIdempotencyKey(ctx, want.RequesterID, key)
	if storage.IsNotFound(err) {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, fmt.Errorf("find idempotency key: %w", err)
	}
	if prev.ProviderID != want.ProviderID || !sameDate(prev.Date, want.Date) ||
		prev.Start != want.Start || prev.DurationMins != want.DurationMins {
		return model.Booking{}, false, ErrKeyReused
	}
	s.logger.Info("booking create replayed", "booking_id", prev.ID, "requester_id", want.RequesterID)
	return prev, true, nil
}

// sameDate compares calendar dates; stored dates come back at UTC midnight.
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Transition moves a booking to status on behalf of actor. Providers may take every allowed
// edge; requesters may only cancel a pending request. providerNote is stored only when the
// provider acts and supplies one.
func (s *Service) Transition(ctx context.Context, id string, actor model.Actor, status string, providerNote *string) (b model.Booking, err error) {
	ctx, span := s.startSpan(ctx, "booking.Transition",
		attribute.String("booking.id", id),
		attribute.String("actor.role", string(actor.Role)),
		attribute.String("status", status),
	)
	defer func() { endSpan(span, err) }()

	target, err := model.ParseStatus(strings.TrimSpace(status))
	if err != nil {
		return model.Booking{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if !canAct(current, actor) {
		return model.Booking{}, ErrForbidden
	}
	if current.Status.IsTerminal() {
		return model.Booking{}, fmt.Errorf("%w: %s is final", ErrInvalidTransition, current.Status)
	}
	if !current.Status.CanTransitionTo(target) {
		return model.Booking{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, target)
	}
	if actor.Role == model.RoleRequester && (current.Status != model.StatusPending || target != model.StatusCancelled) {
		return model.Booking{}, ErrForbidden
	}
	if actor.Role != model.RoleProvider {
		providerNote = nil
	}

	b, err = s.bookings.UpdateStatus(ctx, id, current.Status, target, providerNote)
	switch {
	case errors.Is(err, storage.ErrStale):
		return model.Booking{}, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	case storage.IsNotFound(err):
		return model.Booking{}, ErrNotFound
	case err != nil:
		return model.Booking{}, fmt.Errorf("update status: %w", err)
	}
	s.logger.Info("booking transitioned", "booking_id", id, "from", current.Status.String(), "to", target.String(), "actor_role", string(actor.Role))

	s.dispatcher.Dispatch(ctx, model.Event{Name: model.EventFor(target), Booking: b, Actor: actor})
	return b, nil
}

func canAct(b model.Booking, actor model.Actor) bool {
	switch actor.Role {
	case model.RoleProvider:
		return actor.ID != "" && actor.ID == b.ProviderID
	case model.RoleRequester:
		return actor.ID != "" && actor.ID == b.RequesterID
	default:
		return false
	}
}

// CanView reports whether actor is a party to the booking.
func CanView(b model.Booking, actor model.Actor) bool {
	return canAct(b, actor)
}

func (s *Service) Get(ctx context.Context, id string) (model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Booking{}, ErrNotFound
	}
	b, err := s.bookings.Get(ctx, id)
	if storage.IsNotFound(err) {
		return model.Booking{}, ErrNotFound
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (s *Service) ListForProvider(ctx context.Context, providerID string, f ListFilter) ([]model.Booking, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	if !f.FromDate.IsZero() {
		f.FromDate = s.day(f.FromDate)
	}
	out, err := s.bookings.ListForProvider(ctx, providerID, f)
	if err != nil {
		return nil, fmt.Errorf("list provider bookings: %w", err)
	}
	return out, nil
}

func (s *Service) ListForRequester(ctx context.Context, requesterID string, f ListFilter) ([]model.Booking, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	out, err := s.bookings.ListForRequester(ctx, requesterID, f)
	if err != nil {
		return nil, fmt.Errorf("list requester bookings: %w", err)
	}
	return out, nil
}

func (s *Service) CountPending(ctx context.Context, providerID string) (int, error) {
	n, err := s.bookings.CountPending(ctx, providerID)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}
