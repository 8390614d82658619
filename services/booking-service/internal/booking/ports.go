package booking

import (
	"context"
	"time"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/storage"
)

// FeatureBooking is the entitlement a provider needs before accepting bookings.
const FeatureBooking = "booking"

type ListFilter = storage.ListFilter

type RuleStore interface {
	ListRules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error)
	ActiveRulesForDay(ctx context.Context, providerID string, day int) ([]model.AvailabilityRule, error)
	ReplaceRules(ctx context.Context, providerID string, rules []model.AvailabilityRule) ([]model.AvailabilityRule, error)
	AvailableDays(ctx context.Context, providerID string) ([]int, error)
}

// BookingStore persists bookings. Insert must reject an overlapping active booking with
// storage.ErrConflict even when the caller's own check raced with another writer, and a
// reused idempotency key with storage.ErrDuplicateKey.
type BookingStore interface {
	Insert(ctx context.Context, b model.Booking, idempotencyKey string) (model.Booking, error)
	FindByIdempotencyKey(ctx context.Context, requesterID, key string) (model.Booking, error)
	Get(ctx context.Context, id string) (model.Booking, error)
	UpdateStatus(ctx context.Context, id string, from, to model.Status, providerNote *string) (model.Booking, error)
	ListActiveOnDate(ctx context.Context, providerID string, date time.Time, excludeID string) ([]model.Booking, error)
	ListForProvider(ctx context.Context, providerID string, f ListFilter) ([]model.Booking, error)
	ListForRequester(ctx context.Context, requesterID string, f ListFilter) ([]model.Booking, error)
	CountPending(ctx context.Context, providerID string) (int, error)
}

type Entitlements interface {
	CanUse(ctx context.Context, providerID string, feature string) (bool, error)
}

// Dispatcher delivers lifecycle events. It is called after the change is stored and must not
// block the caller on delivery; failures are its own to log.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt model.Event)
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, model.Event) {}
