// Package bookingtest provides in-memory stores for tests of code built on the booking service.
package bookingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/availability"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/storage"
)

// Rules is an in-memory RuleStore.
type Rules struct {
	mu    sync.Mutex
	rules map[string][]model.AvailabilityRule
	seq   int64
}

func NewRules() *Rules {
	return &Rules{rules: make(map[string][]model.AvailabilityRule)}
}

func (m *Rules) ListRules(_ context.Context, providerID string) ([]model.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]model.AvailabilityRule(nil), m.rules[providerID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (m *Rules) ActiveRulesForDay(ctx context.Context, providerID string, day int) ([]model.AvailabilityRule, error) {
	all, _ := m.ListRules(ctx, providerID)
	var out []model.AvailabilityRule
	for _, r := range all {
		if r.DayOfWeek == day && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Rules) ReplaceRules(_ context.Context, providerID string, rules []model.AvailabilityRule) ([]model.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make([]model.AvailabilityRule, 0, len(rules))
	for _, r := range rules {
		m.seq++
		r.ID = m.seq
		r.ProviderID = providerID
		saved = append(saved, r)
	}
	m.rules[providerID] = saved
	return saved, nil
}

func (m *Rules) AvailableDays(ctx context.Context, providerID string) ([]int, error) {
	all, _ := m.ListRules(ctx, providerID)
	seen := map[int]bool{}
	var days []int
	for _, r := range all {
		if r.Active && !seen[r.DayOfWeek] {
			seen[r.DayOfWeek] = true
			days = append(days, r.DayOfWeek)
		}
	}
	return days, nil
}

// Bookings is an in-memory BookingStore. Insert enforces the same no-overlap rule as the
// bookings_no_overlap exclusion constraint and the same key uniqueness as
// booking_idempotency_keys.
type Bookings struct {
	mu       sync.Mutex
	bookings map[string]model.Booking
	keys     map[idemKey]string
	inserts  int
}

type idemKey struct{ requester, key string }

func NewBookings() *Bookings {
	return &Bookings{bookings: make(map[string]model.Booking), keys: make(map[idemKey]string)}
}

func (m *Bookings) Insert(_ context.Context, b model.Booking, idempotencyKey string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idemKey{requester: b.RequesterID, key: idempotencyKey}
	if _, used := m.keys[k]; idempotencyKey != "" && used {
		return model.Booking{}, storage.ErrDuplicateKey
	}
	span := availability.Span(b.Start, b.DurationMins)
	for _, other := range m.bookings {
		if other.ProviderID != b.ProviderID || !other.Date.Equal(b.Date) || !other.Status.IsActive() {
			continue
		}
		if availability.Overlaps(span, availability.Span(other.Start, other.DurationMins)) {
			return model.Booking{}, storage.ErrConflict
		}
	}
	b.CreatedAt = time.Now()
	m.bookings[b.ID] = b
	if idempotencyKey != "" {
		m.keys[k] = b.ID
	}
	m.inserts++
	return b, nil
}

func (m *Bookings) FindByIdempotencyKey(_ context.Context, requesterID, key string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[idemKey{requester: requesterID, key: key}]
	if !ok {
		return model.Booking{}, storage.ErrNotFound
	}
	return m.bookings[id], nil
}

func (m *Bookings) Put(b model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
}

func (m *Bookings) Get(_ context.Context, id string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, storage.ErrNotFound
	}
	return b, nil
}

func (m *Bookings) UpdateStatus(_ context.Context, id string, from, to model.Status, note *string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, storage.ErrNotFound
	}
	if b.Status != from {
		return model.Booking{}, storage.ErrStale
	}
	b.Status = to
	if note != nil {
		b.ProviderNote = *note
	}
	m.bookings[id] = b
	return b, nil
}

func (m *Bookings) ListActiveOnDate(_ context.Context, providerID string, date time.Time, excludeID string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.ProviderID == providerID && b.Date.Equal(date) && b.Status.IsActive() && b.ID != excludeID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func (m *Bookings) list(match func(model.Booking) bool, f storage.ListFilter) []model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if !match(b) || (f.Status != "" && b.Status != f.Status) {
			continue
		}
		if !f.FromDate.IsZero() && b.Date.Before(f.FromDate) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out
}

func (m *Bookings) ListForProvider(_ context.Context, providerID string, f storage.ListFilter) ([]model.Booking, error) {
	return m.list(func(b model.Booking) bool { return b.ProviderID == providerID }, f), nil
}

func (m *Bookings) ListForRequester(_ context.Context, requesterID string, f storage.ListFilter) ([]model.Booking, error) {
	return m.list(func(b model.Booking) bool { return b.RequesterID == requesterID }, f), nil
}

func (m *Bookings) CountPending(_ context.Context, providerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		if b.ProviderID == providerID && b.Status == model.StatusPending {
			n++
		}
	}
	return n, nil
}

// Inserts counts successful Insert calls.
func (m *Bookings) Inserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}
