package storage

import (
	"context"

	"github.com/expertmarket/bookingengine/libs/db"
)

// InboxRepository remembers consumed event ids so redelivered messages are handled once.
type InboxRepository struct {
	pool *db.Pool
}

func NewInboxRepository(pool *db.Pool) *InboxRepository {
	return &InboxRepository{pool: pool}
}

// Seen reports whether the event was already recorded.
func (r *InboxRepository) Seen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inbox_events WHERE event_id = $1)`, eventID).Scan(&seen)
	return seen, err
}

// Record returns false when the event was already recorded.
func (r *InboxRepository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	return false, err
}
