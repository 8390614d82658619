package storage

import (
	"context"
	"time"

	"github.com/expertmarket/bookingengine/libs/db"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// ListFilter narrows booking listings. Zero values mean "any".
type ListFilter struct {
	Status   model.Status
	FromDate time.Time
	Limit    int
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (f ListFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	if f.Limit > maxListLimit {
		return maxListLimit
	}
	return f.Limit
}

const bookingColumns = `id::text, provider_id, requester_id, booking_date, booking_time, duration, status,
	COALESCE(note, ''), COALESCE(provider_note, ''), created_at`

const qualifiedBookingColumns = `b.id::text, b.provider_id, b.requester_id, b.booking_date, b.booking_time,
	b.duration, b.status, COALESCE(b.note, ''), COALESCE(b.provider_note, ''), b.created_at`

// Insert stores a new booking. An overlap with an active booking of the same provider is
// reported as ErrConflict by the bookings_no_overlap exclusion constraint, so two concurrent
// inserts can never both succeed. A non-empty idempotencyKey is recorded for the requester in
// the same transaction; reusing it yields ErrDuplicateKey.
func (r *BookingRepository) Insert(ctx context.Context, b model.Booking, idempotencyKey string) (model.Booking, error) {
	err := r.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO bookings
				(id, provider_id, requester_id, booking_date, booking_time, duration, status, note, provider_note)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''))
			RETURNING created_at
		`, b.ID, b.ProviderID, b.RequesterID, pgDate(b.Date), pgTime(b.Start), b.DurationMins, string(b.Status),
			b.Note, b.ProviderNote).Scan(&b.CreatedAt)
		if err != nil {
			return err
		}
		if idempotencyKey == "" {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO booking_idempotency_keys (requester_id, idempotency_key, booking_id)
			VALUES ($1, $2, $3)
		`, b.RequesterID, idempotencyKey, b.ID)
		return err
	})
	switch {
	case err == nil:
		return b, nil
	case isOverlapRace(err):
		return model.Booking{}, ErrConflict
	case isUniqueViolation(err):
		return model.Booking{}, ErrDuplicateKey
	default:
		return model.Booking{}, err
	}
}

// FindByIdempotencyKey returns the booking the requester created with key.
func (r *BookingRepository) FindByIdempotencyKey(ctx context.Context, requesterID, key string) (model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+qualifiedBookingColumns+`
		FROM booking_idempotency_keys k
		JOIN bookings b ON b.id = k.booking_id
		WHERE k.requester_id = $1 AND k.idempotency_key = $2
	`, requesterID, key)
	if err != nil {
		return model.Booking{}, err
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBooking)
	if IsNotFound(err) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		return model.Booking{}, err
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBooking)
	if IsNotFound(err) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// UpdateStatus moves the booking from one status to another. It only succeeds while the row
// is still in from; otherwise it returns ErrStale (or ErrNotFound when the row is gone).
// A nil providerNote keeps the stored note.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from, to model.Status, providerNote *string) (model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE bookings
		SET status = $3,
			provider_note = COALESCE($4, provider_note),
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+bookingColumns, id, string(from), string(to), providerNote)
	if err != nil {
		return model.Booking{}, err
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBooking)
	if err == nil {
		return b, nil
	}
	if !IsNotFound(err) {
		return model.Booking{}, err
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return model.Booking{}, getErr
	}
	return model.Booking{}, ErrStale
}

// ListActiveOnDate returns pending and confirmed bookings of the provider on date, ordered by
// start. excludeID, when set, is left out.
func (r *BookingRepository) ListActiveOnDate(ctx context.Context, providerID string, date time.Time, excludeID string) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
			AND booking_date = $2
			AND status IN ('pending', 'confirmed')
			AND ($3::text = '' OR id::text <> $3)
		ORDER BY booking_time ASC
	`, providerID, pgDate(date), excludeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanBooking)
}

// ListForProvider lists a provider's bookings. With FromDate set the listing is the upcoming
// agenda in ascending order, otherwise the most recent first.
func (r *BookingRepository) ListForProvider(ctx context.Context, providerID string, f ListFilter) ([]model.Booking, error) {
	order := `booking_date DESC, booking_time DESC`
	from := pgtype.Date{}
	if !f.FromDate.IsZero() {
		order = `booking_date ASC, booking_time ASC`
		from = pgDate(f.FromDate)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
			AND ($2::text = '' OR status = $2)
			AND ($3::date IS NULL OR booking_date >= $3)
		ORDER BY `+order+`
		LIMIT $4
	`, providerID, string(f.Status), from, f.limit())
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanBooking)
}

func (r *BookingRepository) ListForRequester(ctx context.Context, requesterID string, f ListFilter) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE requester_id = $1
			AND ($2::text = '' OR status = $2)
		ORDER BY booking_date DESC, booking_time DESC
		LIMIT $3
	`, requesterID, string(f.Status), f.limit())
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanBooking)
}

func (r *BookingRepository) CountPending(ctx context.Context, providerID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE provider_id = $1 AND status = 'pending'
	`, providerID).Scan(&n)
	return n, err
}

func scanBooking(row pgx.CollectableRow) (model.Booking, error) {
	var b model.Booking
	var date pgtype.Date
	var start pgtype.Time
	var status string
	if err := row.Scan(
		&b.ID,
		&b.ProviderID,
		&b.RequesterID,
		&date,
		&start,
		&b.DurationMins,
		&status,
		&b.Note,
		&b.ProviderNote,
		&b.CreatedAt,
	); err != nil {
		return model.Booking{}, err
	}
	b.Date = date.Time
	b.Start = model.ClockFromMicroseconds(start.Microseconds)
	b.Status = model.Status(status)
	return b, nil
}

func pgDate(t time.Time) pgtype.Date {
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}
