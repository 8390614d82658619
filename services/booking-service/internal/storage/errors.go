package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the exclusion constraint rejected an overlapping active booking.
	ErrConflict = errors.New("booking overlaps an active booking")
	// ErrStale means the row changed status since it was read.
	ErrStale = errors.New("booking status changed concurrently")
	// ErrDuplicateKey means the requester already used the idempotency key.
	ErrDuplicateKey = errors.New("idempotency key already used")
)

const (
	sqlstateExclusionViolation = "23P01"
	sqlstateUniqueViolation    = "23505"
	sqlstateDeadlockDetected   = "40P01"
)

func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateExclusionViolation
}

// isOverlapRace reports the outcomes of overlapping inserts racing each other. Two inserts
// waiting on each other's uncommitted slot can be resolved by deadlock detection instead of
// the exclusion check.
func isOverlapRace(err error) bool {
	var pgErr *pgconn.PgError
	return IsConflict(err) || errors.As(err, &pgErr) && pgErr.Code == sqlstateDeadlockDetected
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateUniqueViolation
}
