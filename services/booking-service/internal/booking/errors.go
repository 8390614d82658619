package booking

import "errors"

var (
	ErrNotEntitled         = errors.New("provider is not entitled to take bookings")
	ErrInPast              = errors.New("booking must start in the future")
	ErrConflict            = errors.New("requested time overlaps an existing booking")
	ErrOutsideAvailability = errors.New("requested time is outside the provider's availability")
	ErrInvalidBooking      = errors.New("invalid booking request")
	ErrInvalidStatus       = errors.New("invalid booking status")
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrForbidden           = errors.New("actor may not change this booking")
	ErrNotFound            = errors.New("booking not found")
	ErrKeyReused           = errors.New("idempotency key was used for a different booking")

	// ErrEntitlementsUnavailable wraps failures of the entitlement check itself.
	ErrEntitlementsUnavailable = errors.New("entitlement check unavailable")
)
