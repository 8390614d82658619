package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/expertmarket/bookingengine/libs/auth"
	"github.com/expertmarket/bookingengine/libs/httpx"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/booking"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
)

type Handler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func New(svc *booking.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts every route on mux. create wraps the booking creation endpoint, e.g. with a
// rate limiter.
func (h *Handler) Register(mux *http.ServeMux, create ...httpx.Middleware) {
	mux.HandleFunc("/api/v1/slots", h.Slots)
	mux.HandleFunc("/api/v1/availability", h.Availability)
	mux.HandleFunc("/api/v1/availability/days", h.AvailableDays)
	mux.Handle("/api/v1/bookings", httpx.Chain(http.HandlerFunc(h.Bookings), create...))
	mux.HandleFunc("/api/v1/bookings/get", h.Get)
	mux.HandleFunc("/api/v1/bookings/transition", h.Transition)
	mux.HandleFunc("/api/v1/bookings/pending-count", h.PendingCount)
	mux.HandleFunc("/api/v1/bookings/ticks", h.Ticks)
}

func actorFrom(r *http.Request) (model.Actor, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return model.Actor{}, false
	}
	role := model.Role(id.Role)
	if role != model.RoleProvider && role != model.RoleRequester {
		return model.Actor{}, false
	}
	return model.Actor{ID: id.UserID, Role: role}, true
}

func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := actorFrom(r)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
	}
	return actor, ok
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func (h *Handler) parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), h.svc.Location())
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

// writeServiceError maps service errors onto HTTP statuses. Unexpected errors are logged and
// reported without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, booking.ErrInvalidBooking), errors.Is(err, booking.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.Is(err, booking.ErrNotEntitled):
		status = http.StatusPaymentRequired
	case errors.Is(err, booking.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, booking.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrConflict), errors.Is(err, booking.ErrInvalidTransition), errors.Is(err, booking.ErrKeyReused):
		status = http.StatusConflict
	case errors.Is(err, booking.ErrInPast), errors.Is(err, booking.ErrOutsideAvailability):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrEntitlementsUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "err", err, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, status, http.StatusText(status))
		return
	}
	httpx.WriteError(w, status, err.Error())
}
