package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/expertmarket/bookingengine/libs/httpx"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/booking"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
)

type bookingItem struct {
	ID              string `json:"id"`
	ProviderID      string `json:"provider_id"`
	RequesterID     string `json:"requester_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	Note            string `json:"note,omitempty"`
	ProviderNote    string `json:"provider_note,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func toBookingItem(b model.Booking) bookingItem {
	return bookingItem{
		ID:              b.ID,
		ProviderID:      b.ProviderID,
		RequesterID:     b.RequesterID,
		Date:            b.Date.Format(time.DateOnly),
		StartTime:       b.Start.String(),
		EndTime:         b.End().String(),
		DurationMinutes: b.DurationMins,
		Status:          b.Status.String(),
		Note:            b.Note,
		ProviderNote:    b.ProviderNote,
		CreatedAt:       b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toBookingItems(bs []model.Booking) []bookingItem {
	out := make([]bookingItem, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingItem(b))
	}
	return out
}

type createBookingRequest struct {
	ProviderID      string `json:"provider_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Note            string `json:"note"`
}

// Bookings creates a booking request (POST, requesters) or lists the caller's bookings (GET).
func (h *Handler) Bookings(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if r.Method == http.MethodPost {
		h.create(w, r, actor)
		return
	}
	h.list(w, r, actor)
}

// A client retrying a create sends the same Idempotency-Key and gets the original booking back.
const idempotencyKeyHeader = "Idempotency-Key"

func (h *Handler) create(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	if actor.Role != model.RoleRequester {
		httpx.WriteError(w, http.StatusForbidden, "only requesters book sessions")
		return
	}
	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	start, err := model.ParseClock(req.StartTime)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "start_time must be HH:MM")
		return
	}

	b, err := h.svc.Create(r.Context(), booking.CreateRequest{
		ProviderID:     strings.TrimSpace(req.ProviderID),
		RequesterID:    actor.ID,
		Date:           date,
		Start:          start,
		DurationMins:   req.DurationMinutes,
		Note:           req.Note,
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toBookingItem(b))
}

// list: ?status=&from=YYYY-MM-DD&limit=. from applies to providers only.
func (h *Handler) list(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := booking.ListFilter{Status: model.Status(strings.TrimSpace(q.Get("status"))), Limit: limit}

	var out []model.Booking
	if actor.Role == model.RoleProvider {
		if raw := q.Get("from"); raw != "" {
			from, err := h.parseDate(raw)
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
				return
			}
			filter.FromDate = from
		}
		out, err = h.svc.ListForProvider(r.Context(), actor.ID, filter)
	} else {
		out, err = h.svc.ListForRequester(r.Context(), actor.ID, filter)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": toBookingItems(out)})
}

// Get returns one booking (?id=) to either party; anyone else sees 404.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Get(r.Context(), strings.TrimSpace(r.URL.Query().Get("id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !booking.CanView(b, actor) {
		h.writeServiceError(w, r, booking.ErrNotFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingItem(b))
}

type transitionRequest struct {
	BookingID    string  `json:"booking_id"`
	Status       string  `json:"status"`
	ProviderNote *string `json:"provider_note,omitempty"`
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "booking_id is required")
		return
	}
	b, err := h.svc.Transition(r.Context(), strings.TrimSpace(req.BookingID), actor, req.Status, req.ProviderNote)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingItem(b))
}

func (h *Handler) PendingCount(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if actor.Role != model.RoleProvider {
		httpx.WriteError(w, http.StatusForbidden, "only providers have pending requests")
		return
	}
	n, err := h.svc.CountPending(r.Context(), actor.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"pending": n})
}
