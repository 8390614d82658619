package outbox

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
)

// Event is the envelope written to the outbox table. The Kafka topic equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Payload is what notification consumers receive for a booking lifecycle event.
type Payload struct {
	Event           string    `json:"event"`
	BookingID       string    `json:"booking_id"`
	ProviderID      string    `json:"provider_id"`
	RequesterID     string    `json:"requester_id"`
	Status          string    `json:"status"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	ActorID         string    `json:"actor_id,omitempty"`
	ActorRole       string    `json:"actor_role,omitempty"`
	Recipients      []string  `json:"recipients"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Topic maps booking_created onto booking.created.v1 and so on.
func Topic(name model.EventName) string {
	return "booking." + strings.TrimPrefix(string(name), "booking_") + ".v1"
}

func FromBookingEvent(evt model.Event, at time.Time) (Event, error) {
	b := evt.Booking
	payload, err := json.Marshal(Payload{
		Event:           string(evt.Name),
		BookingID:       b.ID,
		ProviderID:      b.ProviderID,
		RequesterID:     b.RequesterID,
		Status:          b.Status.String(),
		Date:            b.Date.Format(time.DateOnly),
		StartTime:       b.Start.String(),
		DurationMinutes: b.DurationMins,
		ActorID:         evt.Actor.ID,
		ActorRole:       string(evt.Actor.Role),
		Recipients:      evt.Recipients(),
		OccurredAt:      at.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     Topic(evt.Name),
		Payload:       payload,
	}, nil
}
