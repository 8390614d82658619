package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/expertmarket/bookingengine/libs/kafkax"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	events []Event
	err    error
}

func (w *memWriter) Insert(_ context.Context, evt Event) error {
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, evt)
	return nil
}

func sampleBooking() model.Booking {
	return model.Booking{
		ID:           "3f1c1f0e-5b7e-4b53-9d3f-3e2f7f1e9a10",
		ProviderID:   "prov",
		RequesterID:  "req",
		Date:         time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC),
		Start:        model.Clock(10 * 60),
		DurationMins: 45,
		Status:       model.StatusPending,
	}
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "booking.created.v1", Topic(model.EventCreated))
	assert.Equal(t, "booking.cancelled.v1", Topic(model.EventCancelled))
}

func TestDispatcherWritesPayload(t *testing.T) {
	w := &memWriter{}
	d := NewDispatcher(w, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	at := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return at }

	d.Dispatch(context.Background(), model.Event{
		Name:    model.EventCreated,
		Booking: sampleBooking(),
		Actor:   model.Actor{ID: "req", Role: model.RoleRequester},
	})

	require.Len(t, w.events, 1)
	evt := w.events[0]
	assert.Equal(t, "booking", evt.AggregateType)
	assert.Equal(t, "booking.created.v1", evt.EventType)

	var p Payload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.Equal(t, "booking_created", p.Event)
	assert.Equal(t, "2030-01-07", p.Date)
	assert.Equal(t, "10:00", p.StartTime)
	assert.Equal(t, 45, p.DurationMinutes)
	assert.Equal(t, []string{"prov", "req"}, p.Recipients)
	assert.Equal(t, at, p.OccurredAt)
}

func TestDispatcherLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(&memWriter{err: errors.New("db down")}, slog.New(slog.NewJSONHandler(&buf, nil)))

	b := sampleBooking()
	b.Status = model.StatusConfirmed
	d.Dispatch(context.Background(), model.Event{Name: model.EventConfirmed, Booking: b, Actor: model.Actor{ID: "prov", Role: model.RoleProvider}})

	assert.Contains(t, buf.String(), "outbox insert failed")
	assert.Contains(t, buf.String(), b.ID)
}

func TestToMessage(t *testing.T) {
	msg := toMessage(context.Background(), Record{
		EventID:     "evt-1",
		AggregateID: "booking-1",
		EventType:   "booking.confirmed.v1",
		Payload:     []byte(`{}`),
	})
	assert.Equal(t, "booking.confirmed.v1", msg.Topic)
	assert.Equal(t, []byte("booking-1"), msg.Key)
	meta := kafkax.ExtractEventMeta(msg)
	assert.Equal(t, "evt-1", meta.EventID)
	assert.Equal(t, "booking.confirmed.v1", meta.EventType)
}
