package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
)

// Writer persists outbox events.
type Writer interface {
	Insert(ctx context.Context, evt Event) error
}

// Dispatcher hands booking lifecycle events to notification delivery through the outbox.
type Dispatcher struct {
	writer Writer
	logger *slog.Logger
	now    func() time.Time
}

func NewDispatcher(writer Writer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{writer: writer, logger: logger, now: time.Now}
}

// Dispatch records evt for publishing. Failures are logged and never reach the caller: the
// booking change has already been stored.
func (d *Dispatcher) Dispatch(ctx context.Context, evt model.Event) {
	out, err := FromBookingEvent(evt, d.now())
	if err != nil {
		d.logger.Error("encode booking event failed", "err", err, "event", string(evt.Name), "booking_id", evt.Booking.ID)
		return
	}
	if err := d.writer.Insert(context.WithoutCancel(ctx), out); err != nil {
		d.logger.Error("outbox insert failed", "err", err, "event", string(evt.Name), "booking_id", evt.Booking.ID)
		return
	}
	d.logger.Debug("booking event queued", "event_type", out.EventType, "booking_id", evt.Booking.ID)
}
