package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/expertmarket/bookingengine/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox records handled events. Record returns false for an event recorded before.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
}

type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader  Reader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newWithReader(logger, inbox, reader, handler)
}

func newWithReader(logger *slog.Logger, inbox Inbox, reader Reader, handler Handler) *Consumer {
	return &Consumer{reader: reader, logger: logger, inbox: inbox, handler: handler}
}

// Run consumes until ctx is cancelled. Events already handled are skipped via the inbox.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID == "" {
		// Nothing to dedupe on; handlers are idempotent.
		if err := c.handler(ctxSpan, msg); err != nil {
			c.logger.Error("handler error", "err", err, "event_type", meta.EventType)
			span.RecordError(err)
		}
		return
	}
	span.SetAttributes(attribute.String("messaging.message.id", meta.EventID))

	seen, err := c.inbox.Seen(ctxSpan, meta.EventID)
	if err != nil {
		c.logger.Error("inbox lookup failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		return
	}
	if seen {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}
	if err := c.handler(ctxSpan, msg); err != nil {
		// Not recorded, so a redelivery is handled again.
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		return
	}
	if _, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType); err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
	}
}
