package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/availability"
	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Deps struct {
	Rules        RuleStore
	Bookings     BookingStore
	Entitlements Entitlements
	Dispatcher   Dispatcher
	Logger       *slog.Logger
	// Location is the single site-wide timezone dates and times are interpreted in.
	Location *time.Location
	Now      func() time.Time
	// Step is the slot grid resolution in minutes.
	Step int
}

// Service coordinates availability, slot generation and the booking lifecycle.
type Service struct {
	rules        RuleStore
	bookings     BookingStore
	entitlements Entitlements
	dispatcher   Dispatcher
	logger       *slog.Logger
	loc          *time.Location
	now          func() time.Time
	step         int
	tracer       trace.Tracer
}

func NewService(d Deps) *Service {
	s := &Service{
		rules:        d.Rules,
		bookings:     d.Bookings,
		entitlements: d.Entitlements,
		dispatcher:   d.Dispatcher,
		logger:       d.Logger,
		loc:          d.Location,
		now:          d.Now,
		step:         d.Step,
		tracer:       otel.Tracer("booking-service/booking"),
	}
	if s.dispatcher == nil {
		s.dispatcher = noopDispatcher{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.step <= 0 {
		s.step = availability.DefaultStep
	}
	return s
}

// Location returns the site timezone.
func (s *Service) Location() *time.Location { return s.loc }

// Today is the current calendar date in the site timezone.
func (s *Service) Today() time.Time {
	return model.DateOnly(s.now(), s.loc)
}

// day normalises a calendar date to midnight in the site timezone, keeping its year, month
// and day regardless of the location it was parsed in.
func (s *Service) day(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
