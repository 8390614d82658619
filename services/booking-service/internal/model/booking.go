package model

import "time"

type Booking struct {
	ID           string
	ProviderID   string
	RequesterID  string
	Date         time.Time
	Start        Clock
	DurationMins int
	Status       Status
	Note         string
	ProviderNote string
	CreatedAt    time.Time
}

func (b Booking) End() Clock {
	return b.Start.Add(b.DurationMins)
}

// StartsAt is the absolute start instant in the site location.
func (b Booking) StartsAt(loc *time.Location) time.Time {
	return b.Start.On(b.Date, loc)
}

// Role names who is acting on a booking.
type Role string

const (
	RoleProvider  Role = "provider"
	RoleRequester Role = "requester"
)

type Actor struct {
	ID   string
	Role Role
}

// EventName is a lifecycle event published for notification delivery.
type EventName string

const (
	EventCreated   EventName = "booking_created"
	EventConfirmed EventName = "booking_confirmed"
	EventCancelled EventName = "booking_cancelled"
	EventCompleted EventName = "booking_completed"
)

// EventFor maps a target status onto the event announcing it.
func EventFor(s Status) EventName {
	switch s {
	case StatusConfirmed:
		return EventConfirmed
	case StatusCancelled:
		return EventCancelled
	case StatusCompleted:
		return EventCompleted
	default:
		return EventCreated
	}
}

// Event is handed to the notification dispatcher after a lifecycle change commits.
type Event struct {
	Name    EventName
	Booking Booking
	Actor   Actor
}

// Recipients returns the user ids to notify. Creation informs both parties; later changes
// inform whoever did not act.
func (e Event) Recipients() []string {
	b := e.Booking
	switch {
	case e.Name == EventCreated:
		return []string{b.ProviderID, b.RequesterID}
	case e.Actor.ID == b.RequesterID:
		return []string{b.ProviderID}
	default:
		return []string{b.RequesterID}
	}
}
