package booking

import (
	"context"
	"errors"
	"sync"

	"github.com/expertmarket/bookingengine/services/booking-service/internal/model"
)

type staticEntitlements struct {
	allowed bool
	err     error
}

func (e staticEntitlements) CanUse(context.Context, string, string) (bool, error) {
	return e.allowed, e.err
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []model.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, evt model.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) names() []model.EventName {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.EventName, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Name)
	}
	return out
}

var errEntitlementsDown = errors.New("entitlements unavailable")
