package consumer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/expertmarket/bookingengine/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
	closed bool
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

type memInbox struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memInbox) Seen(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[eventID], nil
}

func (m *memInbox) Record(_ context.Context, eventID string, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

type memInvalidator struct {
	calls []string
	err   error

	// failures makes the first n calls fail.
	failures int
}

func (m *memInvalidator) Invalidate(_ context.Context, providerID string, features ...string) error {
	if m.err != nil {
		return m.err
	}
	if m.failures > 0 {
		m.failures--
		return errors.New("redis timeout")
	}
	for _, f := range features {
		m.calls = append(m.calls, providerID+"/"+f)
	}
	return nil
}

func message(id, value string) kafka.Message {
	meta := kafkax.EventMeta{EventID: id, EventType: "billing.subscription.changed.v1"}
	return kafka.Message{Topic: meta.EventType, Value: []byte(value), Headers: meta.Headers()}
}

func TestConsumerInvalidatesOncePerEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &sliceReader{cancel: cancel, msgs: []kafka.Message{
		message("e1", `{"provider_id":"p1"}`),
		message("e1", `{"provider_id":"p1"}`),
		message("e2", `not json`),
		message("e3", `{"provider_id":""}`),
		message("e4", `{"provider_id":"p2"}`),
	}}
	inv := &memInvalidator{}
	c := newWithReader(logger, &memInbox{seen: map[string]bool{}}, reader, SubscriptionChanged(logger, inv, "booking"))

	c.Run(ctx)

	assert.True(t, reader.closed)
	assert.Equal(t, []string{"p1/booking", "p2/booking"}, inv.calls)
}

func TestSubscriptionChangedPropagatesCacheErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := SubscriptionChanged(logger, &memInvalidator{err: errors.New("redis down")}, "booking")
	err := h(context.Background(), message("e1", `{"provider_id":"p1"}`))
	require.Error(t, err)
}

func TestConsumerRetriesFailedEventOnRedelivery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &sliceReader{cancel: cancel, msgs: []kafka.Message{
		message("e1", `{"provider_id":"p1"}`),
		message("e1", `{"provider_id":"p1"}`),
		message("e1", `{"provider_id":"p1"}`),
	}}
	inv := &memInvalidator{failures: 1}
	inbox := &memInbox{seen: map[string]bool{}}
	c := newWithReader(logger, inbox, reader, SubscriptionChanged(logger, inv, "booking"))

	c.Run(ctx)

	assert.Equal(t, []string{"p1/booking"}, inv.calls)
	assert.True(t, inbox.seen["e1"])
}

func TestConsumerHandlesEveryEventWithoutID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unlabeled := func(providerID string) kafka.Message {
		return kafka.Message{
			Topic: "billing.subscription.changed.v1",
			Key:   []byte(providerID),
			Value: []byte(`{"provider_id":"` + providerID + `"}`),
		}
	}
	reader := &sliceReader{cancel: cancel, msgs: []kafka.Message{unlabeled("p1"), unlabeled("p1")}}
	inv := &memInvalidator{}
	inbox := &memInbox{seen: map[string]bool{}}
	c := newWithReader(logger, inbox, reader, SubscriptionChanged(logger, inv, "booking"))

	c.Run(ctx)

	assert.Equal(t, []string{"p1/booking", "p1/booking"}, inv.calls)
	assert.Empty(t, inbox.seen)
}
