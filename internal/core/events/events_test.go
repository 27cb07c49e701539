package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processorFunc func(ctx context.Context, event workflow.DomainEvent) error

func (f processorFunc) ProcessEvent(ctx context.Context, event workflow.DomainEvent) error {
	return f(ctx, event)
}

func sampleEvent() workflow.DomainEvent {
	return workflow.NewDomainEvent(
		workflow.EventVehicleIgnitionOn,
		workflow.EntityRef{Type: "vehicle", ID: "veh-1", TenantID: uuid.New()},
		map[string]any{"ignition": true, "speed": float64(0)},
		map[string]any{"ignition": false},
	)
}

func TestCodec_RoundTrip(t *testing.T) {
	ev := sampleEvent()

	msg, err := Encode(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, ev.ID.String(), msg.UUID)
	assert.Equal(t, "vehicle.ignition_on", msg.Metadata.Get(EventTypeMetadataKey))
	assert.Equal(t, ev.Subject.TenantID.String(), msg.Metadata.Get(TenantIDMetadataKey))

	decoded, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, ev.Type, decoded.Type)
	assert.Equal(t, ev.Subject, decoded.Subject)
	assert.Equal(t, ev.Payload, decoded.Payload)
	assert.Equal(t, ev.Previous, decoded.Previous)
	assert.True(t, ev.OccurredAt.Equal(decoded.OccurredAt))
}

func TestCodec_Malformed(t *testing.T) {
	_, err := Decode(message.NewMessage("1", []byte("{not json")))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = Decode(message.NewMessage("2", []byte(`{"type":"vehicle.ignition_on"}`)))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestListener_ReturnsProcessorError(t *testing.T) {
	boom := errors.New("database unavailable")
	l := NewListener(processorFunc(func(context.Context, workflow.DomainEvent) error { return boom }), zerolog.Nop())

	msg, err := Encode(context.Background(), sampleEvent())
	require.NoError(t, err)

	assert.ErrorIs(t, l.HandleMessage(msg), boom)
}

func TestListener_PassesDecodedEvent(t *testing.T) {
	var got workflow.DomainEvent
	l := NewListener(processorFunc(func(_ context.Context, ev workflow.DomainEvent) error {
		got = ev
		return nil
	}), zerolog.Nop())

	ev := sampleEvent()
	msg, err := Encode(context.Background(), ev)
	require.NoError(t, err)

	require.NoError(t, l.HandleMessage(msg))
	assert.Equal(t, ev.ID, got.ID)
}

func startRouter(t *testing.T, processor Processor, deadLetter DeadLetterFunc) *WatermillPublisher {
	t.Helper()

	logger := zerolog.Nop()
	pubSub := NewGoChannel(NewLoggerAdapter(logger), false)
	cfg := RouterDefaults(RouterConfig{
		Topic:          "test.events",
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})

	router, err := NewRouter(cfg, pubSub, pubSub, NewListener(processor, logger), deadLetter, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = router.Run(ctx) }()
	<-router.Running()

	t.Cleanup(func() {
		cancel()
		_ = router.Close()
		_ = pubSub.Close()
	})
	return NewWatermillPublisher(pubSub, cfg.Topic)
}

func TestRouter_DeliversEvents(t *testing.T) {
	delivered := make(chan workflow.DomainEvent, 1)
	pub := startRouter(t, processorFunc(func(_ context.Context, ev workflow.DomainEvent) error {
		delivered <- ev
		return nil
	}), nil)

	ev := sampleEvent()
	require.NoError(t, pub.Publish(context.Background(), ev))

	select {
	case got := <-delivered:
		assert.Equal(t, ev.ID, got.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestRouter_RetriesThenDeadLetters(t *testing.T) {
	var attempts atomic.Int32
	var mu sync.Mutex
	var reason string
	dead := make(chan workflow.DomainEvent, 1)

	pub := startRouter(t,
		processorFunc(func(context.Context, workflow.DomainEvent) error {
			attempts.Add(1)
			return errors.New("still failing")
		}),
		func(_ context.Context, ev workflow.DomainEvent, r string) {
			mu.Lock()
			reason = r
			mu.Unlock()
			dead <- ev
		},
	)

	ev := sampleEvent()
	require.NoError(t, pub.Publish(context.Background(), ev))

	select {
	case got := <-dead:
		assert.Equal(t, ev.ID, got.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not dead-lettered")
	}

	// first attempt plus MaxRetries
	assert.Equal(t, int32(3), attempts.Load())
	mu.Lock()
	assert.Contains(t, reason, "still failing")
	mu.Unlock()
}

func TestRouter_RecoversAfterTransientFailure(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{})
	pub := startRouter(t, processorFunc(func(context.Context, workflow.DomainEvent) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}), func(context.Context, workflow.DomainEvent, string) {
		t.Error("event should not be dead-lettered")
	})

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("event was not redelivered")
	}
	assert.Equal(t, int32(2), attempts.Load())
}

func TestLogDeadLetter(t *testing.T) {
	assert.NotPanics(t, func() {
		LogDeadLetter(zerolog.Nop())(context.Background(), sampleEvent(), "boom")
	})
}
