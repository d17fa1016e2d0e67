package bus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/realtime"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func TestLocalBusForwards(t *testing.T) {
	b := NewLocalBus(mustTestLogger(t))
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan realtime.SSEMessage, 1)
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}

	msg := realtime.SSEMessage{
		Channel: realtime.StudentChannel(uuid.New()),
		Event:   realtime.SSEEventIEPVersionCreated,
	}
	if err := b.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case m := <-got:
		if m.Channel != msg.Channel || m.Event != msg.Event {
			t.Fatalf("forwarded message mismatch: %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for forwarded message")
	}
}

func TestLocalBusPublishWithoutForwarder(t *testing.T) {
	b := NewLocalBus(mustTestLogger(t))
	t.Cleanup(func() { _ = b.Close() })

	// Nothing listening yet; publishes are dropped, not errors.
	err := b.Publish(context.Background(), realtime.SSEMessage{Channel: "approvals"})
	if err != nil {
		t.Fatalf("Publish without forwarder: %v", err)
	}
}

func TestLocalBusStopsAfterClose(t *testing.T) {
	b := NewLocalBus(mustTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan realtime.SSEMessage, 1)
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := b.Publish(context.Background(), realtime.SSEMessage{Channel: "approvals"}); err != nil {
		t.Fatalf("Publish after close: %v", err)
	}
	select {
	case m := <-got:
		t.Fatalf("message delivered after close: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}
