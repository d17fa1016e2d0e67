package bus

import (
	"context"
	"sync"

	"github.com/brightpath/iep-backend/internal/platform/logger"
	"github.com/brightpath/iep-backend/internal/realtime"
)

// Bus carries SSE messages between API instances. Publish sends one
// message; StartForwarder hands everything published, on any instance, to
// onMsg until ctx ends.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}

// localBus loops messages straight back to the forwarder. Embedded sqlite
// installs run single-instance and need no broker; clustered installs use
// the redis bus instead.
type localBus struct {
	log *logger.Logger

	mu        sync.RWMutex
	forwarder func(m realtime.SSEMessage)
	closed    bool
}

func NewLocalBus(log *logger.Logger) Bus {
	return &localBus{log: log.With("component", "LocalBus")}
}

func (b *localBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	b.mu.RLock()
	forward := b.forwarder
	closed := b.closed
	b.mu.RUnlock()

	if closed || forward == nil {
		return nil
	}
	forward(msg)
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	b.mu.Lock()
	b.forwarder = onMsg
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		b.forwarder = nil
		b.mu.Unlock()
	}()
	return nil
}

func (b *localBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.forwarder = nil
	b.mu.Unlock()
	return nil
}
