package events

import (
	"context"
	"sync"

	"github.com/mantonx/tonearm/internal/logger"
)

// Bus fans published events out to subscribers. Publishing never blocks the
// caller: events flow through a buffered channel and are dropped with a log
// line when the bus cannot keep up.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
	queue       chan Event
	cancel      context.CancelFunc
	done        chan struct{}
	started     bool
}

// NewBus creates a bus with the given queue depth.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{
		subscribers: make(map[EventType][]Handler),
		queue:       make(chan Event, bufferSize),
		done:        make(chan struct{}),
	}
}

// Start launches the dispatch loop.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	ctx, b.cancel = context.WithCancel(ctx)
	b.started = true
	go b.dispatch(ctx)
}

// Stop shuts the dispatch loop down and waits for it to drain.
func (b *Bus) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	started := b.started
	b.mu.Unlock()
	if !started || cancel == nil {
		return
	}
	cancel()
	<-b.done
}

// Subscribe registers a handler for the given event types.
func (b *Bus) Subscribe(handler Handler, types ...EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// PublishAsync enqueues the event without blocking. Events published before
// Start or against a full queue are dropped.
func (b *Bus) PublishAsync(event Event) {
	select {
	case b.queue <- event:
	default:
		logger.Warn("event bus queue full, dropping event", "type", event.Type)
	}
}

func (b *Bus) dispatch(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case event := <-b.queue:
			b.mu.RLock()
			handlers := append([]Handler(nil), b.subscribers[event.Type]...)
			b.mu.RUnlock()
			for _, h := range handlers {
				h(event)
			}
		case <-ctx.Done():
			return
		}
	}
}
