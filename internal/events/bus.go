// Package events announces the end of each analysis cycle to whoever is
// listening: in-process subscribers and, through the web server, every page
// connected to the /events websocket.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Signal is the payload that tells listeners how a cycle ended.
type Signal string

const (
	SignalDone  Signal = "analysis:done"
	SignalError Signal = "analysis:error"
)

// Event is one completion notice.
type Event struct {
	Signal  Signal    `json:"signal"`
	CycleID uuid.UUID `json:"cycle_id"`
	At      time.Time `json:"at"`
}

// Publisher is the emitting side of the bus.
type Publisher interface {
	Publish(ev Event)
}

// DefaultBuffer is the per-subscriber queue length used when none is given.
const DefaultBuffer = 16

// Bus fans events out to subscribers without ever blocking the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	buffer int
	logger *zap.Logger
}

// NewBus creates a bus whose subscribers each queue up to buffer events.
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[uint64]chan Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a listener. The returned func unsubscribes and closes
// the channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber with room in its queue.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("Dropping event for slow subscriber",
				zap.Uint64("subscriber", id),
				zap.String("signal", string(ev.Signal)),
				zap.String("cycle_id", ev.CycleID.String()))
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
