// Package egress is the broadcast fabric: it hands a new subscriber an
// initial snapshot, then fans out delta envelopes to every registered
// subscriber. Subscriber registry plus non-blocking, drop-on-full
// delivery — no ring-buffer replay-on-reconnect, since this protocol has
// no reconnect-by-event-id mechanism.
package egress

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/KingSajxxd/f1-relay/internal/metrics"
)

// Envelope is the wire shape of every broadcast message and of the
// initial snapshot frame: {"type": "...", "data": ...}.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type subscriber struct {
	ch chan []byte
}

// Bus is the subscriber registry and broadcast fan-out.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]subscriber
	nextID      uint64
	bufferSize  int
	log         zerolog.Logger
}

// New creates a Bus whose per-subscriber channel holds bufferSize pending
// messages before a send is dropped and the subscriber evicted.
func New(bufferSize int, log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[uint64]subscriber),
		bufferSize:  bufferSize,
		log:         log,
	}
}

// Subscribe registers a new subscriber and immediately queues the given
// snapshot as its first message: on accept, register, then immediately
// send the full current state. Returns a receive channel and a cancel
// function to unregister.
func (b *Bus) Subscribe(snapshot map[string]any) (<-chan []byte, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan []byte, b.bufferSize)
	b.subscribers[id] = subscriber{ch: ch}
	b.mu.Unlock()

	if data, err := json.Marshal(snapshot); err == nil {
		select {
		case ch <- data:
		default:
		}
	}

	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast serializes an envelope once and delivers it to every
// currently-registered subscriber. Delivery is best-effort: a subscriber
// whose channel is full is evicted immediately rather than blocking the
// ingestion task — drop-on-first-failed-send, not a bounded retry queue.
func (b *Bus) Broadcast(eventType string, data any) {
	payload, err := json.Marshal(Envelope{Type: eventType, Data: data})
	if err != nil {
		b.log.Warn().Err(err).Str("type", eventType).Msg("failed to marshal broadcast envelope")
		return
	}
	b.fanOut(payload)
}

// BroadcastSnapshot delivers the full state un-enveloped — the same bare
// frame shape a new subscriber receives on accept — to every registered
// subscriber, as happens after an upstream snapshot frame re-baselines
// the store.
func (b *Bus) BroadcastSnapshot(snapshot map[string]any) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to marshal snapshot broadcast")
		return
	}
	b.fanOut(payload)
}

func (b *Bus) fanOut(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		select {
		case sub.ch <- payload:
		default:
			close(sub.ch)
			delete(b.subscribers, id)
			metrics.SubscribersEvictedTotal.Inc()
		}
	}
}

// SubscriberCount returns the number of currently-registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// CloseAll closes every registered subscriber's channel and clears the
// registry, releasing subscribers as part of graceful shutdown.
func (b *Bus) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
