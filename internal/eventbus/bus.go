// Package eventbus implements the named, process-scoped publish/subscribe
// channel stages use to rendezvous with each other outside the chunk graph
// (spec §4.7). It is adapted from the teacher's events.EventBus: a listener
// slice guarded by a mutex, async fan-out per publish, and a recover wrapper
// so one panicking subscriber cannot take down the publisher or its
// siblings.
package eventbus

import (
	"sync"

	"github.com/speechflow/speechflow/internal/logger"
)

// Handler receives a published payload. Handlers run on their own goroutine
// per Publish call and must not block indefinitely.
type Handler func(payload any)

// Bus is a single named many-to-many channel. The zero value is not usable;
// obtain one via Access.
type Bus struct {
	mu        sync.Mutex
	listeners map[int]Handler
	nextID    int
}

func newBus() *Bus {
	return &Bus{listeners: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it. Safe to
// call concurrently with Publish.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Publish delivers payload to every current subscriber asynchronously.
// A subscriber that panics is recovered and logged; it does not affect
// delivery to other subscribers or the caller.
func (b *Bus) Publish(payload any) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.listeners))
	for _, h := range b.listeners {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		go safeInvoke(h, payload)
	}
}

func safeInvoke(h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Base().Error().Interface("panic", r).Msg("eventbus: recovered panic in subscriber")
		}
	}()
	h(payload)
}

// Subscribers reports the current subscriber count, for diagnostics.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]*Bus)
)

// Access returns the named bus, creating it on first use. Buses live for
// the remaining lifetime of the process; there is no Close or Destroy.
func Access(name string) *Bus {
	registryMu.Lock()
	defer registryMu.Unlock()
	b, ok := registry[name]
	if !ok {
		b = newBus()
		registry[name] = b
	}
	return b
}

// Reset clears every named bus. Intended for tests; production code never
// calls this since buses are meant to live for the process lifetime.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*Bus)
}
