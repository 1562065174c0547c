// Package bus provides the in-process event bus every ACE component
// communicates through. Delivery is synchronous and ordered by subscription
// registration; handlers that need to do slow work must schedule their own
// goroutine rather than block the publishing caller.
package bus

import (
	"log/slog"
	"slices"
	"sync"
)

type subscriber struct {
	id int
	fn func(Event)
}

// Bus dispatches typed events to subscribers. A panic inside one handler is
// logged and swallowed so it cannot prevent delivery to the remaining
// handlers of the same event.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[Kind][]subscriber
	taps   []subscriber
	logger *slog.Logger
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		subs:   make(map[Kind][]subscriber),
		logger: slog.Default(),
	}
}

// Publish delivers e synchronously to every current subscriber of its kind,
// in subscription order, then to every tap.
func (b *Bus) Publish(e Event) {
	kind := e.EventKind()

	b.mu.Lock()
	subs := slices.Clone(b.subs[kind])
	taps := slices.Clone(b.taps)
	b.mu.Unlock()

	for _, s := range subs {
		b.dispatch(s, e)
	}
	for _, t := range taps {
		b.dispatch(t, e)
	}
}

func (b *Bus) dispatch(s subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "kind", string(e.EventKind()), "panic", r)
		}
	}()
	s.fn(e)
}

// Subscribe registers fn for every published event of type T and returns an
// unsubscribe function. The type parameter pins the handler to exactly one
// event kind, so payloads arrive already typed.
func Subscribe[T Event](b *Bus, fn func(T)) func() {
	var zero T
	return b.subscribe(zero.EventKind(), func(e Event) {
		if ev, ok := e.(T); ok {
			fn(ev)
		}
	})
}

func (b *Bus) subscribe(kind Kind, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := subscriber{id: b.nextID, fn: fn}
	b.subs[kind] = append(b.subs[kind], s)

	id := s.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs[kind] = slices.DeleteFunc(b.subs[kind], func(x subscriber) bool {
			return x.id == id
		})
	}
}

// Tap registers fn to observe every event of every kind, delivered after the
// kind's own subscribers. Taps are for monitoring surfaces (SSE stream,
// journal); they must not participate in pipeline control flow.
func (b *Bus) Tap(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := subscriber{id: b.nextID, fn: fn}
	b.taps = append(b.taps, s)

	id := s.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.taps = slices.DeleteFunc(b.taps, func(x subscriber) bool {
			return x.id == id
		})
	}
}
