package events

import "sync"

// Emitter is a callback-registry pub/sub channel. Subscribers are invoked
// synchronously in subscription order; a slow subscriber slows emission, so
// UI layers should hand events off to their own loop.
type Emitter struct {
	mu   sync.RWMutex
	subs map[int]func(Event)
	next int
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[int]func(Event))}
}

// Subscribe registers a callback and returns a function that removes it.
func (e *Emitter) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.next
	e.next++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Emit delivers an event to every current subscriber.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	fns := make([]func(Event), 0, len(e.subs))
	for i := 0; i < e.next; i++ {
		if fn, ok := e.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
