/*
Package bus is the per-agent event bus. The agent publishes state changes of
its exchanges, i.e. the protocol state machines, and listeners subscribe by the
exchange kind. Listeners filter the events by the handle themselves.
*/
package bus

import (
	"sync"

	"github.com/findy-network/findy-triangle/agent/psm"
	"github.com/golang/glog"
)

// Event is the state change notification of one exchange. Record is the
// snapshot of the PSM after the change.
type Event struct {
	Kind   psm.Kind
	Handle string
	State  psm.SubState
	Record *psm.PSM
}

// Handler is called in the publisher's goroutine. It must not block.
type Handler func(ev Event)

type Bus struct {
	name string

	lk        sync.Mutex
	nextID    uint64
	listeners map[psm.Kind]map[uint64]Handler
}

func New(name string) *Bus {
	return &Bus{
		name:      name,
		listeners: make(map[psm.Kind]map[uint64]Handler),
	}
}

func (b *Bus) Name() string {
	return b.name
}

// Subscription is disposable listener registration.
type Subscription struct {
	b    *Bus
	kind psm.Kind
	id   uint64
	once sync.Once
}

// Unsubscribe removes the listener. It can be called many times.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.b.rm(s.kind, s.id)
	})
}

// Subscribe registers the handler for all events of the kind. The listener is
// installed when the function returns.
func (b *Bus) Subscribe(kind psm.Kind, fn Handler) *Subscription {
	b.lk.Lock()
	defer b.lk.Unlock()

	b.nextID++
	if b.listeners[kind] == nil {
		b.listeners[kind] = make(map[uint64]Handler)
	}
	b.listeners[kind][b.nextID] = fn
	glog.V(5).Infof("%s: + listener %d for %s", b.name, b.nextID, kind)
	return &Subscription{b: b, kind: kind, id: b.nextID}
}

func (b *Bus) rm(kind psm.Kind, id uint64) {
	b.lk.Lock()
	defer b.lk.Unlock()

	delete(b.listeners[kind], id)
	glog.V(5).Infof("%s: - listener %d for %s", b.name, id, kind)
}

// Publish calls every listener of the event's kind.
func (b *Bus) Publish(ev Event) {
	// We need to unlock as soon as possible that we don't keep lock when
	// listeners are called. They may subscribe or unsubscribe.
	b.lk.Lock()
	handlers := make([]Handler, 0, len(b.listeners[ev.Kind]))
	for _, fn := range b.listeners[ev.Kind] {
		handlers = append(handlers, fn)
	}
	b.lk.Unlock()

	glog.V(3).Infof("%s: %s/%s -> %s (%d listeners)",
		b.name, ev.Kind, ev.Handle, ev.State, len(handlers))
	for _, fn := range handlers {
		fn(ev)
	}
}

// Count returns the number of the active listeners.
func (b *Bus) Count() int {
	b.lk.Lock()
	defer b.lk.Unlock()

	count := 0
	for _, m := range b.listeners {
		count += len(m)
	}
	return count
}
