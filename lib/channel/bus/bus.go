package bus

import (
	"sync"

	"github.com/ValentinKolb/rKV/lib/channel"
	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/lib/util"
)

// envelope is a queued notification together with the endpoint it came from.
// An envelope with a non-nil ack is a Sync marker.
type envelope struct {
	from *Endpoint
	n    storage.Notification
	ack  chan struct{}
}

// Bus links the contexts of one process. Notifications published through an
// endpoint are queued and delivered by a single goroutine to every other
// endpoint, in the order they were published.
type Bus struct {
	queue *util.LockFreeMPSC[envelope]
	done  chan struct{}

	mu        sync.RWMutex
	endpoints []*Endpoint
}

// New creates a bus and starts its delivery goroutine. Close stops it.
func New() *Bus {
	b := &Bus{
		queue: util.NewLockFreeMPSC[envelope](),
		done:  make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Attach creates the endpoint of a context. area is the context's storage
// that notifications delivered to this endpoint apply to; only notifications
// of the same kind reach it.
func (b *Bus) Attach(origin string, area *storage.Storage) *Endpoint {
	e := &Endpoint{
		bus:    b,
		origin: origin,
		area:   area,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.endpoints = append(b.endpoints, e)
	return e
}

// Detach removes an endpoint. Notifications still queued are not delivered
// to it anymore.
func (b *Bus) Detach(e *Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, ep := range b.endpoints {
		if ep == e {
			next := make([]*Endpoint, 0, len(b.endpoints)-1)
			next = append(next, b.endpoints[:i]...)
			b.endpoints = append(next, b.endpoints[i+1:]...)
			return
		}
	}
}

// Sync blocks until every notification published before the call was
// delivered. It returns immediately if the bus is closed. Calling it from a
// listener deadlocks.
func (b *Bus) Sync() {
	ack := make(chan struct{})
	if !b.queue.Push(&envelope{ack: ack}) {
		return
	}
	select {
	case <-ack:
	case <-b.done:
	}
}

// Close delivers the queued notifications and stops the bus. Publishing
// afterwards is a no-op.
func (b *Bus) Close() {
	b.queue.Close()
	<-b.done
}

func (b *Bus) snapshot() []*Endpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.endpoints
}

func (b *Bus) dispatch() {
	defer close(b.done)

	for env := range b.queue.Recv() {
		if env.ack != nil {
			close(env.ack)
			continue
		}

		for _, e := range b.snapshot() {
			if e == env.from {
				continue
			}
			if e.area != nil && env.n.Kind != "" && e.area.Kind() != env.n.Kind {
				continue
			}
			n := env.n
			n.Area = e.area
			e.listeners.Deliver(n)
		}
	}
}

// --------------------------------------------------------------------------
// Endpoint
// --------------------------------------------------------------------------

// Endpoint is one context's connection to the bus. It is the storage's
// Publisher and the context's channel.IChannel at the same time.
type Endpoint struct {
	bus       *Bus
	origin    string
	area      *storage.Storage
	listeners channel.Listeners
}

// Origin returns the id of the context the endpoint belongs to
func (e *Endpoint) Origin() string {
	return e.origin
}

// Publish queues n for delivery to the other endpoints
func (e *Endpoint) Publish(n storage.Notification) {
	if !e.bus.queue.Push(&envelope{from: e, n: n}) {
		channel.Logger.Debugf("bus closed, dropping notification for key %s from %s", n.Key, e.origin)
	}
}

// Subscribe implements channel.IChannel
func (e *Endpoint) Subscribe(l channel.Listener) (func(), error) {
	return e.listeners.Add(l), nil
}
