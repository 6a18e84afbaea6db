package reactive

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/rKV/lib/util"
)

// Topic names an event stream of a Store
type Topic string

// TopicChange carries a Change for every mutation of the store
const TopicChange Topic = "change"

// Handler wraps a change callback. Handlers are compared by identity: the
// same *Handler is registered at most once per topic, two handlers created
// from the same function are different handlers.
type Handler struct {
	fn func(Change)
}

// NewHandler creates a handler calling fn
func NewHandler(fn func(Change)) *Handler {
	return &Handler{fn: fn}
}

// emitter is a set of handlers per topic. The per-topic slices are replaced on
// every change, so an emission iterates the handlers registered when it began.
type emitter struct {
	mu     sync.RWMutex
	topics map[Topic][]*Handler
}

func newEmitter() *emitter {
	return &emitter{topics: make(map[Topic][]*Handler)}
}

// on adds h to topic. It returns false if h was already registered.
func (e *emitter) on(topic Topic, h *Handler) bool {
	if h == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.topics[topic]
	for _, registered := range current {
		if registered == h {
			return false
		}
	}

	next := make([]*Handler, len(current), len(current)+1)
	copy(next, current)
	e.topics[topic] = append(next, h)
	return true
}

// off removes h from topic. It returns false if h was not registered.
func (e *emitter) off(topic Topic, h *Handler) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.topics[topic]
	for i, registered := range current {
		if registered != h {
			continue
		}
		next := make([]*Handler, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		if len(next) == 0 {
			delete(e.topics, topic)
		} else {
			e.topics[topic] = next
		}
		return true
	}
	return false
}

func (e *emitter) handlers(topic Topic) []*Handler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.topics[topic]
}

// emit calls the handlers of topic in registration order. A failing handler
// is logged and reported to fault, the remaining handlers still run.
func (e *emitter) emit(topic Topic, change Change, owner string, fault func()) {
	for i, h := range e.handlers(topic) {
		ok := util.SafeCall(Logger, fmt.Sprintf("%s: %s handler #%d", owner, topic, i), func() error {
			h.fn(change)
			return nil
		})
		if !ok && fault != nil {
			fault()
		}
	}
}
