package channel

import (
	"errors"
	"sync"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("channel")

// ErrUnsupported is returned by Subscribe when the host offers no
// cross-context notifications
var ErrUnsupported = errors.New("cross-context notifications are not supported by this host")

// Listener receives notifications about mutations made by other contexts
type Listener func(n storage.Notification)

// IChannel is the host's cross-context notification channel. It delivers
// the mutations other contexts make to a shared store; a context never
// receives its own mutations.
type IChannel interface {
	// Subscribe registers l. The returned function removes it again.
	Subscribe(l Listener) (cancel func(), err error)
}

// --------------------------------------------------------------------------
// Listener set
// --------------------------------------------------------------------------

// Listeners is a set of listeners for channel implementations. Deliver calls
// them in subscription order, isolated from each other.
type Listeners struct {
	mu     sync.RWMutex
	nextID uint64
	list   []subscription
}

type subscription struct {
	id uint64
	l  Listener
}

// Add registers l and returns a function that removes it
func (ls *Listeners) Add(l Listener) func() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.nextID++
	id := ls.nextID
	ls.list = append(ls.list, subscription{id: id, l: l})

	var once sync.Once
	return func() {
		once.Do(func() { ls.remove(id) })
	}
}

func (ls *Listeners) remove(id uint64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for i, s := range ls.list {
		if s.id == id {
			next := make([]subscription, 0, len(ls.list)-1)
			next = append(next, ls.list[:i]...)
			ls.list = append(next, ls.list[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners
func (ls *Listeners) Len() int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.list)
}

// Deliver passes n to every listener registered when the call started
func (ls *Listeners) Deliver(n storage.Notification) {
	ls.mu.RLock()
	snapshot := ls.list
	ls.mu.RUnlock()

	for _, s := range snapshot {
		util.SafeCall(Logger, "listener", func() error {
			s.l(n)
			return nil
		})
	}
}
