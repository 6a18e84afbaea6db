package host

import (
	"sync"

	"github.com/ValentinKolb/rKV/lib/channel/bus"
	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/lib/storage/engines/memory"
	"github.com/google/uuid"
)

// Group is a set of contexts in one process that share a local backend, like
// the tabs of a browser. Each context gets its own Storage object over the
// shared backend and a private session storage. Mutations of one context's
// local storage are delivered to the others over a bus.
type Group struct {
	bus   *bus.Bus
	local storage.IBackend

	mu       sync.Mutex
	contexts []*Environment
}

// NewGroup creates a group around local. nil means a fresh memory backend.
// The group owns local and closes it in Close.
func NewGroup(local storage.IBackend) *Group {
	if local == nil {
		local = memory.New(nil)
	}
	return &Group{
		bus:   bus.New(),
		local: local,
	}
}

// NewContext creates a context attached to the group
func (g *Group) NewContext() *Environment {
	origin := uuid.NewString()

	env := &Environment{
		Origin:  origin,
		Local:   storage.New(storage.KindLocal, g.local),
		Session: storage.New(storage.KindSession, memory.New(nil)),
	}

	endpoint := g.bus.Attach(origin, env.Local)
	env.Local.SetPublisher(endpoint)
	env.Events = endpoint

	env.OnClose(env.Session.Backend())
	env.OnClose(closerFunc(func() error {
		env.Local.SetPublisher(nil)
		g.bus.Detach(endpoint)
		return nil
	}))

	g.mu.Lock()
	g.contexts = append(g.contexts, env)
	g.mu.Unlock()
	return env
}

// Sync waits until every notification published so far reached the other
// contexts
func (g *Group) Sync() {
	g.bus.Sync()
}

// Close closes all contexts, the bus and the shared backend
func (g *Group) Close() error {
	g.mu.Lock()
	contexts := g.contexts
	g.contexts = nil
	g.mu.Unlock()

	for _, env := range contexts {
		env.Close()
	}
	g.bus.Close()
	return g.local.Close()
}
