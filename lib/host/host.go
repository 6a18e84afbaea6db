package host

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/rKV/lib/channel"
	"github.com/ValentinKolb/rKV/lib/channel/fswatch"
	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/lib/storage/engines/filestore"
	"github.com/ValentinKolb/rKV/lib/storage/engines/memory"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("host")

// Environment is one execution context: its stores and its cross-context
// notification channel.
type Environment struct {
	// Origin uniquely identifies the context.
	Origin string
	// Local is the persistent storage shared with other contexts.
	Local *storage.Storage
	// Session is the storage private to this context.
	Session *storage.Storage
	// Events delivers mutations other contexts make to Local. nil if the
	// host has no such channel.
	Events channel.IChannel

	mu      sync.Mutex
	closers []io.Closer
	closed  bool
}

// Storage returns the storage of the given kind, nil for unknown kinds
func (e *Environment) Storage(kind storage.Kind) *storage.Storage {
	switch kind {
	case storage.KindLocal:
		return e.Local
	case storage.KindSession:
		return e.Session
	default:
		return nil
	}
}

// OnClose registers c to be closed by Close, in reverse registration order
func (e *Environment) OnClose(c io.Closer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closers = append(e.closers, c)
}

// Close releases the resources owned by the environment. Calling it more than
// once is a no-op.
func (e *Environment) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// closerFunc adapts a function to io.Closer
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// NewMemory creates a single, isolated context with volatile storage and no
// notification channel
func NewMemory() *Environment {
	env := &Environment{
		Origin:  uuid.NewString(),
		Local:   storage.New(storage.KindLocal, memory.New(nil)),
		Session: storage.New(storage.KindSession, memory.New(nil)),
	}
	env.OnClose(env.Local.Backend())
	env.OnClose(env.Session.Backend())
	return env
}

// NewFile creates a context whose local storage is the filestore snapshot at
// path. Other processes opening the same path are other contexts: their
// mutations are delivered through a fswatch channel.
func NewFile(path string) (*Environment, error) {
	origin := uuid.NewString()

	backend, err := filestore.Open(path, &filestore.Options{Origin: origin})
	if err != nil {
		return nil, err
	}

	env := &Environment{
		Origin:  origin,
		Local:   storage.New(storage.KindLocal, backend),
		Session: storage.New(storage.KindSession, memory.New(nil)),
	}
	env.OnClose(backend)
	env.OnClose(env.Session.Backend())

	watcher, err := fswatch.New(path, origin, env.Local)
	if err != nil {
		Logger.Warningf("cannot watch %s, changes of other processes will not be observed: %v", path, err)
		return env, nil
	}
	env.Events = watcher
	env.OnClose(watcher)
	return env, nil
}

// --------------------------------------------------------------------------
// Default environment
// --------------------------------------------------------------------------

var defaultEnv atomic.Pointer[Environment]

// SetDefault sets the environment returned by Default
func SetDefault(env *Environment) {
	defaultEnv.Store(env)
}

// Default returns the process-wide environment, nil if none was set
func Default() *Environment {
	return defaultEnv.Load()
}
