package reactive

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/rKV/lib/host"
	"github.com/ValentinKolb/rKV/lib/intercept"
	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("reactive")

// Version of the reactive layer
const Version = "1.0.0"

// --------------------------------------------------------------------------
// Change
// --------------------------------------------------------------------------

// Change is the payload of TopicChange. An absent Key means the whole store
// was cleared, NewValue and OldValue are absent then too.
type Change struct {
	Key      storage.Value
	NewValue storage.Value
	OldValue storage.Value
}

// IsClear reports whether the change describes a store-wide clear
func (c Change) IsClear() bool {
	return !c.Key.Present
}

func (c Change) String() string {
	if c.IsClear() {
		return "clear"
	}
	return fmt.Sprintf("%s: %s -> %s", c.Key, c.OldValue, c.NewValue)
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

type options struct {
	kind    storage.Kind
	storage *storage.Storage
	name    string
}

// Option configures New
type Option func(*options)

// WithKind selects the storage of the environment to wrap (default: local)
func WithKind(kind storage.Kind) Option {
	return func(o *options) { o.kind = kind }
}

// WithStorage wraps s instead of a storage of the environment. The
// environment's channel is still used for cross-context notifications.
func WithStorage(s *storage.Storage) Option {
	return func(o *options) { o.storage = s }
}

// WithName sets the name used in log lines
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

var instances atomic.Uint64

// Store is the reactive facade over a storage. It has the storage's API and
// reports every mutation of the storage as a Change, whether it was made
// through the Store, through the storage by any other code or by another
// context.
type Store struct {
	name      string
	supported bool
	env       *host.Environment
	storage   *storage.Storage

	cache   *cache
	events  *emitter
	metrics *storeMetrics

	closeOnce    sync.Once
	cancelListen func()
}

// New creates a reactive store over a storage of env. A nil env means the host
// has no storage: the store falls back to a private in-memory environment and
// Supported reports false.
func New(env *host.Environment, opts ...Option) *Store {
	o := options{kind: storage.KindLocal}
	for _, opt := range opts {
		opt(&o)
	}

	supported := env != nil
	if !supported {
		env = host.NewMemory()
	}

	st := o.storage
	if st == nil {
		st = env.Storage(o.kind)
	}
	if st == nil {
		Logger.Warningf("host has no %s storage, falling back to a private in-memory storage", o.kind)
		if !supported {
			env.Close()
		}
		env = host.NewMemory()
		st = env.Local
		supported = false
	}

	name := o.name
	if name == "" {
		name = fmt.Sprintf("reactive %s #%d", st.Kind(), instances.Add(1))
	}

	s := &Store{
		name:      name,
		supported: supported,
		env:       env,
		storage:   st,
		cache:     newCache(st),
		events:    newEmitter(),
		metrics:   newStoreMetrics(st.Kind()),
	}

	intercept.Install(st.Kind())
	intercept.Register(st, s.bundle())
	s.listen(env.Events)

	if !supported {
		Logger.Warningf("%s: storage is not supported by the host, changes are only kept in memory", name)
	}
	return s
}

var (
	defaultOnce  sync.Once
	defaultStore *Store
)

// Default returns the process-wide store over the local storage of
// host.Default(). It is created on first use; if no default host is set by
// then, it is an unsupported in-memory store.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = New(host.Default(), WithName("reactive default"))
	})
	return defaultStore
}

// bundle creates the callbacks the interception registry runs for this
// store's storage
func (s *Store) bundle() *intercept.Bundle {
	return &intercept.Bundle{
		Owner: s.name,
		Get: func(key string, value storage.Value) {
			s.cache.populate(key, value)
		},
		Set: func(key, value string) intercept.Commit {
			return s.prepare(key, storage.ValueOf(value))
		},
		Remove: func(key string) intercept.Commit {
			return s.prepare(key, storage.Absent)
		},
		Clear: func() intercept.Commit {
			return s.clear
		},
	}
}

// prepare resolves the old value of key while it is still stored. If that
// fails the mutation goes ahead without a change event.
func (s *Store) prepare(key string, newValue storage.Value) intercept.Commit {
	oldValue, err := s.cache.read(key)
	if err != nil {
		Logger.Errorf("%s: cannot resolve the old value of %q, no change event: %v", s.name, key, err)
		return nil
	}
	return func() {
		s.apply(key, newValue, oldValue)
	}
}

// apply records newValue and emits a change unless nothing changed
func (s *Store) apply(key string, newValue, oldValue storage.Value) {
	s.cache.observe(key, newValue)
	if newValue == oldValue {
		s.metrics.suppressed.Inc()
		return
	}
	s.emit(Change{Key: storage.ValueOf(key), NewValue: newValue, OldValue: oldValue})
}

// clear forgets every known value and emits the clear change
func (s *Store) clear() {
	s.cache.invalidateAll()
	s.emit(Change{})
}

func (s *Store) emit(c Change) {
	s.metrics.emitted.Inc()
	s.events.emit(TopicChange, c, s.name, s.metrics.faults.Inc)
}

// --------------------------------------------------------------------------
// Storage API
// --------------------------------------------------------------------------

// Len returns the number of keys in the storage
func (s *Store) Len() (int, error) {
	return s.storage.Len()
}

// Key returns the key at index, Absent if out of range
func (s *Store) Key(index int) (storage.Value, error) {
	return s.storage.Key(index)
}

// GetItem returns the value of key. Known values are served from the cache.
func (s *Store) GetItem(key string) (storage.Value, error) {
	return s.cache.read(key)
}

// SetItem stores value under key
func (s *Store) SetItem(key, value string) error {
	return s.storage.SetItem(key, value)
}

// RemoveItem deletes key
func (s *Store) RemoveItem(key string) error {
	return s.storage.RemoveItem(key)
}

// Clear removes every key
func (s *Store) Clear() error {
	return s.storage.Clear()
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// On registers h for topic. Registering the same handler twice has no effect.
func (s *Store) On(topic Topic, h *Handler) {
	s.events.on(topic, h)
}

// Off removes h from topic. Removing an unknown handler has no effect.
func (s *Store) Off(topic Topic, h *Handler) {
	s.events.off(topic, h)
}

// OnChange registers fn for TopicChange and returns its handler for Off
func (s *Store) OnChange(fn func(Change)) *Handler {
	h := NewHandler(fn)
	s.On(TopicChange, h)
	return h
}

// Feed injects a change without touching the storage: the cache takes
// newValue and, if it differs from oldValue, a change is emitted. An absent
// key injects a clear.
func (s *Store) Feed(key, newValue, oldValue storage.Value) {
	if !key.Present {
		s.clear()
		return
	}
	s.apply(key.Data, newValue, oldValue)
}

// --------------------------------------------------------------------------
// Misc
// --------------------------------------------------------------------------

// Supported reports whether the host provides the wrapped storage
func (s *Store) Supported() bool {
	return s.supported
}

// Version returns the version of the reactive layer
func (s *Store) Version() string {
	return Version
}

// Name returns the name used in log lines
func (s *Store) Name() string {
	return s.name
}

// Storage returns the wrapped storage
func (s *Store) Storage() *storage.Storage {
	return s.storage
}

// Close stops listening for cross-context notifications. The interception
// of the storage stays in place and keeps the cache current. The
// environment is not closed, except for the private fallback of an
// unsupported store.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cancelListen != nil {
			s.cancelListen()
		}
		if !s.supported {
			err = s.env.Close()
		}
	})
	return err
}
