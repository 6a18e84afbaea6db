package storage

import (
	"fmt"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("storage")

// --------------------------------------------------------------------------
// Method tables
// --------------------------------------------------------------------------

// Ops is the method table shared by all storages of one kind. Storage methods
// dispatch through the table of their kind, so replacing a table changes the
// behavior of every storage of that kind, including storages held by code that
// knows nothing about the replacement.
type Ops struct {
	GetItem    func(s *Storage, key string) (Value, error)
	SetItem    func(s *Storage, key, value string) error
	RemoveItem func(s *Storage, key string) error
	Clear      func(s *Storage) error
}

var natives = Ops{
	GetItem:    nativeGetItem,
	SetItem:    nativeSetItem,
	RemoveItem: nativeRemoveItem,
	Clear:      nativeClear,
}

var (
	prototypesMu sync.RWMutex
	prototypes   = make(map[Kind]Ops)
)

// NativeOps returns the true native operations. They talk to the backend
// directly and are never affected by SetPrototype.
func NativeOps() Ops {
	return natives
}

// Prototype returns the current method table of a kind
func Prototype(kind Kind) Ops {
	prototypesMu.RLock()
	defer prototypesMu.RUnlock()

	if ops, ok := prototypes[kind]; ok {
		return ops
	}
	return natives
}

// SetPrototype replaces the method table of a kind. Nil entries fall back to
// the native operation.
func SetPrototype(kind Kind, ops Ops) {
	if ops.GetItem == nil {
		ops.GetItem = natives.GetItem
	}
	if ops.SetItem == nil {
		ops.SetItem = natives.SetItem
	}
	if ops.RemoveItem == nil {
		ops.RemoveItem = natives.RemoveItem
	}
	if ops.Clear == nil {
		ops.Clear = natives.Clear
	}

	prototypesMu.Lock()
	defer prototypesMu.Unlock()
	prototypes[kind] = ops
}

// --------------------------------------------------------------------------
// Storage
// --------------------------------------------------------------------------

// Storage is a store object of the host environment: a backend plus a kind.
// It implements IStorage.
//
// GetItem, SetItem, RemoveItem and Clear dispatch through the method table of
// the storage's kind. Len and Key always go straight to the backend.
type Storage struct {
	kind    Kind
	backend IBackend

	mu        sync.RWMutex
	publisher Publisher
}

// New creates a storage of the given kind on top of backend
func New(kind Kind, backend IBackend) *Storage {
	return &Storage{
		kind:    kind,
		backend: backend,
	}
}

// SetPublisher attaches the publisher that the native operations report
// completed mutations to. nil detaches it.
func (s *Storage) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

func (s *Storage) getPublisher() Publisher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publisher
}

// Kind returns the kind of the storage
func (s *Storage) Kind() Kind {
	return s.kind
}

// Backend returns the engine behind the storage
func (s *Storage) Backend() IBackend {
	return s.backend
}

func (s *Storage) Len() (int, error) {
	return s.backend.Len()
}

func (s *Storage) Key(index int) (Value, error) {
	return s.backend.Key(index)
}

func (s *Storage) GetItem(key string) (Value, error) {
	return Prototype(s.kind).GetItem(s, key)
}

func (s *Storage) SetItem(key, value string) error {
	return Prototype(s.kind).SetItem(s, key, value)
}

func (s *Storage) RemoveItem(key string) error {
	return Prototype(s.kind).RemoveItem(s, key)
}

func (s *Storage) Clear() error {
	return Prototype(s.kind).Clear(s)
}

func (s *Storage) String() string {
	return fmt.Sprintf("%s storage (%p)", s.kind, s)
}

// --------------------------------------------------------------------------
// Native operations
// --------------------------------------------------------------------------

func nativeGetItem(s *Storage, key string) (Value, error) {
	return s.backend.Get(key)
}

// The mutating natives only look up the old value when somebody listens. A
// failed lookup does not stop the mutation, the notification is dropped.

func nativeSetItem(s *Storage, key, value string) error {
	p := s.getPublisher()
	oldValue, lookupErr := lookup(s, p, key)

	if err := s.backend.Set(key, value); err != nil {
		return err
	}

	newValue := ValueOf(value)
	if p != nil && lookupErr == nil && newValue != oldValue {
		p.Publish(Notification{
			Key:      ValueOf(key),
			NewValue: newValue,
			OldValue: oldValue,
			Kind:     s.kind,
			Area:     s,
		})
	}
	return nil
}

func nativeRemoveItem(s *Storage, key string) error {
	p := s.getPublisher()
	oldValue, lookupErr := lookup(s, p, key)

	if err := s.backend.Remove(key); err != nil {
		return err
	}

	if p != nil && lookupErr == nil && oldValue.Present {
		p.Publish(Notification{
			Key:      ValueOf(key),
			NewValue: Absent,
			OldValue: oldValue,
			Kind:     s.kind,
			Area:     s,
		})
	}
	return nil
}

func nativeClear(s *Storage) error {
	p := s.getPublisher()

	n := 1
	if p != nil {
		var err error
		if n, err = s.backend.Len(); err != nil {
			Logger.Debugf("%s: length lookup before clear failed: %v", s, err)
			n = 1
		}
	}

	if err := s.backend.Clear(); err != nil {
		return err
	}

	// like the browser, clearing an empty storage is not a change
	if p != nil && n > 0 {
		p.Publish(Notification{Kind: s.kind, Area: s})
	}
	return nil
}

func lookup(s *Storage, p Publisher, key string) (Value, error) {
	if p == nil {
		return Absent, nil
	}
	v, err := s.backend.Get(key)
	if err != nil {
		Logger.Debugf("%s: old value lookup for %q failed: %v", s, key, err)
	}
	return v, err
}
