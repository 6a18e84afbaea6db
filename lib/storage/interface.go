package storage

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Kind names a type of store, e.g. the persistent local storage and the
// per-context session storage. The interception of storage operations is
// installed per kind.
type Kind string

const (
	KindLocal   Kind = "local"
	KindSession Kind = "session"
)

// IBackend is the native engine behind a Storage. It is a plain, synchronous
// ordered string map without any notion of observers.
//
// Implementations must be safe for concurrent use. Failures are reported as
// *Error so the return code survives transport boundaries.
type IBackend interface {
	// Len returns the number of stored keys.
	Len() (n int, err error)
	// Key returns the key at position index or Absent if index is out of range.
	// The order is backend-defined and may change after any mutation.
	Key(index int) (key Value, err error)
	// Get returns the value for a key or Absent if the key does not exist.
	Get(key string) (value Value, err error)
	// Set inserts or updates a key-value pair.
	Set(key, value string) (err error)
	// Remove deletes a key. Removing a missing key is not an error.
	Remove(key string) (err error)
	// Clear removes all keys.
	Clear() (err error)
	// Close releases the resources of the backend. Afterwards every
	// operation fails with RetCClosed.
	Close() (err error)
}

// IStorage is the store contract seen by applications. *Storage implements it
// and so does the reactive facade, which makes the two interchangeable.
type IStorage interface {
	Len() (int, error)
	Key(index int) (Value, error)
	GetItem(key string) (Value, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Clear() error
}

// --------------------------------------------------------------------------
// Notifications
// --------------------------------------------------------------------------

// Notification describes a completed mutation of a storage. It is what the
// native operations publish and what cross-context channels deliver.
//
// An Absent Key marks a store-wide clear, NewValue and OldValue are Absent in
// that case.
type Notification struct {
	Key      Value
	NewValue Value
	OldValue Value
	// Kind is the kind of the storage that was mutated, empty if unknown.
	Kind Kind
	// Area is the receiving context's storage the notification applies to,
	// nil if the channel cannot tell.
	Area *Storage
}

// IsClear reports whether the notification describes a store-wide clear
func (n Notification) IsClear() bool {
	return !n.Key.Present
}

// Publisher receives the notifications of a storage's native operations
type Publisher interface {
	Publish(n Notification)
}
