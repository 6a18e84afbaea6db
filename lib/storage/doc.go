// Package storage models the synchronous key-value stores of a host
// environment: string keys to string values, enumerable by index.
//
// Key Components:
//
//   - IBackend: The native engine. A plain ordered map with Len, Key, Get, Set,
//     Remove, Clear and Close. Engines live in the engines/ subpackages
//     (memory, filestore, sqlite) and share the conformance suite in
//     "github.com/ValentinKolb/rKV/lib/storage/testing".
//
//   - Storage: The store object applications hold. It pairs a backend with a
//     Kind (local or session) and implements IStorage. The item operations
//     (GetItem, SetItem, RemoveItem, Clear) are not bound to the Storage
//     itself but looked up in the method table (Ops) of its kind on every
//     call. Replacing the table with SetPrototype intercepts every storage of
//     that kind, no matter who holds it. NativeOps always returns the
//     original operations.
//
//   - Value: A string that may be absent, used wherever the storage API
//     returns or reports a nullable string.
//
//   - Notification / Publisher: When a Publisher is attached to a Storage,
//     the native operations report each completed mutation as a Notification
//     (key, new value, old value). Cross-context channels deliver these
//     notifications to the other contexts sharing the store. Writes that do
//     not change the stored value are not reported, a clear is reported with
//     an absent key.
//
//   - Error: Failures carry a RetCode (internal error, unsupported operation,
//     quota exceeded, closed) next to the message so callers can react to
//     specific conditions with IsCode.
package storage
