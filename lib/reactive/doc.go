// Package reactive turns a storage into an observable store.
//
// A Store wraps one *storage.Storage and offers the same API (Len, Key,
// GetItem, SetItem, RemoveItem, Clear) plus a change event:
//
//	store := reactive.New(env)
//	store.OnChange(func(c reactive.Change) {
//		if c.IsClear() {
//			fmt.Println("cleared")
//			return
//		}
//		fmt.Printf("%s: %s -> %s\n", c.Key, c.OldValue, c.NewValue)
//	})
//
// Mutations reach a Store from three sources, which all end in the same
// step: resolve the old value, record the new value in the cache, emit a
// Change if the value differs.
//
//   - Through the Store itself. SetItem and friends call the storage, they do
//     not emit anything themselves.
//   - Through the storage, by any code. New installs the interception of the
//     storage's kind (package intercept) and registers a bundle for the
//     storage. Its callbacks resolve the old value before the native
//     mutation and apply the change after it succeeded.
//   - From another context, through the environment's notification channel.
//     Notifications for other storages are filtered out.
//
// Each Store keeps a read-through cache of the values it has seen. GetItem is
// answered from it; a clear empties it, so later reads go back to the
// storage.
//
// Handlers run synchronously, in registration order, before the mutating
// call returns. A panicking handler is logged and skipped. Handlers may
// mutate the store again, the nested change is delivered before the outer
// call returns.
//
// Feed injects a change without touching the storage, Feed with an absent
// key injects a clear.
package reactive
