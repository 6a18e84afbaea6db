// Package channel defines the cross-context notification channel: the way a
// mutation of a shared store in one execution context becomes visible to the
// other contexts sharing it.
//
// Implementations:
//
//   - bus: in-process, for several host environments sharing one backend.
//   - fswatch: cross-process, for environments sharing a filestore snapshot.
//   - the rpc client's remote channel, which polls the change log of an rKV
//     server.
//
// A channel delivers storage.Notification values. An absent key signals a
// store-wide clear. Channels set Notification.Area to the receiving
// context's storage when they know it, otherwise receivers fall back to
// comparing Notification.Kind.
package channel
