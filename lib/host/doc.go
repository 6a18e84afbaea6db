// Package host provides the execution environments the reactive layer runs
// in. An Environment bundles what a browser window offers: a local storage
// shared with other contexts, a private session storage and the channel that
// reports the other contexts' mutations of the local storage.
//
// Three kinds of hosts are available:
//
//   - NewMemory: one isolated context, nothing is shared or persisted.
//   - Group: several contexts in one process sharing a local backend, linked
//     by a bus.
//   - NewFile: the local storage is a snapshot file; every process opening
//     the same file is another context, linked by a file watcher.
//
// The rpc client adds a fourth: a context whose stores live on an rKV server.
//
// SetDefault and Default hold the process-wide environment used by
// reactive.Default.
package host
