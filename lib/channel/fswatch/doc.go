// Package fswatch implements channel.IChannel for processes sharing a
// filestore snapshot.
//
// The watcher follows the snapshot's directory with fsnotify. Whenever the
// snapshot file is created or replaced it is decoded and compared with the
// last snapshot the watcher saw (the baseline). Snapshots written by the
// local backend, recognized by their origin id, only move the baseline.
// Snapshots of other processes are turned into notifications:
//
//   - one per key that was added, changed or removed, or
//   - if the clear generation changed, one clear notification followed by
//     one per key of the new snapshot.
//
// Changes coalesced by the file system between two events are reported as
// their net difference. A foreign write followed by a local write before the
// watcher reacted is absorbed into the baseline without notification.
package fswatch
