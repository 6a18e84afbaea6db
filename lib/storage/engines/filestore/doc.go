// Package filestore provides a storage.IBackend persisted to a single
// snapshot file.
//
// The whole store is held in memory and written to disk after every
// mutation: the new snapshot goes to a temporary file in the same directory,
// which is then renamed over the old one. Readers therefore always see a
// complete snapshot.
//
// Several processes may open the same path. Before every operation a backend
// checks whether the file was replaced since it last saw it and reloads it if
// so. Writes are last-writer-wins on the whole file; there is no locking
// between processes.
//
// Every snapshot records the origin id of its writer and a clear generation
// that increases with each Clear. The fswatch channel uses both to turn file
// changes of other processes into storage notifications.
//
// The binary format is:
//
//	magic "RKVSNAP\x00" | version uint8 | origin | clearGen uint64 | count uint64 |
//	count * (key | value)
//
// with strings encoded as a little endian uint32 length followed by the bytes.
package filestore
