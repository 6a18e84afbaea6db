// Package sqlite provides a persistent storage.IBackend on top of SQLite,
// using the pure Go driver modernc.org/sqlite (no cgo).
//
// Items live in one table:
//
//	items(key TEXT PRIMARY KEY, value TEXT NOT NULL, seq INTEGER NOT NULL)
//
// seq is assigned on insert and kept on overwrite, so Key(i) enumerates keys
// in insertion order via ORDER BY seq LIMIT 1 OFFSET i.
package sqlite
