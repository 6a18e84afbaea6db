// Package memory provides a volatile storage.IBackend.
//
// Keys are enumerated in insertion order: a new key is appended, overwriting
// keeps the position and removing shifts the following keys down by one.
// An optional quota bounds the summed length of all keys and values; a write
// that would exceed it fails with storage.RetCQuotaExceeded and leaves the
// backend unchanged.
//
// The backend is used for session storage and as the fallback when the host
// does not provide persistent storage.
package memory
