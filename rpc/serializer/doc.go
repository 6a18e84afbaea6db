// Package serializer converts rpc messages to bytes and back. It defines a
// common interface and three implementations with different trade-offs.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must
//     satisfy. ByName selects an implementation from a configuration value.
//
//   - binarySerializerImpl: Custom binary format. A message starts with the
//     message type and a 16 bit field mask; only present fields follow, as
//     big endian integers and length prefixed strings. Watch responses carry
//     their change list as a counted sequence of entries with their own
//     flags byte. It is the smallest and fastest format and preserves the
//     difference between a nil and an empty value.
//
//   - jsonSerializerImpl: JSON encoding with the message type as a string,
//     useful for debugging and for clients in other languages.
//
//   - gobSerializerImpl: Go's gob encoding. Each message carries its own type
//     description, so payloads are the largest of the three.
//
// Performance Characteristics:
//
//	Run the benchmarks with
//
//	  go test -bench . ./rpc/serializer
//
//	BenchmarkSize reports the payload size of every format as a custom
//	metric. For the small messages of a storage (short keys and values) the
//	binary format is a fraction of the size of JSON and gob.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
package serializer
