// Package base implements the parts of a socket transport that do not depend
// on the network protocol. The tcp and unix packages add the protocol
// specific connectors.
//
// Frame format (all integers big endian):
//
//	+----------------+----------------+------------+-----------------+
//	| areaID uint64  | requestID u64  | length u32 | payload         |
//	+----------------+----------------+------------+-----------------+
//
// The request id correlates a response with its request, so a connection
// carries many requests at once and the server answers them in any order.
//
// Client:
//
//   - ConnectionsPerEndpoint connections per endpoint, selected round robin.
//   - One reader goroutine per connection. When a read fails, all requests
//     waiting on the connection fail and the reader reconnects with
//     exponential backoff.
//   - Send retries up to RetryCount times with exponential backoff and jitter.
//
// Server:
//
//   - One goroutine per accepted connection reading frames, and at most
//     WorkersPerConn goroutines per connection running the handler.
//   - Read buffers are pooled with a sync.Pool.
//   - Close stops accepting, closes open connections and makes Listen return
//     once all connection goroutines are done.
package base
