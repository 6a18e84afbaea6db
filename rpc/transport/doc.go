// Package transport defines the interfaces for moving serialized rpc messages
// between remote environments and a host daemon. It provides a common contract
// that all transport implementations must fulfill, so client and server code
// do not depend on the network protocol.
//
// Every request addresses an area (a storage served by the daemon) by its
// numeric id; the transport carries the id next to the payload and the server
// side hands both to a ServerHandleFunc.
//
// Implementations:
//
//   - base: framed messages over stream sockets with request multiplexing,
//     used by tcp and unix.
//   - tcp: base over TCP with socket tuning.
//   - unix: base over Unix domain sockets for daemons on the same machine.
//   - http: one POST per request. The server also exposes the process
//     metrics at GET /metrics.
package transport
