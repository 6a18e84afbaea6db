// Package tcp implements the socket transport of the base package over TCP.
//
// The connectors apply the socket options of the transport config (no delay,
// keep-alive, linger and kernel buffer sizes) to every connection. See the
// base package for framing, multiplexing and reconnect behaviour.
package tcp
