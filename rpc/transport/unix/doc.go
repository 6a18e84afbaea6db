// Package unix implements the socket transport of the base package over Unix
// domain sockets, for remote environments on the same machine as the daemon.
//
// The endpoint is the path of the socket file. A stale socket file left by a
// previous run is removed on Listen. Local sockets skip the TCP/IP stack, which
// gives a lower latency per request than the tcp transport.
package unix
