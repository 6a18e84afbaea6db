// Package rpc lets contexts in different processes share storages. A daemon
// hosts the storages ("areas"); remote environments use them through a
// storage.IBackend and learn about the mutations of other processes through
// a channel that polls the area's change log.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system, including the
//     Message protocol, the change log entries and the configuration
//     structures.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: The remote backend, the remote channel and the remote
//     environment that wires both into a host.Environment.
//
//   - server: The daemon. It opens the areas, executes requests through the
//     storages and keeps a bounded change log per area.
package rpc
