// Package cmd implements the command-line interface of rKV. It provides a
// hierarchical command structure with operations for running the daemon and
// for using its storages through a reactive store.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for storage operations (get, set, rm, clear, key, len),
//     watch for printing the change events of a storage and bench
//   - serve: Commands for starting and configuring the rKV daemon
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set with an environment variable RKV_<FLAG>, e.g.
// RKV_TRANSPORT_ENDPOINTS=localhost:9000. .env and .env.local are read on
// startup.
//
// See rkv -help for a list of all commands.
package cmd
