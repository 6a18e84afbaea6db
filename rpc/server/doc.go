// Package server implements the host daemon: it serves storages ("areas") to
// remote environments over any rpc transport.
//
// Every area is a storage.Storage of a kind (local or session) on top of an
// engine (memory, sqlite or file). Requests run through the storage's method
// table, so interception installed on the daemon (e.g. a reactive store used
// for debug logging) sees remote mutations like local ones.
//
// Key Components:
//
//   - Server: Created with NewRPCServer. Opens the configured areas, registers
//     Handle with the transport and listens until Close.
//
//   - Area: One served storage. The area is the storage's publisher: every
//     completed mutation is appended to the area's change log together with
//     the origin of the request that caused it.
//
//   - changeLog: A bounded ring of the latest changes of an area. A watch
//     request returns the changes after its cursor that were made by other
//     origins. When the cursor fell out of the ring (the watcher was too slow,
//     or the daemon restarted) the response is a reset, which clients turn
//     into a clear notification.
//
//   - IRPCServerAdapter: Translates messages into storage calls. The storage
//     adapter handles get, set, remove, clear, key, length and watch.
//
// Usage Example:
//
//	areas, _ := common.ParseAreas("1=local:sqlite:data/local.db,2=session:memory")
//
//	s := server.NewRPCServer(
//	  common.ServerConfig{
//	    Areas:         areas,
//	    ChangeLogSize: 1024,
//	    TimeoutSecond: 5,
//	    Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	  },
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Requests are handled concurrently. Mutations of one area are serialized
//	so each change log entry is attributed to the right origin. Serve must
//	only be called once.
package server
