// Package client connects contexts to the storages of a daemon (see package
// server). A remote environment behaves like any other host environment, so
// a reactive store over it reports the mutations of every process that uses
// the same daemon.
//
// Key Components:
//
//   - NewRemoteBackend: A storage.IBackend that forwards every operation to an
//     area of the daemon. Errors of the daemon keep their return code, e.g. a
//     quota error stays a RetCQuotaExceeded; transport failures become
//     internal errors.
//
//   - RemoteChannel: A channel.IChannel that polls the change log of an area.
//     Changes made by the own origin are filtered by the daemon. If the
//     daemon reports that changes were lost, listeners get a clear
//     notification.
//
//   - NewRemoteEnvironment: Connects a transport and wires backend and channel
//     into a host.Environment.
//
// Usage Example:
//
//	env, err := client.NewRemoteEnvironment(
//	  common.ClientConfig{
//	    TimeoutSecond:  5,
//	    PollIntervalMs: 200,
//	    Transport: common.ClientTransportConfig{
//	      Endpoints:  []string{"localhost:8080"},
//	      RetryCount: 3,
//	    },
//	  },
//	  tcp.NewTCPClientTransport(),
//	  serializer.NewBinarySerializer(),
//	  map[storage.Kind]uint64{storage.KindLocal: 1},
//	)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer env.Close()
//
//	store := reactive.New(env)
//	store.OnChange(func(c reactive.Change) { fmt.Println(c) })
//
// Performance Considerations:
//
//   - Every storage operation is a round trip. The reactive store's cache
//     avoids most of the reads.
//
//   - Changes of other contexts arrive with a delay of up to PollIntervalMs.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
