package client

import (
	"fmt"

	"github.com/ValentinKolb/rKV/lib/host"
	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/lib/storage/engines/memory"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/google/uuid"
)

// NewRemoteEnvironment connects transport and creates a context whose
// storages live on a daemon. areas maps a storage kind to the id of the area
// that backs it; the local kind is required. Without a session area the
// session storage is a private memory storage. The mutations other contexts
// make to the local area are delivered through a RemoteChannel.
//
// Closing the environment stops the channel and closes the transport.
func NewRemoteEnvironment(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
	areas map[storage.Kind]uint64,
) (*host.Environment, error) {
	localID, ok := areas[storage.KindLocal]
	if !ok {
		return nil, fmt.Errorf("no area for %s storage", storage.KindLocal)
	}

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	origin := uuid.NewString()
	env := &host.Environment{
		Origin: origin,
		Local:  storage.New(storage.KindLocal, NewRemoteBackend(localID, origin, transport, serializer)),
	}
	env.OnClose(transport)
	env.OnClose(env.Local.Backend())

	if sessionID, ok := areas[storage.KindSession]; ok {
		env.Session = storage.New(storage.KindSession, NewRemoteBackend(sessionID, origin, transport, serializer))
	} else {
		env.Session = storage.New(storage.KindSession, memory.New(nil))
	}
	env.OnClose(env.Session.Backend())

	events := NewRemoteChannel(localID, origin, env.Local, config, transport, serializer)
	env.Events = events
	env.OnClose(events)

	Logger.Infof("connected remote environment %s (local area %d)", origin, localID)
	return env, nil
}
