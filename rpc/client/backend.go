package client

import (
	"errors"
	"sync/atomic"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/transport"
)

var errBackendClosed = storage.NewError(storage.RetCClosed, "remote backend is closed")

// NewRemoteBackend creates a storage.IBackend that forwards every operation
// to an area of a daemon. Mutations are tagged with origin, so the remote
// channel of the same context does not report them back. The transport must
// be connected; it is not closed by the backend.
func NewRemoteBackend(
	areaID uint64,
	origin string,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) storage.IBackend {
	return &remoteBackend{
		rpcClientAdapter: rpcClientAdapter{
			areaID:     areaID,
			origin:     origin,
			transport:  transport,
			serializer: serializer,
		},
	}
}

type remoteBackend struct {
	rpcClientAdapter
	closed atomic.Bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see storage.IBackend)
// --------------------------------------------------------------------------

func (b *remoteBackend) Len() (int, error) {
	resp, err := b.call(common.NewLengthRequest())
	if err != nil {
		return 0, err
	}
	return int(resp.Index), nil
}

func (b *remoteBackend) Key(index int) (storage.Value, error) {
	if index < 0 {
		return storage.Absent, nil
	}
	resp, err := b.call(common.NewKeyRequest(uint64(index)))
	if err != nil {
		return storage.Absent, err
	}
	if !resp.Ok {
		return storage.Absent, nil
	}
	return storage.ValueOf(resp.Key), nil
}

func (b *remoteBackend) Get(key string) (storage.Value, error) {
	resp, err := b.call(common.NewGetRequest(key))
	if err != nil {
		return storage.Absent, err
	}
	if !resp.Ok {
		return storage.Absent, nil
	}
	return storage.ValueOf(string(resp.Value)), nil
}

func (b *remoteBackend) Set(key, value string) error {
	_, err := b.call(common.NewSetRequest(b.origin, key, value))
	return err
}

func (b *remoteBackend) Remove(key string) error {
	_, err := b.call(common.NewRemoveRequest(b.origin, key))
	return err
}

func (b *remoteBackend) Clear() error {
	_, err := b.call(common.NewClearRequest(b.origin))
	return err
}

func (b *remoteBackend) Close() error {
	b.closed.Store(true)
	return nil
}

// call sends req. Transport failures are reported as internal errors, errors
// of the daemon keep their code.
func (b *remoteBackend) call(req *common.Message) (*common.Message, error) {
	if b.closed.Load() {
		return nil, errBackendClosed
	}
	resp, err := b.invoke(req)
	if err != nil {
		var se *storage.Error
		if !errors.As(err, &se) {
			return nil, storage.Errorf(storage.RetCInternalError, "area %d: %v", b.areaID, err)
		}
		return nil, err
	}
	return resp, nil
}
