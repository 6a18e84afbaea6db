package server

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/rpc/common"
)

func NewStorageServerAdapter() IRPCServerAdapter {
	return &storageServerAdapterImpl{}
}

type storageServerAdapterImpl struct{}

func (adapter *storageServerAdapterImpl) Handle(req *common.Message, area *Area) *common.Message {
	// Check for nil area
	if area == nil {
		return common.NewErrorResponse("handler: area is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTGet:
		val, err := area.storage.GetItem(req.Key)
		return common.NewGetResponse(val, err)
	case common.MsgTSet:
		err := area.Mutate(req.Origin, func(s *storage.Storage) error {
			return s.SetItem(req.Key, string(req.Value))
		})
		return common.NewSetResponse(err)
	case common.MsgTRemove:
		err := area.Mutate(req.Origin, func(s *storage.Storage) error {
			return s.RemoveItem(req.Key)
		})
		return common.NewRemoveResponse(err)
	case common.MsgTClear:
		err := area.Mutate(req.Origin, func(s *storage.Storage) error {
			return s.Clear()
		})
		return common.NewClearResponse(err)
	case common.MsgTKey:
		if req.Index > math.MaxInt32 {
			return common.NewKeyResponse(storage.Absent, nil)
		}
		key, err := area.storage.Key(int(req.Index))
		return common.NewKeyResponse(key, err)
	case common.MsgTLength:
		n, err := area.storage.Len()
		return common.NewLengthResponse(n, err)
	case common.MsgTWatch:
		if req.Reset {
			return common.NewWatchResponse(area.log.current(), false, nil, nil)
		}
		changes, next, reset := area.log.since(req.Cursor, req.Origin)
		return common.NewWatchResponse(next, reset, changes, nil)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC StorageAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
