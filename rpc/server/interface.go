package server

import (
	"github.com/ValentinKolb/rKV/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and the area the request is addressed to.
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, area *Area) (resp *common.Message)
}
