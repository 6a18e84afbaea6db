package transport

import (
	"github.com/ValentinKolb/rKV/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc handles a single request. It is called by a server
// transport for every received request with the id of the addressed area and
// the serialized message, and returns the serialized response.
type ServerHandleFunc func(areaID uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of the transport
// layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler that is called for every request.
	// It must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport and blocks until Close is called or the
	// transport fails. After Close it returns nil.
	Listen(config common.ServerConfig) error
	// Close stops accepting requests and closes open connections
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request for an area to the server and returns the response
	Send(areaID uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
