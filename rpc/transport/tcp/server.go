package tcp

import (
	"fmt"
	"net"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/base"
)

// serverConnector accepts the connections of remote contexts on the host:port
// the daemon is started with (rkv serve --endpoint)
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.Transport.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("tcp listen on %q: %w", config.Transport.Endpoint, err)
	}
	return listener, nil
}

// UpgradeConnection tunes a context connection. Watch polls are small frames,
// so no-delay matters more than throughput; buffer sizes of zero and a
// negative linger keep the kernel defaults.
func (c *serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	opts := config.Transport
	if err := tcpConn.SetNoDelay(opts.TCPNoDelay); err != nil {
		return err
	}
	if err := setKeepAlive(tcpConn, opts.TCPKeepAliveSec); err != nil {
		return err
	}

	if opts.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(opts.WriteBufferSize); err != nil {
			return err
		}
	}
	if opts.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(opts.ReadBufferSize); err != nil {
			return err
		}
	}
	if opts.TCPLingerSec >= 0 {
		return tcpConn.SetLinger(opts.TCPLingerSec)
	}
	return nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPServerTransport creates the daemon side of the tcp transport
func NewTCPServerTransport() transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{})
}
