package tcp

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/rKV/rpc/common"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// freeEndpoint returns a loopback address nothing listens on
func freeEndpoint(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestRoundTrip(t *testing.T) {
	endpoint := freeEndpoint(t)

	server := NewTCPServerTransport()
	server.RegisterHandler(func(areaID uint64, req []byte) []byte {
		return []byte(fmt.Sprintf("%d:%s", areaID, req))
	})

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(common.ServerConfig{
			TimeoutSecond: 1,
			Transport: common.ServerTransportConfig{
				Endpoint:        endpoint,
				TCPNoDelay:      true,
				TCPKeepAliveSec: 30,
				TCPLingerSec:    -1,
				ReadBufferSize:  32 * 1024,
				WriteBufferSize: 32 * 1024,
			},
		})
	}()

	client := NewTCPClientTransport()
	config := common.ClientConfig{
		TimeoutSecond: 1,
		Transport: common.ClientTransportConfig{
			Endpoints:       []string{endpoint},
			RetryCount:      2,
			TCPNoDelay:      true,
			TCPKeepAliveSec: 30,
		},
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := client.Connect(config)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Connect: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	for i := uint64(0); i < 8; i++ {
		resp, err := client.Send(i, []byte("watch"))
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if want := fmt.Sprintf("%d:watch", i); string(resp) != want {
			t.Errorf("response = %q, want %q", resp, want)
		}
	}

	client.Close()
	if err := server.Close(); err != nil {
		t.Errorf("server Close: %v", err)
	}
	select {
	case err := <-listenErr:
		if err != nil {
			t.Errorf("Listen returned %v after Close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Close")
	}
}

func TestListenOnUsedEndpoint(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	server := NewTCPServerTransport()
	server.RegisterHandler(func(uint64, []byte) []byte { return nil })
	err = server.Listen(common.ServerConfig{
		Transport: common.ServerTransportConfig{Endpoint: l.Addr().String()},
	})
	if err == nil {
		server.Close()
		t.Fatal("Listen on a used endpoint succeeded")
	}
}
