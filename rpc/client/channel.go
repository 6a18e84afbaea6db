package client

import (
	"sync"
	"time"

	"github.com/ValentinKolb/rKV/lib/channel"
	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/transport"
)

const defaultPollInterval = 200 * time.Millisecond

// RemoteChannel is a channel.IChannel over the change log of an area. It
// polls the daemon for the changes other origins made and delivers them as
// notifications for area. When the daemon reports a reset, i.e. changes were
// lost, a clear notification is delivered so listeners drop what they know
// about the area.
type RemoteChannel struct {
	rpcClientAdapter
	area      *storage.Storage
	interval  time.Duration
	listeners channel.Listeners

	// cursor is only touched by the poll goroutine
	cursor  uint64
	synced  bool
	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once
}

// NewRemoteChannel starts watching the area and returns the channel. area is
// the storage of the receiving context that the notifications apply to. The
// transport must be connected; Close stops the polling but does not close the
// transport.
func NewRemoteChannel(
	areaID uint64,
	origin string,
	area *storage.Storage,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) *RemoteChannel {
	interval := time.Duration(config.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = defaultPollInterval
	}

	c := &RemoteChannel{
		rpcClientAdapter: rpcClientAdapter{
			areaID:     areaID,
			origin:     origin,
			transport:  transport,
			serializer: serializer,
		},
		area:     area,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	// the first poll only fetches the head of the log, changes made before
	// the channel existed are not reported
	c.poll()
	go c.run()
	return c
}

// Subscribe implements channel.IChannel
func (c *RemoteChannel) Subscribe(l channel.Listener) (func(), error) {
	return c.listeners.Add(l), nil
}

// Close stops the polling and waits for the poll goroutine
func (c *RemoteChannel) Close() error {
	c.stopped.Do(func() { close(c.stopCh) })
	<-c.done
	return nil
}

func (c *RemoteChannel) run() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.poll()
		}
	}
}

// poll fetches and delivers the changes after the cursor
func (c *RemoteChannel) poll() {
	resp, err := c.invoke(common.NewWatchRequest(c.origin, c.cursor, !c.synced))
	if err != nil {
		Logger.Debugf("watch of area %d failed: %v", c.areaID, err)
		return
	}

	if !c.synced {
		c.synced = true
		c.cursor = resp.Cursor
		return
	}

	c.cursor = resp.Cursor
	if resp.Reset {
		Logger.Warningf("lost changes of area %d, reporting a clear", c.areaID)
		c.deliver(storage.Notification{})
		return
	}
	for _, change := range resp.Changes {
		c.deliver(change.Notification())
	}
}

func (c *RemoteChannel) deliver(n storage.Notification) {
	n.Kind = c.area.Kind()
	n.Area = c.area
	c.listeners.Deliver(n)
}
