package reactive

import (
	"github.com/ValentinKolb/rKV/lib/channel"
	"github.com/ValentinKolb/rKV/lib/storage"
)

// listen subscribes the store to the environment's notification channel.
// Without a channel the store still sees every mutation made in its own
// context.
func (s *Store) listen(events channel.IChannel) {
	if events == nil {
		Logger.Infof("%s: %v, only changes of this context are observed", s.name, channel.ErrUnsupported)
		return
	}

	cancel, err := events.Subscribe(s.onNotification)
	if err != nil {
		Logger.Warningf("%s: cannot subscribe to cross-context notifications, only changes of this context are observed: %v", s.name, err)
		return
	}
	s.cancelListen = cancel
}

// accepts reports whether n concerns this store's storage. Channels that
// know the receiving storage set Area; otherwise the kind has to match; a
// notification carrying neither is accepted.
func (s *Store) accepts(n storage.Notification) bool {
	if n.Area != nil {
		return n.Area == s.storage
	}
	if n.Kind != "" {
		return n.Kind == s.storage.Kind()
	}
	return true
}

// onNotification feeds a mutation made by another context into the same
// path local mutations take
func (s *Store) onNotification(n storage.Notification) {
	if !s.accepts(n) {
		return
	}
	s.metrics.remote.Inc()
	s.Feed(n.Key, n.NewValue, n.OldValue)
}
