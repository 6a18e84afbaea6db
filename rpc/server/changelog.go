package server

import (
	"sync"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/rpc/common"
)

const defaultChangeLogSize = 1024

// logEntry is a change plus the context that made it
type logEntry struct {
	origin string
	change common.Change
}

// changeLog is a bounded ring of the latest changes of an area. Sequence
// numbers start at 1, so cursor 0 means "nothing seen yet".
type changeLog struct {
	mu      sync.Mutex
	entries []logEntry
	head    uint64 // seq of the newest entry
}

func newChangeLog(size int) *changeLog {
	if size <= 0 {
		size = defaultChangeLogSize
	}
	return &changeLog{entries: make([]logEntry, size)}
}

// append records n and returns its sequence number
func (l *changeLog) append(origin string, n storage.Notification) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.head++
	l.entries[(l.head-1)%uint64(len(l.entries))] = logEntry{
		origin: origin,
		change: common.ChangeFromNotification(l.head, n),
	}
	return l.head
}

// since returns the changes after cursor that were not made by origin and
// the cursor of the next call. reset is set if cursor is not covered by the
// ring any more (or is ahead of it, e.g. after a restart of the daemon); the
// caller then lost changes and must start over from next.
func (l *changeLog) since(cursor uint64, origin string) (changes []common.Change, next uint64, reset bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := uint64(len(l.entries))
	oldest := uint64(1)
	if l.head > size {
		oldest = l.head - size + 1
	}

	if cursor > l.head || cursor+1 < oldest {
		return nil, l.head, true
	}

	for seq := cursor + 1; seq <= l.head; seq++ {
		e := l.entries[(seq-1)%size]
		if origin != "" && e.origin == origin {
			continue
		}
		changes = append(changes, e.change)
	}
	return changes, l.head, false
}

// current returns the sequence number of the newest entry
func (l *changeLog) current() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}
