package fswatch

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ValentinKolb/rKV/lib/channel"
	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/lib/storage/engines/filestore"
	"github.com/fsnotify/fsnotify"
)

var Logger = channel.Logger

// Watcher turns changes of a filestore snapshot made by other processes into
// notifications. It implements channel.IChannel.
type Watcher struct {
	path   string
	origin string
	area   *storage.Storage

	fs   *fsnotify.Watcher
	done chan struct{}

	mu       sync.Mutex
	baseline *filestore.Snapshot

	listeners channel.Listeners
}

// New watches the snapshot at path. origin is the origin id of the local
// backend, snapshots written by it are taken as the new baseline without
// notifying. area is set on every delivered notification (may be nil).
func New(path, origin string, area *storage.Storage) (*Watcher, error) {
	path = filepath.Clean(path)

	baseline, err := filestore.ReadSnapshot(path)
	if errors.Is(err, fs.ErrNotExist) {
		baseline = &filestore.Snapshot{Values: map[string]string{}}
	} else if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// the snapshot is replaced by rename, so the directory is watched, not the file
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		origin:   origin,
		area:     area,
		fs:       fsw,
		done:     make(chan struct{}),
		baseline: baseline,
	}
	go w.run()
	return w, nil
}

// Subscribe implements channel.IChannel
func (w *Watcher) Subscribe(l channel.Listener) (func(), error) {
	return w.listeners.Add(l), nil
}

// Close stops watching
func (w *Watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				w.refresh()
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			Logger.Warningf("watching %s: %v", w.path, err)
		}
	}
}

// refresh reads the snapshot, moves the baseline and delivers the difference
// unless the snapshot was written by the local backend
func (w *Watcher) refresh() {
	snap, err := filestore.ReadSnapshot(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		Logger.Warningf("failed to read %s: %v", w.path, err)
		return
	}

	w.mu.Lock()
	notes := diff(w.baseline, snap, w.area)
	w.baseline = snap
	w.mu.Unlock()

	if snap.Origin == w.origin {
		return
	}
	for _, n := range notes {
		w.listeners.Deliver(n)
	}
}

// diff describes the step from old to next as notifications. A new clear
// generation becomes a clear followed by one notification per key of next.
func diff(old, next *filestore.Snapshot, area *storage.Storage) []storage.Notification {
	var kind storage.Kind
	if area != nil {
		kind = area.Kind()
	}
	note := func(key string, newValue, oldValue storage.Value) storage.Notification {
		return storage.Notification{
			Key:      storage.ValueOf(key),
			NewValue: newValue,
			OldValue: oldValue,
			Kind:     kind,
			Area:     area,
		}
	}

	var notes []storage.Notification

	if next.ClearGen != old.ClearGen {
		notes = append(notes, storage.Notification{Kind: kind, Area: area})
		for _, key := range next.Keys {
			notes = append(notes, note(key, storage.ValueOf(next.Values[key]), storage.Absent))
		}
		return notes
	}

	for _, key := range next.Keys {
		newValue := next.Values[key]
		oldValue := storage.Absent
		if v, ok := old.Get(key); ok {
			if v == newValue {
				continue
			}
			oldValue = storage.ValueOf(v)
		}
		notes = append(notes, note(key, storage.ValueOf(newValue), oldValue))
	}

	var removed []string
	for key := range old.Values {
		if _, ok := next.Values[key]; !ok {
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	for _, key := range removed {
		notes = append(notes, note(key, storage.Absent, storage.ValueOf(old.Values[key])))
	}

	return notes
}
