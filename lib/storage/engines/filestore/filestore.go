package filestore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/google/uuid"
)

// Options configures a file backend
type Options struct {
	// Origin is written into every snapshot so watchers can tell their own
	// writes apart from writes of other processes. Empty means a random id.
	Origin string
}

// fileStamp identifies a version of the snapshot file on disk
type fileStamp struct {
	modTime time.Time
	size    int64
}

// fileImpl keeps the snapshot in memory and rewrites the file after every
// mutation. Before each operation the file is re-read if another process
// replaced it since it was last seen.
type fileImpl struct {
	mu     sync.Mutex
	path   string
	origin string
	snap   *Snapshot
	stamp  fileStamp
	closed bool
}

// Open opens (or creates) the snapshot file at path. The parent directory is
// created if needed. opts may be nil.
func Open(path string, opts *Options) (storage.IBackend, error) {
	if opts == nil {
		opts = &Options{}
	}
	origin := opts.Origin
	if origin == "" {
		origin = uuid.NewString()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storage.Errorf(storage.RetCInternalError, "failed to create directory for %s: %v", path, err)
	}

	f := &fileImpl{
		path:   path,
		origin: origin,
		snap:   newSnapshot(origin),
	}
	if err := f.refreshLocked(); err != nil {
		return nil, err
	}
	return f, nil
}

// Origin returns the origin id written into the snapshots of b, or "" if b is
// not a file backend
func Origin(b storage.IBackend) string {
	if f, ok := b.(*fileImpl); ok {
		return f.origin
	}
	return ""
}

// refreshLocked reloads the snapshot if the file changed on disk
func (f *fileImpl) refreshLocked() error {
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		if f.stamp != (fileStamp{}) {
			// removed by someone else, start over but keep counting clears
			gen := f.snap.ClearGen
			f.snap = newSnapshot(f.origin)
			f.snap.ClearGen = gen
			f.stamp = fileStamp{}
		}
		return nil
	}
	if err != nil {
		return storage.Errorf(storage.RetCInternalError, "failed to stat %s: %v", f.path, err)
	}

	stamp := fileStamp{modTime: info.ModTime(), size: info.Size()}
	if stamp == f.stamp {
		return nil
	}

	snap, err := ReadSnapshot(f.path)
	if err != nil {
		return storage.NewError(storage.RetCInternalError, err.Error())
	}
	f.snap = snap
	f.stamp = stamp
	return nil
}

// persistLocked writes next to a temporary file and renames it over the
// snapshot, so readers never see a partial file. On success next becomes the
// current snapshot.
func (f *fileImpl) persistLocked(next *Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return storage.Errorf(storage.RetCInternalError, "failed to create temp file: %v", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := WriteSnapshot(tmp, next); err != nil {
		tmp.Close()
		return storage.Errorf(storage.RetCInternalError, "failed to write snapshot: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return storage.Errorf(storage.RetCInternalError, "failed to close snapshot: %v", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return storage.Errorf(storage.RetCInternalError, "failed to replace snapshot: %v", err)
	}

	info, err := os.Stat(f.path)
	if err != nil {
		return storage.Errorf(storage.RetCInternalError, "failed to stat %s: %v", f.path, err)
	}
	f.snap = next
	f.stamp = fileStamp{modTime: info.ModTime(), size: info.Size()}
	return nil
}

// begin locks f and brings the snapshot up to date
func (f *fileImpl) begin() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errClosed
	}
	if err := f.refreshLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fileImpl) Len() (int, error) {
	if err := f.begin(); err != nil {
		return 0, err
	}
	defer f.mu.Unlock()

	return len(f.snap.Keys), nil
}

func (f *fileImpl) Key(index int) (storage.Value, error) {
	if err := f.begin(); err != nil {
		return storage.Absent, err
	}
	defer f.mu.Unlock()

	if index < 0 || index >= len(f.snap.Keys) {
		return storage.Absent, nil
	}
	return storage.ValueOf(f.snap.Keys[index]), nil
}

func (f *fileImpl) Get(key string) (storage.Value, error) {
	if err := f.begin(); err != nil {
		return storage.Absent, err
	}
	defer f.mu.Unlock()

	if v, ok := f.snap.Get(key); ok {
		return storage.ValueOf(v), nil
	}
	return storage.Absent, nil
}

func (f *fileImpl) Set(key, value string) error {
	if err := f.begin(); err != nil {
		return err
	}
	defer f.mu.Unlock()

	next := f.snap.clone(f.origin)
	next.set(key, value)
	return f.persistLocked(next)
}

func (f *fileImpl) Remove(key string) error {
	if err := f.begin(); err != nil {
		return err
	}
	defer f.mu.Unlock()

	if _, ok := f.snap.Get(key); !ok {
		return nil
	}
	next := f.snap.clone(f.origin)
	next.remove(key)
	return f.persistLocked(next)
}

func (f *fileImpl) Clear() error {
	if err := f.begin(); err != nil {
		return err
	}
	defer f.mu.Unlock()

	if len(f.snap.Keys) == 0 {
		return nil
	}
	next := newSnapshot(f.origin)
	next.ClearGen = f.snap.ClearGen + 1
	return f.persistLocked(next)
}

func (f *fileImpl) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.snap = nil
	return nil
}

var errClosed = storage.NewError(storage.RetCClosed, "file backend is closed")
