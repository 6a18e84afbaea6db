package server

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/lib/storage/engines/filestore"
	"github.com/ValentinKolb/rKV/lib/storage/engines/memory"
	"github.com/ValentinKolb/rKV/lib/storage/engines/sqlite"
	"github.com/ValentinKolb/rKV/rpc/common"
)

// Area is a storage served by the daemon. It publishes the notifications of
// its storage into its change log, tagged with the origin of the request
// that caused them.
type Area struct {
	config  common.AreaConfig
	storage *storage.Storage
	log     *changeLog

	// mu serializes the mutations of the area, origin belongs to the
	// mutation currently running
	mu     sync.Mutex
	origin string
}

// openArea opens the backend of config
func openArea(config common.AreaConfig, logSize int) (*Area, error) {
	var backend storage.IBackend
	var err error

	switch config.Engine {
	case common.EngineMemory:
		backend = memory.New(&memory.Options{QuotaBytes: config.QuotaBytes})
	case common.EngineSQLite:
		backend, err = sqlite.Open(config.Path)
	case common.EngineFile:
		backend, err = filestore.Open(config.Path, nil)
	default:
		err = fmt.Errorf("unknown engine %q", config.Engine)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open area %d: %w", config.ID, err)
	}

	a := &Area{
		config:  config,
		storage: storage.New(config.Kind, backend),
		log:     newChangeLog(logSize),
	}
	a.storage.SetPublisher(a)
	return a, nil
}

// Publish implements storage.Publisher. It runs inside the native operation,
// i.e. while Mutate holds mu.
func (a *Area) Publish(n storage.Notification) {
	a.log.append(a.origin, n)
}

// Mutate runs op on behalf of origin. Every mutation of the area's storage
// has to go through Mutate, an empty origin reaches every watcher.
func (a *Area) Mutate(origin string, op func(s *storage.Storage) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.origin = origin
	defer func() { a.origin = "" }()
	return op(a.storage)
}

// ID returns the number clients address the area with
func (a *Area) ID() uint64 {
	return a.config.ID
}

// Storage returns the storage of the area for reads and for installing
// interception. Use Mutate to change it.
func (a *Area) Storage() *storage.Storage {
	return a.storage
}

func (a *Area) close() error {
	a.storage.SetPublisher(nil)
	return a.storage.Backend().Close()
}
