package memory

import (
	"sync"

	"github.com/ValentinKolb/rKV/lib/storage"
)

// Options configures a memory backend
type Options struct {
	// QuotaBytes limits the summed length of all keys and values.
	// 0 means unlimited.
	QuotaBytes int
}

// DefaultOptions returns options without a quota
func DefaultOptions() *Options {
	return &Options{}
}

// memoryImpl is an insertion-ordered map guarded by a single RWMutex
type memoryImpl struct {
	mu     sync.RWMutex
	keys   []string
	index  map[string]int // key -> position in keys
	values map[string]string
	size   int
	quota  int
	closed bool
}

// New creates an empty in-memory backend. opts may be nil.
func New(opts *Options) storage.IBackend {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &memoryImpl{
		index:  make(map[string]int),
		values: make(map[string]string),
		quota:  opts.QuotaBytes,
	}
}

func (m *memoryImpl) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, errClosed
	}
	return len(m.keys), nil
}

func (m *memoryImpl) Key(index int) (storage.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return storage.Absent, errClosed
	}
	if index < 0 || index >= len(m.keys) {
		return storage.Absent, nil
	}
	return storage.ValueOf(m.keys[index]), nil
}

func (m *memoryImpl) Get(key string) (storage.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return storage.Absent, errClosed
	}
	if v, ok := m.values[key]; ok {
		return storage.ValueOf(v), nil
	}
	return storage.Absent, nil
}

func (m *memoryImpl) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed
	}

	old, exists := m.values[key]
	newSize := m.size + len(value)
	if exists {
		newSize -= len(old)
	} else {
		newSize += len(key)
	}
	if m.quota > 0 && newSize > m.quota {
		return storage.Errorf(storage.RetCQuotaExceeded,
			"setting %q would use %d of %d bytes", key, newSize, m.quota)
	}

	if !exists {
		m.index[key] = len(m.keys)
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	m.size = newSize
	return nil
}

func (m *memoryImpl) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed
	}

	old, exists := m.values[key]
	if !exists {
		return nil
	}

	pos := m.index[key]
	m.keys = append(m.keys[:pos], m.keys[pos+1:]...)
	for i := pos; i < len(m.keys); i++ {
		m.index[m.keys[i]] = i
	}
	delete(m.index, key)
	delete(m.values, key)
	m.size -= len(key) + len(old)
	return nil
}

func (m *memoryImpl) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed
	}

	m.keys = nil
	m.index = make(map[string]int)
	m.values = make(map[string]string)
	m.size = 0
	return nil
}

func (m *memoryImpl) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.keys = nil
	m.index = nil
	m.values = nil
	return nil
}

var errClosed = storage.NewError(storage.RetCClosed, "memory backend is closed")
