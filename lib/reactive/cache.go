package reactive

import (
	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/puzpuzpuz/xsync/v3"
)

// cache maps keys to the value this instance last observed. A key without an
// entry is unknown; an entry holding storage.Absent means the key is known to
// not exist.
type cache struct {
	storage *storage.Storage
	entries *xsync.MapOf[string, storage.Value]
}

func newCache(s *storage.Storage) *cache {
	return &cache{
		storage: s,
		entries: xsync.NewMapOf[string, storage.Value](),
	}
}

// read returns the known value of key. Unknown keys are read from the store
// with the native operation, which does not fan out to the bundles, and
// remembered. Store faults are returned.
func (c *cache) read(key string) (storage.Value, error) {
	if v, ok := c.entries.Load(key); ok {
		return v, nil
	}

	v, err := storage.NativeOps().GetItem(c.storage, key)
	if err != nil {
		return storage.Absent, err
	}

	// a concurrent observation wins over our read
	actual, _ := c.entries.LoadOrStore(key, v)
	return actual, nil
}

// observe records value as the current value of key
func (c *cache) observe(key string, value storage.Value) {
	c.entries.Store(key, value)
}

// populate records value for key only while key is unknown. A read result
// may be older than a mutation committed after the read, so it never
// replaces an entry.
func (c *cache) populate(key string, value storage.Value) {
	c.entries.LoadOrStore(key, value)
}

// lookup returns the entry of key without consulting the store
func (c *cache) lookup(key string) (storage.Value, bool) {
	return c.entries.Load(key)
}

// invalidateAll turns every key back to unknown
func (c *cache) invalidateAll() {
	c.entries.Clear()
}

func (c *cache) size() int {
	return c.entries.Size()
}
