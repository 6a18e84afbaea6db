package intercept

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("intercept")

// --------------------------------------------------------------------------
// Handler bundles
// --------------------------------------------------------------------------

// Commit finishes the bookkeeping of a mutation. It runs after the native
// operation succeeded and is skipped if it failed.
type Commit func()

// Bundle holds the callbacks one observer registers for one storage. Every
// field is optional.
type Bundle struct {
	// Owner names the observer in log lines.
	Owner string

	// Get runs after a successful native read with the value that was read.
	Get func(key string, value storage.Value)

	// Set, Remove and Clear run before the native mutation, while the old
	// value can still be read. The returned Commit (may be nil) runs after
	// the mutation succeeded.
	Set    func(key, value string) Commit
	Remove func(key string) Commit
	Clear  func() Commit
}

func (b *Bundle) name() string {
	if b.Owner == "" {
		return fmt.Sprintf("bundle %p", b)
	}
	return b.Owner
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// registry owns the per-kind installation state and the bundle lists. The
// lists are keyed by storage identity and replaced, never mutated, so a
// running fan-out keeps iterating the list it started with.
type registry struct {
	mu        sync.Mutex
	installed map[storage.Kind]storage.Ops // kind -> saved method table
	warned    map[storage.Kind]bool

	bundles *xsync.MapOf[*storage.Storage, []*Bundle]
}

func newRegistry() *registry {
	return &registry{
		installed: make(map[storage.Kind]storage.Ops),
		warned:    make(map[storage.Kind]bool),
		bundles:   xsync.NewMapOf[*storage.Storage, []*Bundle](),
	}
}

var defaultRegistry = newRegistry()

// Install patches the method table of kind so every GetItem, SetItem,
// RemoveItem and Clear on a storage of that kind fans out to the bundles
// registered for that storage. It returns true if this call installed the
// patch.
//
// Installing twice is harmless: the table is patched only once and the
// second call logs a warning (once per kind), since it usually means two
// independent reactive layers live in the same process. Bundles of both keep
// receiving calls.
func Install(kind storage.Kind) bool {
	return defaultRegistry.install(kind)
}

// Installed reports whether kind is patched
func Installed(kind storage.Kind) bool {
	return defaultRegistry.isInstalled(kind)
}

// Register appends b to the bundles of s. Bundles are never removed.
func Register(s *storage.Storage, b *Bundle) {
	defaultRegistry.register(s, b)
}

// Bundles returns the bundles registered for s, in registration order
func Bundles(s *storage.Storage) []*Bundle {
	return defaultRegistry.bundlesOf(s)
}

func (r *registry) install(kind storage.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.installed[kind]; ok {
		if !r.warned[kind] {
			r.warned[kind] = true
			Logger.Warningf("%s storage is already intercepted, "+
				"there may be more than one reactive layer in this process", kind)
		}
		return false
	}

	saved := storage.Prototype(kind)
	r.installed[kind] = saved
	storage.SetPrototype(kind, r.wrap(saved))
	Logger.Debugf("intercepting %s storage", kind)
	return true
}

func (r *registry) isInstalled(kind storage.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.installed[kind]
	return ok
}

func (r *registry) register(s *storage.Storage, b *Bundle) {
	r.bundles.Compute(s, func(old []*Bundle, loaded bool) ([]*Bundle, bool) {
		next := make([]*Bundle, len(old), len(old)+1)
		copy(next, old)
		return append(next, b), false
	})
}

func (r *registry) bundlesOf(s *storage.Storage) []*Bundle {
	list, _ := r.bundles.Load(s)
	return list
}

// --------------------------------------------------------------------------
// Wrappers
// --------------------------------------------------------------------------

// wrap builds the patched method table around the saved one
func (r *registry) wrap(saved storage.Ops) storage.Ops {
	return storage.Ops{
		GetItem: func(s *storage.Storage, key string) (storage.Value, error) {
			value, err := saved.GetItem(s, key)
			if err != nil {
				return value, err
			}
			for _, b := range r.bundlesOf(s) {
				if b.Get == nil {
					continue
				}
				util.SafeCall(Logger, b.name()+": get "+key, func() error {
					b.Get(key, value)
					return nil
				})
			}
			return value, nil
		},

		SetItem: func(s *storage.Storage, key, value string) error {
			commits := r.prepare(s, "set "+key, func(b *Bundle) Commit {
				if b.Set == nil {
					return nil
				}
				return b.Set(key, value)
			})
			if err := saved.SetItem(s, key, value); err != nil {
				return err
			}
			r.commit(commits, "set "+key)
			return nil
		},

		RemoveItem: func(s *storage.Storage, key string) error {
			commits := r.prepare(s, "remove "+key, func(b *Bundle) Commit {
				if b.Remove == nil {
					return nil
				}
				return b.Remove(key)
			})
			if err := saved.RemoveItem(s, key); err != nil {
				return err
			}
			r.commit(commits, "remove "+key)
			return nil
		},

		Clear: func(s *storage.Storage) error {
			commits := r.prepare(s, "clear", func(b *Bundle) Commit {
				if b.Clear == nil {
					return nil
				}
				return b.Clear()
			})
			if err := saved.Clear(s); err != nil {
				return err
			}
			r.commit(commits, "clear")
			return nil
		},
	}
}

type pendingCommit struct {
	bundle *Bundle
	commit Commit
}

// prepare runs the pre-mutation callback of every bundle of s in
// registration order. A failing callback is logged and contributes no commit.
func (r *registry) prepare(s *storage.Storage, op string, call func(b *Bundle) Commit) []pendingCommit {
	bundles := r.bundlesOf(s)
	if len(bundles) == 0 {
		return nil
	}

	commits := make([]pendingCommit, 0, len(bundles))
	for _, b := range bundles {
		var c Commit
		util.SafeCall(Logger, b.name()+": "+op, func() error {
			c = call(b)
			return nil
		})
		if c != nil {
			commits = append(commits, pendingCommit{bundle: b, commit: c})
		}
	}
	return commits
}

// commit runs the collected commits in order, each one isolated
func (r *registry) commit(commits []pendingCommit, op string) {
	for _, p := range commits {
		util.SafeCall(Logger, p.bundle.name()+": commit "+op, func() error {
			p.commit()
			return nil
		})
	}
}
