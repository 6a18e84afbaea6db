package reactive

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/rKV/lib/channel"
	"github.com/ValentinKolb/rKV/lib/host"
	"github.com/ValentinKolb/rKV/lib/intercept"
	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/lib/storage/engines/memory"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func v(s string) storage.Value { return storage.ValueOf(s) }

var null = storage.Absent

func change(key string, newValue, oldValue storage.Value) Change {
	return Change{Key: v(key), NewValue: newValue, OldValue: oldValue}
}

var cleared = Change{}

// recorder collects the changes of a store, safe for concurrent delivery
type recorder struct {
	mu  sync.Mutex
	got []Change
}

func record(s *Store) *recorder {
	r := &recorder{}
	s.OnChange(func(c Change) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.got = append(r.got, c)
	})
	return r
}

func (r *recorder) changes() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.got...)
}

func (r *recorder) expect(t *testing.T, want ...Change) {
	t.Helper()
	if want == nil {
		want = []Change{}
	}
	got := r.changes()
	if got == nil {
		got = []Change{}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected changes (-want +got):\n%s", diff)
	}
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = nil
}

// newTestStore creates a store over a fresh in-memory environment
func newTestStore(t *testing.T) (*Store, *host.Environment) {
	t.Helper()
	env := host.NewMemory()
	s := New(env, WithName(t.Name()))
	t.Cleanup(func() {
		s.Close()
		env.Close()
	})
	return s, env
}

func mustGet(t *testing.T, s storage.IStorage, key string) storage.Value {
	t.Helper()
	val, err := s.GetItem(key)
	if err != nil {
		t.Fatalf("GetItem(%q) failed: %v", key, err)
	}
	return val
}

// faultyBackend fails reads while failGet is set
type faultyBackend struct {
	storage.IBackend
	mu      sync.Mutex
	failGet bool
}

func (b *faultyBackend) Get(key string) (storage.Value, error) {
	b.mu.Lock()
	fail := b.failGet
	b.mu.Unlock()
	if fail {
		return storage.Absent, storage.NewError(storage.RetCInternalError, "read denied")
	}
	return b.IBackend.Get(key)
}

func (b *faultyBackend) setFailGet(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failGet = fail
}

// --------------------------------------------------------------------------
// Store contract
// --------------------------------------------------------------------------

func TestWriteThrough(t *testing.T) {
	s, env := newTestStore(t)

	pairs := map[string]string{"a": "1", "b": "", "ключ": "значение"}
	for k, val := range pairs {
		if err := s.SetItem(k, val); err != nil {
			t.Fatal(err)
		}
		if got := mustGet(t, s, k); got != v(val) {
			t.Errorf("store: expected %s, got %s", v(val), got)
		}
		if got, _ := env.Local.Backend().Get(k); got != v(val) {
			t.Errorf("backend: expected %s, got %s", v(val), got)
		}
	}

	if n, _ := s.Len(); n != len(pairs) {
		t.Errorf("expected %d keys, got %d", len(pairs), n)
	}

	// a new key is the last one
	s.SetItem("newest", "x")
	n, _ := s.Len()
	if k, _ := s.Key(n - 1); k != v("newest") {
		t.Errorf("expected newest key last, got %s", k)
	}
	if k, _ := s.Key(n); k.Present {
		t.Errorf("expected Key(len) to be absent, got %s", k)
	}
}

func TestRemove(t *testing.T) {
	s, env := newTestStore(t)
	rec := record(s)

	s.SetItem("k", "v")
	if err := s.RemoveItem("k"); err != nil {
		t.Fatal(err)
	}

	if got := mustGet(t, s, "k"); got.Present {
		t.Errorf("expected k to be absent, got %s", got)
	}
	if got, _ := env.Local.Backend().Get("k"); got.Present {
		t.Errorf("backend still holds k: %s", got)
	}

	// removing a missing key is a no-op
	s.RemoveItem("k")
	s.RemoveItem("never-set")

	rec.expect(t,
		change("k", v("v"), null),
		change("k", null, v("v")),
	)
}

func TestNoOpSuppression(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetItem("k", "v")

	rec := record(s)
	s.SetItem("k", "v")
	s.SetItem("k", "v")
	rec.expect(t)

	// also when the key is not cached yet
	otherEnv := host.NewMemory()
	defer otherEnv.Close()
	fresh := New(otherEnv, WithStorage(s.Storage()))
	defer fresh.Close()
	freshRec := record(fresh)
	s.SetItem("k", "v")
	freshRec.expect(t)
}

func TestChangePayload(t *testing.T) {
	s, _ := newTestStore(t)
	rec := record(s)

	s.SetItem("k", "v")
	rec.expect(t, change("k", v("v"), null))
}

func TestMutationThenMutation(t *testing.T) {
	s, _ := newTestStore(t)

	s.SetItem("k", "v1")
	rec := record(s)
	s.SetItem("k", "v2")

	rec.expect(t, change("k", v("v2"), v("v1")))
}

func TestClear(t *testing.T) {
	s, env := newTestStore(t)

	for _, k := range []string{"a", "b", "c"} {
		s.SetItem(k, k)
		mustGet(t, s, k)
	}

	rec := record(s)
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	rec.expect(t, cleared)

	for _, k := range []string{"a", "b", "c"} {
		if got := mustGet(t, s, k); got.Present {
			t.Errorf("%s survived clear: %s", k, got)
		}
	}
	if n, _ := env.Local.Len(); n != 0 {
		t.Errorf("expected empty storage, got %d keys", n)
	}

	// only the keys read after the clear are known again
	if s.cache.size() != 3 {
		t.Errorf("expected only the three re-read keys in the cache, got %d", s.cache.size())
	}

	// clearing again still emits, once
	rec.reset()
	s.Clear()
	rec.expect(t, cleared)

	s.SetItem("a", "new")
	if got := mustGet(t, s, "a"); got != v("new") {
		t.Errorf("expected repopulated key, got %s", got)
	}
}

func TestForeignMutation(t *testing.T) {
	s, env := newTestStore(t)
	rec := record(s)

	// code that only knows the host storage
	foreign := env.Local
	foreign.SetItem("k", "v1")
	foreign.SetItem("k", "v2")
	foreign.SetItem("k", "v2")
	foreign.RemoveItem("k")
	foreign.SetItem("x", "1")
	foreign.Clear()

	rec.expect(t,
		change("k", v("v1"), null),
		change("k", v("v2"), v("v1")),
		change("k", null, v("v2")),
		change("x", v("1"), null),
		cleared,
	)
}

func TestForeignReadWarmsCache(t *testing.T) {
	s, env := newTestStore(t)

	// written behind the interception
	env.Local.Backend().Set("k", "v")

	if got, _ := env.Local.GetItem("k"); got != v("v") {
		t.Fatalf("foreign read returned %s", got)
	}
	if got, ok := s.cache.lookup("k"); !ok || got != v("v") {
		t.Errorf("foreign read should populate the cache, got %s (%v)", got, ok)
	}
}

func TestReadDoesNotOverwriteNewerWrite(t *testing.T) {
	env := host.NewMemory()
	defer env.Close()

	// a bundle registered before the store writes while a read is in flight,
	// after the native read returned v1
	var armed atomic.Bool
	intercept.Register(env.Local, &intercept.Bundle{
		Owner: "concurrent writer",
		Get: func(key string, _ storage.Value) {
			if armed.CompareAndSwap(true, false) {
				env.Local.SetItem(key, "v2")
			}
		},
	})

	s := New(env, WithName(t.Name()))
	defer s.Close()

	s.SetItem("k", "v1")
	rec := record(s)

	armed.Store(true)
	if got := mustGet(t, env.Local, "k"); got != v("v1") {
		t.Fatalf("native read returned %s", got)
	}

	if got, err := env.Local.Backend().Get("k"); err != nil || got != v("v2") {
		t.Fatalf("store holds %s (%v)", got, err)
	}
	if got := mustGet(t, s, "k"); got != v("v2") {
		t.Errorf("the read result replaced the newer write: got %s", got)
	}

	env.Local.SetItem("k", "v1")
	rec.expect(t,
		change("k", v("v2"), v("v1")),
		change("k", v("v1"), v("v2")),
	)
}

func TestSubscriberIsolation(t *testing.T) {
	s, _ := newTestStore(t)

	s.OnChange(func(Change) { panic("broken subscriber") })
	rec := record(s)

	if err := s.SetItem("k", "v"); err != nil {
		t.Fatalf("SetItem must return normally, got %v", err)
	}
	rec.expect(t, change("k", v("v"), null))

	if got := s.metrics.faults.Get(); got == 0 {
		t.Error("the fault should be counted")
	}
}

func TestDivergenceRepair(t *testing.T) {
	s, env := newTestStore(t)

	s.SetItem("k", "v")
	if got := mustGet(t, s, "k"); got != v("v") {
		t.Fatalf("expected cached v, got %s", got)
	}

	env.Local.Clear()

	if got := mustGet(t, s, "k"); got.Present {
		t.Errorf("expected k to be absent after an external clear, got stale %s", got)
	}
}

func TestMultiInstanceConsistency(t *testing.T) {
	env := host.NewMemory()
	defer env.Close()

	first := New(env, WithName("first"))
	defer first.Close()
	second := New(env, WithName("second"))
	defer second.Close()

	// second has never seen k before the mutations below
	first.SetItem("k", "v0")
	mustGet(t, first, "k")

	recFirst := record(first)
	recSecond := record(second)

	first.SetItem("k", "v1")
	second.SetItem("k", "v2")
	env.Local.SetItem("k", "v3")
	env.Local.RemoveItem("k")

	want := []Change{
		change("k", v("v1"), v("v0")),
		change("k", v("v2"), v("v1")),
		change("k", v("v3"), v("v2")),
		change("k", null, v("v3")),
	}
	recFirst.expect(t, want...)
	recSecond.expect(t, want...)
}

func TestFeed(t *testing.T) {
	s, env := newTestStore(t)
	s.SetItem("k", "stored")
	rec := record(s)

	s.Feed(v("k"), v("fed"), null)

	rec.expect(t, change("k", v("fed"), null))
	if got, _ := env.Local.Backend().Get("k"); got != v("stored") {
		t.Errorf("Feed must not touch the storage, got %s", got)
	}
	if got := mustGet(t, s, "k"); got != v("fed") {
		t.Errorf("Feed should update the cache, got %s", got)
	}

	// suppression applies to fed changes too
	rec.reset()
	s.Feed(v("k"), v("same"), v("same"))
	rec.expect(t)

	// an absent key is a clear
	s.Feed(null, null, null)
	rec.expect(t, cleared)
	if got := mustGet(t, s, "k"); got != v("stored") {
		t.Errorf("after a fed clear reads go back to the storage, got %s", got)
	}
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

func TestOnOff(t *testing.T) {
	s, _ := newTestStore(t)

	calls := 0
	h := NewHandler(func(Change) { calls++ })
	s.On(TopicChange, h)
	s.On(TopicChange, h)

	s.SetItem("k", "1")
	if calls != 1 {
		t.Errorf("handler registered twice must run once, ran %d times", calls)
	}

	s.Off(TopicChange, h)
	s.Off(TopicChange, h)
	s.SetItem("k", "2")
	if calls != 1 {
		t.Errorf("removed handler ran")
	}

	other := s.OnChange(func(Change) { calls += 10 })
	s.SetItem("k", "3")
	s.Off(TopicChange, other)
	s.SetItem("k", "4")
	if calls != 11 {
		t.Errorf("expected 11, got %d", calls)
	}
}

func TestReentrantHandler(t *testing.T) {
	s, _ := newTestStore(t)

	s.OnChange(func(c Change) {
		if c.Key == v("trigger") {
			s.SetItem("echo", c.NewValue.Data)
		}
	})
	rec := record(s)

	if err := s.SetItem("trigger", "x"); err != nil {
		t.Fatal(err)
	}

	// the nested change completes inside the first handler, before the
	// recorder sees the outer one
	rec.expect(t,
		change("echo", v("x"), null),
		change("trigger", v("x"), null),
	)
	if got := mustGet(t, s, "echo"); got != v("x") {
		t.Errorf("expected echo=x, got %s", got)
	}
}

// --------------------------------------------------------------------------
// Failures
// --------------------------------------------------------------------------

func TestStoreFaultPropagates(t *testing.T) {
	env := host.NewMemory()
	defer env.Close()
	st := storage.New(storage.KindLocal, memory.New(&memory.Options{QuotaBytes: 8}))
	s := New(env, WithStorage(st))
	defer s.Close()
	rec := record(s)

	err := s.SetItem("key", "too large")
	if !storage.IsCode(err, storage.RetCQuotaExceeded) {
		t.Fatalf("expected the storage's quota error, got %v", err)
	}
	rec.expect(t)

	if got := mustGet(t, s, "key"); got.Present {
		t.Errorf("failed write must not reach the cache, got %s", got)
	}
}

func TestOldValueFaultSkipsEvent(t *testing.T) {
	env := host.NewMemory()
	defer env.Close()
	backend := &faultyBackend{IBackend: memory.New(nil)}
	st := storage.New(storage.KindLocal, backend)
	s := New(env, WithStorage(st))
	defer s.Close()
	rec := record(s)

	backend.setFailGet(true)
	if err := s.SetItem("k", "v"); err != nil {
		t.Fatalf("the mutation itself must succeed, got %v", err)
	}
	rec.expect(t)

	backend.setFailGet(false)
	if got, _ := backend.IBackend.Get("k"); got != v("v") {
		t.Errorf("mutation did not reach the backend, got %s", got)
	}

	backend.setFailGet(true)
	if _, err := s.GetItem("unknown"); err == nil {
		t.Error("a read fault for an unknown key must reach the caller")
	}
}

func TestUnsupportedHost(t *testing.T) {
	s := New(nil)
	defer s.Close()

	if s.Supported() {
		t.Error("a store without host must report unsupported")
	}
	rec := record(s)
	if err := s.SetItem("k", "v"); err != nil {
		t.Fatal(err)
	}
	if got := mustGet(t, s, "k"); got != v("v") {
		t.Errorf("the fallback storage should work, got %s", got)
	}
	rec.expect(t, change("k", v("v"), null))

	if s.Version() != Version {
		t.Errorf("unexpected version %q", s.Version())
	}
}

func TestUnknownKind(t *testing.T) {
	env := host.NewMemory()
	defer env.Close()

	s := New(env, WithKind("indexeddb"))
	defer s.Close()
	if s.Supported() {
		t.Error("an unknown kind is not supported")
	}
	if err := s.SetItem("k", "v"); err != nil {
		t.Fatal(err)
	}
}

func TestSessionKind(t *testing.T) {
	env := host.NewMemory()
	defer env.Close()

	local := New(env)
	defer local.Close()
	session := New(env, WithKind(storage.KindSession))
	defer session.Close()

	if session.Storage() != env.Session {
		t.Fatal("WithKind(session) should wrap the session storage")
	}

	recLocal := record(local)
	recSession := record(session)
	env.Session.SetItem("k", "v")

	recSession.expect(t, change("k", v("v"), null))
	recLocal.expect(t)
}

// --------------------------------------------------------------------------
// Cross-context
// --------------------------------------------------------------------------

func TestCrossContext(t *testing.T) {
	g := host.NewGroup(nil)
	defer g.Close()

	a := g.NewContext()
	b := g.NewContext()

	storeA := New(a, WithName("a"))
	defer storeA.Close()
	storeB := New(b, WithName("b"))
	defer storeB.Close()

	recA := record(storeA)
	recB := record(storeB)

	storeA.SetItem("k", "1")
	g.Sync()
	b.Local.SetItem("k", "2")
	g.Sync()
	storeA.Clear()
	g.Sync()

	want := []Change{
		change("k", v("1"), null),
		change("k", v("2"), v("1")),
		cleared,
	}
	recA.expect(t, want...)
	recB.expect(t, want...)

	// b's cache follows the remote writes
	storeA.SetItem("k", "3")
	g.Sync()
	if got, ok := storeB.cache.lookup("k"); !ok || got != v("3") {
		t.Errorf("expected b's cache to hold 3, got %s (%v)", got, ok)
	}
}

func TestCrossContextSessionIsolation(t *testing.T) {
	g := host.NewGroup(nil)
	defer g.Close()

	a := g.NewContext()
	b := g.NewContext()

	sessionB := New(b, WithKind(storage.KindSession))
	defer sessionB.Close()
	rec := record(sessionB)

	a.Local.SetItem("k", "v")
	a.Session.SetItem("k", "v")
	g.Sync()

	rec.expect(t)
}

func TestNotificationFilter(t *testing.T) {
	s, env := newTestStore(t)
	rec := record(s)

	other := storage.New(storage.KindLocal, memory.New(nil))
	defer other.Backend().Close()

	s.onNotification(storage.Notification{Key: v("area"), NewValue: v("1"), Area: other})
	s.onNotification(storage.Notification{Key: v("kind"), NewValue: v("1"), Kind: storage.KindSession})
	s.onNotification(storage.Notification{Key: v("mine"), NewValue: v("1"), Area: env.Local})
	s.onNotification(storage.Notification{Key: v("same-kind"), NewValue: v("1"), Kind: storage.KindLocal})
	s.onNotification(storage.Notification{Key: v("unknown"), NewValue: v("1")})
	s.onNotification(storage.Notification{Area: env.Local})

	rec.expect(t,
		change("mine", v("1"), null),
		change("same-kind", v("1"), null),
		change("unknown", v("1"), null),
		cleared,
	)
	if got := s.metrics.remote.Get(); got < 4 {
		t.Errorf("expected accepted notifications to be counted, got %d", got)
	}
}

// failingChannel refuses subscriptions
type failingChannel struct{}

func (failingChannel) Subscribe(channel.Listener) (func(), error) {
	return nil, errors.New("no channel")
}

func TestSubscribeFailure(t *testing.T) {
	env := host.NewMemory()
	defer env.Close()
	env.Events = failingChannel{}

	s := New(env)
	defer s.Close()
	rec := record(s)

	s.SetItem("k", "v")
	rec.expect(t, change("k", v("v"), null))
}

func TestDefault(t *testing.T) {
	s := Default()
	if s != Default() {
		t.Error("Default must return the same store")
	}
	if s.Name() != "reactive default" {
		t.Errorf("unexpected name %q", s.Name())
	}
}
