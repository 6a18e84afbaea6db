package host

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/rKV/lib/storage"
)

func TestMemoryEnvironment(t *testing.T) {
	env := NewMemory()
	defer env.Close()

	if env.Origin == "" {
		t.Error("environment needs an origin")
	}
	if env.Storage(storage.KindLocal) != env.Local || env.Storage(storage.KindSession) != env.Session {
		t.Error("Storage(kind) returned the wrong storage")
	}
	if env.Storage("unknown") != nil {
		t.Error("unknown kinds have no storage")
	}
	if env.Events != nil {
		t.Error("an isolated context has no notification channel")
	}

	if err := env.Local.SetItem("k", "v"); err != nil {
		t.Fatal(err)
	}
	if v, _ := env.Session.GetItem("k"); v.Present {
		t.Error("local and session storage must be separate")
	}

	if err := env.Close(); err != nil {
		t.Fatal(err)
	}
	if err := env.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if _, err := env.Local.GetItem("k"); !storage.IsCode(err, storage.RetCClosed) {
		t.Errorf("expected closed backend after Close, got %v", err)
	}
}

func TestGroup(t *testing.T) {
	g := NewGroup(nil)
	defer g.Close()

	a := g.NewContext()
	b := g.NewContext()
	if a.Origin == b.Origin {
		t.Fatal("contexts need distinct origins")
	}

	var mu sync.Mutex
	var got []storage.Notification
	b.Events.Subscribe(func(n storage.Notification) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, n)
	})
	aCalls := 0
	a.Events.Subscribe(func(n storage.Notification) { aCalls++ })

	a.Local.SetItem("shared", "1")
	a.Session.SetItem("private", "1")
	g.Sync()

	if v, _ := b.Local.GetItem("shared"); v != storage.ValueOf("1") {
		t.Errorf("local storage should be shared, got %s", v)
	}
	if v, _ := b.Session.GetItem("private"); v.Present {
		t.Errorf("session storage must be private, got %s", v)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Key != storage.ValueOf("shared") || got[0].Area != b.Local {
		t.Errorf("b should receive one notification for its local storage, got %+v", got)
	}
	if aCalls != 0 {
		t.Errorf("a must not receive its own mutation, got %d", aCalls)
	}
}

func TestGroupContextClose(t *testing.T) {
	g := NewGroup(nil)
	defer g.Close()

	a := g.NewContext()
	b := g.NewContext()

	calls := 0
	b.Events.Subscribe(func(n storage.Notification) { calls++ })

	b.Close()
	a.Local.SetItem("k", "v")
	g.Sync()

	if calls != 0 {
		t.Errorf("closed context received %d notifications", calls)
	}
	// the shared backend stays open for the remaining contexts
	if v, err := a.Local.GetItem("k"); err != nil || v != storage.ValueOf("v") {
		t.Errorf("expected k=v, got %s (%v)", v, err)
	}
}

func TestFileEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.rkv")

	a, err := NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if b.Events == nil {
		t.Fatal("file environments should watch the snapshot")
	}
	received := make(chan storage.Notification, 4)
	b.Events.Subscribe(func(n storage.Notification) { received <- n })

	if err := a.Local.SetItem("k", "v"); err != nil {
		t.Fatal(err)
	}

	select {
	case n := <-received:
		if n.Key != storage.ValueOf("k") || n.NewValue != storage.ValueOf("v") || n.Area != b.Local {
			t.Errorf("unexpected notification %+v", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for the other process' write")
	}

	if v, _ := b.Local.GetItem("k"); v != storage.ValueOf("v") {
		t.Errorf("b should read a's write, got %s", v)
	}
}

func TestDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	env := NewMemory()
	defer env.Close()

	SetDefault(env)
	if Default() != env {
		t.Error("Default should return the environment set last")
	}
	SetDefault(nil)
	if Default() != nil {
		t.Error("Default should be nil after SetDefault(nil)")
	}
}
