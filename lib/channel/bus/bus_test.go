package bus

import (
	"sync"
	"testing"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/lib/storage/engines/memory"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// collector records the keys and values of delivered notifications
type collector struct {
	mu  sync.Mutex
	got []string
}

func (c *collector) listen(n storage.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n.IsClear() {
		c.got = append(c.got, "clear")
		return
	}
	c.got = append(c.got, n.Key.Data+"="+n.NewValue.String()+" was "+n.OldValue.String())
}

func (c *collector) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

// context wires a storage to an endpoint the way the host package does
func context(b *Bus, origin string, backend storage.IBackend) (*storage.Storage, *Endpoint) {
	s := storage.New(storage.KindLocal, backend)
	e := b.Attach(origin, s)
	s.SetPublisher(e)
	return s, e
}

func TestDeliverToOthers(t *testing.T) {
	b := New()
	defer b.Close()

	shared := memory.New(nil)
	sA, eA := context(b, "a", shared)
	_, eB := context(b, "b", shared)
	_, eC := context(b, "c", shared)

	var gotA, gotB, gotC collector
	eA.Subscribe(gotA.listen)
	eB.Subscribe(gotB.listen)
	eC.Subscribe(gotC.listen)

	sA.SetItem("k", "v1")
	sA.SetItem("k", "v1") // no change, nothing published
	sA.SetItem("k", "v2")
	sA.RemoveItem("k")
	sA.SetItem("x", "1")
	sA.Clear()
	b.Sync()

	want := []string{
		`k="v1" was null`,
		`k="v2" was "v1"`,
		`k=null was "v2"`,
		`x="1" was null`,
		"clear",
	}
	if diff := cmp.Diff(want, gotB.list()); diff != "" {
		t.Errorf("b received (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, gotC.list()); diff != "" {
		t.Errorf("c received (-want +got):\n%s", diff)
	}
	if got := gotA.list(); len(got) != 0 {
		t.Errorf("a must not receive its own mutations, got %v", got)
	}
}

func TestAreaAndKind(t *testing.T) {
	b := New()
	defer b.Close()

	shared := memory.New(nil)
	sA, _ := context(b, "a", shared)
	sB, eB := context(b, "b", shared)

	session := storage.New(storage.KindSession, memory.New(nil))
	eS := b.Attach("s", session)
	session.SetPublisher(eS)

	var areas []*storage.Storage
	var mu sync.Mutex
	eB.Subscribe(func(n storage.Notification) {
		mu.Lock()
		defer mu.Unlock()
		areas = append(areas, n.Area)
		if n.Kind != storage.KindLocal {
			t.Errorf("unexpected kind %q", n.Kind)
		}
	})
	sessionCalls := 0
	eS.Subscribe(func(n storage.Notification) { sessionCalls++ })

	sA.SetItem("k", "v")
	b.Sync()

	mu.Lock()
	defer mu.Unlock()
	if len(areas) != 1 || areas[0] != sB {
		t.Errorf("notification should carry the receiver's storage, got %v", areas)
	}
	if sessionCalls != 0 {
		t.Errorf("session endpoint must not receive local notifications, got %d", sessionCalls)
	}
}

func TestUnsubscribeAndDetach(t *testing.T) {
	b := New()
	defer b.Close()

	shared := memory.New(nil)
	sA, _ := context(b, "a", shared)
	_, eB := context(b, "b", shared)

	var got collector
	cancel, err := eB.Subscribe(got.listen)
	if err != nil {
		t.Fatal(err)
	}

	sA.SetItem("k", "1")
	b.Sync()
	cancel()
	sA.SetItem("k", "2")
	b.Sync()

	if n := len(got.list()); n != 1 {
		t.Errorf("expected 1 notification before cancel, got %d", n)
	}

	eB.Subscribe(got.listen)
	b.Detach(eB)
	sA.SetItem("k", "3")
	b.Sync()
	if n := len(got.list()); n != 1 {
		t.Errorf("detached endpoint received notifications: %v", got.list())
	}
}

func TestConcurrentPublishers(t *testing.T) {
	b := New()
	defer b.Close()

	const writers = 4
	const perWriter = 50

	shared := memory.New(nil)
	var got collector
	_, listener := context(b, "listener", shared)
	listener.Subscribe(got.listen)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		s, _ := context(b, string(rune('a'+w)), shared)
		wg.Add(1)
		go func(w int, s *storage.Storage) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.SetItem(string(rune('a'+w))+"-key", string(rune('0'+i%10))+"-"+string(rune('a'+i/10)))
			}
		}(w, s)
	}
	wg.Wait()
	b.Sync()

	if n := len(got.list()); n != writers*perWriter {
		t.Errorf("expected %d notifications, got %d", writers*perWriter, n)
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New()
	s, e := context(b, "a", memory.New(nil))
	b.Close()

	// must neither block nor panic
	if err := s.SetItem("k", "v"); err != nil {
		t.Fatal(err)
	}
	e.Publish(storage.Notification{Key: storage.ValueOf("k")})
	b.Sync()
}
