package channel

import (
	"testing"

	"github.com/ValentinKolb/rKV/lib/storage"
)

func TestListeners(t *testing.T) {
	var ls Listeners
	var got []string

	cancelA := ls.Add(func(n storage.Notification) { got = append(got, "a:"+n.Key.Data) })
	ls.Add(func(n storage.Notification) { panic("faulty listener") })
	ls.Add(func(n storage.Notification) { got = append(got, "c:"+n.Key.Data) })

	if ls.Len() != 3 {
		t.Fatalf("expected 3 listeners, got %d", ls.Len())
	}

	ls.Deliver(storage.Notification{Key: storage.ValueOf("1")})
	cancelA()
	cancelA() // idempotent
	ls.Deliver(storage.Notification{Key: storage.ValueOf("2")})

	want := []string{"a:1", "c:1", "c:2"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
	if ls.Len() != 2 {
		t.Errorf("expected 2 listeners after cancel, got %d", ls.Len())
	}
}

func TestCancelDuringDelivery(t *testing.T) {
	var ls Listeners
	calls := 0

	var cancelSecond func()
	ls.Add(func(n storage.Notification) { cancelSecond() })
	cancelSecond = ls.Add(func(n storage.Notification) { calls++ })

	// the running delivery still reaches the second listener
	ls.Deliver(storage.Notification{})
	ls.Deliver(storage.Notification{})

	if calls != 1 {
		t.Errorf("expected the cancelled listener to run once, ran %d times", calls)
	}
}
