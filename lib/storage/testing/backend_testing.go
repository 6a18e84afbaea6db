package testing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/rKV/lib/storage"
)

// BackendFactory creates a new, empty instance of an IBackend implementation
type BackendFactory func(t testing.TB) storage.IBackend

// RunBackendTests runs the conformance suite for an IBackend implementation
func RunBackendTests(t *testing.T, name string, factory BackendFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("EmptyValue", func(t *testing.T) {
			testEmptyValue(t, factory(t))
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory(t))
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory(t))
		})

		t.Run("KeyOrder", func(t *testing.T) {
			testKeyOrder(t, factory(t))
		})

		t.Run("SpecialKeys", func(t *testing.T) {
			testSpecialKeys(t, factory(t))
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory(t))
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustGet(t *testing.T, backend storage.IBackend, key string) storage.Value {
	t.Helper()
	v, err := backend.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return v
}

func mustSet(t *testing.T, backend storage.IBackend, key, value string) {
	t.Helper()
	if err := backend.Set(key, value); err != nil {
		t.Fatalf("Set(%q, %q) failed: %v", key, value, err)
	}
}

func mustLen(t *testing.T, backend storage.IBackend) int {
	t.Helper()
	n, err := backend.Len()
	if err != nil {
		t.Fatalf("Len() failed: %v", err)
	}
	return n
}

// keys enumerates all keys by index
func keys(t *testing.T, backend storage.IBackend) []string {
	t.Helper()
	n := mustLen(t, backend)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		k, err := backend.Key(i)
		if err != nil {
			t.Fatalf("Key(%d) failed: %v", i, err)
		}
		if !k.Present {
			t.Fatalf("Key(%d) is absent although Len() is %d", i, n)
		}
		out = append(out, k.Data)
	}
	return out
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	mustSet(t, backend, "test-key", "value1")
	if v := mustGet(t, backend, "test-key"); v != storage.ValueOf("value1") {
		t.Errorf("expected %s, got %s", storage.ValueOf("value1"), v)
	}

	mustSet(t, backend, "test-key", "value2")
	if v := mustGet(t, backend, "test-key"); v != storage.ValueOf("value2") {
		t.Errorf("expected %s after overwrite, got %s", storage.ValueOf("value2"), v)
	}
	if n := mustLen(t, backend); n != 1 {
		t.Errorf("overwriting must not add a key, Len() = %d", n)
	}

	if v := mustGet(t, backend, "nonexistent-key"); v.Present {
		t.Errorf("expected nonexistent key to be absent, got %s", v)
	}
}

func testEmptyValue(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	mustSet(t, backend, "empty", "")
	v := mustGet(t, backend, "empty")
	if !v.Present || v.Data != "" {
		t.Errorf("expected present empty string, got %s", v)
	}
}

func testRemove(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	mustSet(t, backend, "a", "1")
	mustSet(t, backend, "b", "2")

	if err := backend.Remove("a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if v := mustGet(t, backend, "a"); v.Present {
		t.Errorf("expected removed key to be absent, got %s", v)
	}
	if v := mustGet(t, backend, "b"); v != storage.ValueOf("2") {
		t.Errorf("removing a must not touch b, got %s", v)
	}
	if n := mustLen(t, backend); n != 1 {
		t.Errorf("expected Len() = 1, got %d", n)
	}

	if err := backend.Remove("missing"); err != nil {
		t.Errorf("removing a missing key must not fail: %v", err)
	}

	// a removed key can be set again
	mustSet(t, backend, "a", "3")
	if v := mustGet(t, backend, "a"); v != storage.ValueOf("3") {
		t.Errorf("expected re-added key, got %s", v)
	}
}

func testClear(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	for i := 0; i < 10; i++ {
		mustSet(t, backend, fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}

	if err := backend.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n := mustLen(t, backend); n != 0 {
		t.Errorf("expected empty backend after Clear, Len() = %d", n)
	}
	for i := 0; i < 10; i++ {
		if v := mustGet(t, backend, fmt.Sprintf("key-%d", i)); v.Present {
			t.Errorf("key-%d survived Clear: %s", i, v)
		}
	}

	// clearing an empty backend is fine
	if err := backend.Clear(); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}

	mustSet(t, backend, "after", "clear")
	if n := mustLen(t, backend); n != 1 {
		t.Errorf("expected 1 key after re-populating, got %d", n)
	}
}

func testKeyOrder(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	want := []string{"first", "second", "third"}
	for _, k := range want {
		mustSet(t, backend, k, "v")

		// a new key is the last one
		n := mustLen(t, backend)
		last, err := backend.Key(n - 1)
		if err != nil {
			t.Fatalf("Key(%d) failed: %v", n-1, err)
		}
		if last != storage.ValueOf(k) {
			t.Errorf("expected Key(%d) = %q, got %s", n-1, k, last)
		}
	}

	got := keys(t, backend)
	if len(got) != len(want) {
		t.Fatalf("expected keys %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected keys %v, got %v", want, got)
			break
		}
	}

	for _, idx := range []int{-1, len(want), len(want) + 10} {
		k, err := backend.Key(idx)
		if err != nil {
			t.Errorf("Key(%d) failed: %v", idx, err)
		}
		if k.Present {
			t.Errorf("expected Key(%d) to be absent, got %s", idx, k)
		}
	}
}

func testSpecialKeys(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	pairs := map[string]string{
		"":                "empty key",
		"ключ":            "значение",
		"emoji 🔑":         "🗝",
		"with\nnewline":   "multi\nline",
		"quote'\"":        "'; DROP TABLE items; --",
		"%percent_under%": "like-pattern",
	}

	for k, v := range pairs {
		mustSet(t, backend, k, v)
	}
	for k, v := range pairs {
		if got := mustGet(t, backend, k); got != storage.ValueOf(v) {
			t.Errorf("key %q: expected %s, got %s", k, storage.ValueOf(v), got)
		}
	}
	if n := mustLen(t, backend); n != len(pairs) {
		t.Errorf("expected %d keys, got %d", len(pairs), n)
	}
}

func testConcurrent(t *testing.T, backend storage.IBackend) {
	defer backend.Close()

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i)
				if err := backend.Set(key, key); err != nil {
					t.Errorf("Set(%q) failed: %v", key, err)
					return
				}
				if _, err := backend.Get(key); err != nil {
					t.Errorf("Get(%q) failed: %v", key, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if n := mustLen(t, backend); n != workers*perWorker {
		t.Errorf("expected %d keys, got %d", workers*perWorker, n)
	}
}

func testClosed(t *testing.T, backend storage.IBackend) {
	mustSet(t, backend, "k", "v")

	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	checks := map[string]func() error{
		"Len":    func() error { _, err := backend.Len(); return err },
		"Key":    func() error { _, err := backend.Key(0); return err },
		"Get":    func() error { _, err := backend.Get("k"); return err },
		"Set":    func() error { return backend.Set("k", "v2") },
		"Remove": func() error { return backend.Remove("k") },
		"Clear":  func() error { return backend.Clear() },
	}
	for op, fn := range checks {
		if err := fn(); !storage.IsCode(err, storage.RetCClosed) {
			t.Errorf("%s after Close: expected RetCClosed, got %v", op, err)
		}
	}
}
