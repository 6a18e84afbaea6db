// Package testing provides the conformance suite every storage.IBackend
// engine has to pass.
//
// An engine's own test file only needs a factory:
//
//	func Test(t *testing.T) {
//		storagetesting.RunBackendTests(t, "Memory", func(t testing.TB) storage.IBackend {
//			return memory.New(nil)
//		})
//	}
//
// The factory is called once per sub test and receives that sub test, so
// engines backed by files can place them in t.TempDir(). Each sub test closes
// the backend it was given.
package testing
