// Package intercept makes every storage operation observable, including
// operations issued by code that has never heard of rKV.
//
// Install(kind) patches the method table of a storage kind exactly once per
// process. The patched GetItem, SetItem, RemoveItem and Clear look up the
// bundles registered for the storage they are called on (Register) and fan
// out to them:
//
//   - GetItem runs the saved operation first and then every bundle's Get
//     with the value that was read. This keeps caches warm when foreign code
//     reads.
//
//   - SetItem, RemoveItem and Clear run every bundle's callback first, while
//     the old value is still stored, then the saved operation. Each callback
//     may return a Commit; the commits run in registration order once the
//     saved operation succeeded. If it fails, its error is returned to the
//     caller and no commit runs.
//
// Every callback and commit is isolated with util.SafeCall: a panicking or
// failing bundle is logged and neither stops the storage operation nor the
// other bundles.
//
// The bundle lists are a side table keyed by storage identity and owned by
// the package. Bundles live as long as the process; there is no Unregister.
package intercept
