package util

import (
	"github.com/lni/dragonboat/v4/logger"
)

// SafeCall runs fn and reports, instead of propagating, both a returned error
// and a panic. what names the call site in the log line. The result is true
// if fn returned nil without panicking.
//
// SafeCall is the boundary between the host's storage operations and
// user supplied code (interception bundles, change handlers, listeners): a
// fault on the far side must never abort the operation that triggered it.
func SafeCall(log logger.ILogger, what string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s: recovered from panic: %v", what, r)
			ok = false
		}
	}()

	if err := fn(); err != nil {
		log.Errorf("%s: %v", what, err)
		return false
	}
	return true
}
