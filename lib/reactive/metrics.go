package reactive

import (
	"fmt"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/VictoriaMetrics/metrics"
)

// storeMetrics are the counters of all stores over one storage kind
type storeMetrics struct {
	emitted    *metrics.Counter
	suppressed *metrics.Counter
	faults     *metrics.Counter
	remote     *metrics.Counter
}

func newStoreMetrics(kind storage.Kind) *storeMetrics {
	counter := func(name string) *metrics.Counter {
		return metrics.GetOrCreateCounter(fmt.Sprintf(`%s{kind=%q}`, name, string(kind)))
	}
	return &storeMetrics{
		emitted:    counter("rkv_changes_emitted_total"),
		suppressed: counter("rkv_changes_suppressed_total"),
		faults:     counter("rkv_handler_faults_total"),
		remote:     counter("rkv_remote_notifications_total"),
	}
}
