package kv

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/ValentinKolb/rKV/cmd/util"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Compares the latency of raw and reactive storage operations",
		Long: `Runs get and set operations against the backend of the storage (one
round trip each) and against the reactive store (reads are served from
the cache after the first one) and prints the latency distribution.`,
		RunE: runBench,
	}
	benchKeyPrefix = "__bench"
)

func init() {
	key := "ops"
	benchCmd.Flags().Int(key, 1000, util.WrapString("Number of operations per benchmark and thread"))
	key = "threads"
	benchCmd.Flags().Int(key, 4, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	benchCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "skip"
	benchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. raw-set,reactive-get)"))
}

func runBench(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	ops := viper.GetInt("ops")
	threads := max(viper.GetInt("threads"), 1)
	keys := max(viper.GetInt("keys"), 1)
	skip := make(map[string]bool)
	for _, name := range splitList(viper.GetString("skip")) {
		skip[name] = true
	}

	fmt.Println("Benchmark of raw and reactive storage operations")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Operations per thread: %d, Keys: %d\n\n", threads, ops, keys)

	backend := store.Storage().Backend()
	key := func(i int) string { return benchKeyPrefix + strconv.Itoa(i%keys) }

	benchmarks := []struct {
		name string
		op   func(i int) error
	}{
		{"raw-set", func(i int) error { return backend.Set(key(i), "value") }},
		{"raw-get", func(i int) error { _, err := backend.Get(key(i)); return err }},
		{"reactive-set", func(i int) error { return store.SetItem(key(i), strconv.Itoa(i)) }},
		{"reactive-get", func(i int) error { _, err := store.GetItem(key(i)); return err }},
	}

	registry := gometrics.NewRegistry()
	var failures atomic.Int64

	for _, b := range benchmarks {
		if skip[b.name] {
			continue
		}
		timer := gometrics.GetOrRegisterTimer(b.name, registry)

		var wg sync.WaitGroup
		for t := 0; t < threads; t++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < ops; i++ {
					start := time.Now()
					err := b.op(t*ops + i)
					timer.UpdateSince(start)
					if err != nil {
						failures.Add(1)
					}
				}
			}()
		}
		wg.Wait()
		fmt.Printf("finished %s\n", b.name)
	}

	// cleanup
	for i := 0; i < keys; i++ {
		if err := store.RemoveItem(key(i)); err != nil {
			fmt.Fprintf(os.Stderr, "error removing %s: %v\n", key(i), err)
		}
	}

	printTimers(registry)
	if n := failures.Load(); n > 0 {
		return fmt.Errorf("%d operations failed", n)
	}
	return nil
}

// printTimers prints one line per timer of registry, sorted by name
func printTimers(registry gometrics.Registry) {
	var names []string
	timers := make(map[string]gometrics.Timer)
	registry.Each(func(name string, i interface{}) {
		if timer, ok := i.(gometrics.Timer); ok {
			names = append(names, name)
			timers[name] = timer.Snapshot()
		}
	})
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "benchmark\tops\tmean\tp50\tp99\tmax")
	for _, name := range names {
		t := timers[name]
		ps := t.Percentiles([]float64{0.5, 0.99})
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			name,
			t.Count(),
			time.Duration(t.Mean()),
			time.Duration(ps[0]),
			time.Duration(ps[1]),
			time.Duration(t.Max()),
		)
	}
	w.Flush()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
