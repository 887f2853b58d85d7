/*
Package sdk provides the instrumentation library for processes sharing one
metric store directory.

# Quick Start

Instrument your worker process:

	package main

	import (
	    "log"

	    "github.com/nicktill/procmet/pkg/metrics"
	    "github.com/nicktill/procmet/pkg/sdk"
	)

	func main() {
	    // One registry per process. It owns this pid's store files.
	    reg, err := sdk.NewRegistry("/var/lib/procmet")
	    if err != nil {
	        log.Fatal(err)
	    }
	    defer reg.Close()

	    requests := reg.NewCounter("http_requests_total")
	    inflight := reg.NewGauge("inflight_requests", metrics.GaugeModeLiveSum)
	    latency := reg.NewHistogram("request_duration_seconds", nil)

	    requests.Inc("endpoint", "/api/users", "status", "200")
	    inflight.Inc()
	    latency.Observe(0.234, "endpoint", "/api/users")
	}

Every update is written straight to this process's store files under the
directory. There is no background sender and nothing to flush: a scrape via
the multiproc collector sees the latest written values from every live
process plus the compacted archives.

# Metric Types

Counter - values that only increase:

	requests := reg.NewCounter("http_requests_total")
	requests.Inc("endpoint", "/api/users", "method", "GET")
	requests.Add(5, "endpoint", "/api/posts")

Negative Add calls are ignored; counters never go down.

Gauge - values that go up and down. A gauge carries a multiprocess mode
deciding how per-process values reconcile at scrape time:

	// Sum across live processes; discarded when the process dies.
	conns := reg.NewGauge("active_connections", metrics.GaugeModeLiveSum)
	conns.Inc()
	conns.Dec()

	// Keep the extremum across all processes, dead ones included.
	highWater := reg.NewGauge("queue_high_water", metrics.GaugeModeMax)
	highWater.Set(127, "queue", "emails")

	// One row per process, distinguished by a pid label.
	state := reg.NewGauge("worker_state", metrics.GaugeModeAll)
	state.Set(1)

Histogram - measure distributions:

	latency := reg.NewHistogram("request_duration_seconds", []float64{0.01, 0.1, 1})
	latency.Observe(0.045, "endpoint", "/api/users")

Pass nil buckets for DefaultBuckets. A +Inf overflow bucket is always
present. Bucket rows are stored as plain per-bucket increments so they merge
across processes by addition; the familiar cumulative counts are rebuilt at
collection time.

Summary - sum and count only. Quantiles cannot be merged across processes,
so they are not kept:

	rpc := reg.NewSummary("rpc_duration_seconds")
	rpc.Observe(0.25, "method", "GetUser")

# Labels

Labels are key-value string pairs:

	requests.Inc("service", "api", "endpoint", "/users", "status", "200")

An odd number of label arguments yields no labels. Keep cardinality low:
every distinct label combination is one row in the store file, and store
files are append-only per key.

# Process Lifecycle

Each registry writes files named for its pid, one per metric class, and
holds a shared advisory lock on every file it opens. The lock is what lets
dead-process cleanup tell a reused pid's live files from a dead process's
leftovers. Close the registry on shutdown so the files are synced and the
locks released:

	reg, err := sdk.NewRegistry(dir)
	if err != nil {
	    log.Fatal(err)
	}
	defer reg.Close()

After the process exits, a sweep (procmet sweep, or DeathHandler directly)
folds its durable files into the shared archives and deletes its live-mode
gauge files. Totals written through a counter therefore survive the process
that wrote them.

# Concurrency

Instruments are safe for concurrent use from any number of goroutines. All
writes in one registry serialize on an internal mutex, preserving the one
writer per store file rule the on-disk format depends on.

# See Also

  - pkg/multiproc for the scrape-time collector and compaction
  - pkg/expfmt for rendering collected families as text exposition
*/
package sdk
