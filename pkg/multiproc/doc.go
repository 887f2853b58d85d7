/*
Package multiproc reconciles metrics written independently by multiple OS
processes of one logical service into a single consistent set of samples,
and reclaims per-process state when a process dies.

# The file layout

Each writer process persists its updates into its own keyed float store
files, one per metric-type/mode class, named by identity:

	counter_1234.db          counter updates from pid 1234
	gauge_max_1234.db        max-mode gauge updates from pid 1234
	gauge_livesum_1234.db    live-only gauge state from pid 1234
	histogram_archived.db    the shared histogram archive
	compact.lock             zero-length coordination file

Exactly one process ever writes a given live file. The archive files are
written only by the compactor, under the exclusive coordination lock.

# Collection

Collector.Collect takes the coordination lock shared, reads every store
file, and releases the lock before reconciling the copied data:

  - counters and summaries sum across files for identical keys
  - gauges merge per their mode: min/max keep the extremum, livesum sums,
    all/liveall keep one series per pid
  - histogram buckets are regrouped, summed per threshold, and re-emitted
    as ascending cumulative counts

Concurrent collections overlap each other freely; only compaction blocks
them, so a scrape sees either the fully pre- or fully post-compaction
state of the directory, never an intermediate.

# Process death

DeathHandler.MarkProcessDead finds the dead pid's files. Each is probed
with a non-blocking exclusive flock: a held lock signals pid reuse and the
file is skipped. Free files holding live-only gauge state are deleted;
everything else is compacted into the class archive and then removed.
SweepDead automates the whole thing by checking which owner pids still
exist.

Compaction is not idempotent. A crash between the archive write and the
source unlink leaves a source that must not be re-compacted, or its keys
double-count; Compact fsyncs the archive first to keep that window small.
*/
package multiproc
