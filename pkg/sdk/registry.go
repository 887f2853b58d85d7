package sdk

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nicktill/procmet/pkg/lockfile"
	"github.com/nicktill/procmet/pkg/metrics"
	"github.com/nicktill/procmet/pkg/multiproc"
	"github.com/nicktill/procmet/pkg/store"
)

// Registry hands out instruments for one writer process and owns that
// process's store files. All instrument updates persist synchronously
// through the registry, under one mutex, so the single-writer-per-file
// invariant holds no matter how many goroutines share an instrument.
//
// Every store file the registry opens is held under a shared advisory lock
// until Close. Dead-process cleanup probes that lock before touching a
// file, which is how a reused pid's live files are told apart from a dead
// process's leftovers.
type Registry struct {
	dir string
	pid int

	mu     sync.Mutex
	stores map[string]*store.Store // keyed by store filename
	locks  map[string]func() error // lock releases, same keys
}

// NewRegistry creates a registry for the current process.
func NewRegistry(dir string) (*Registry, error) {
	return NewRegistryForPID(dir, os.Getpid())
}

// NewRegistryForPID creates a registry writing files owned by an explicit
// pid. Production code wants NewRegistry; this exists for tests and for
// tooling that replays another process's data.
func NewRegistryForPID(dir string, pid int) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("store directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store directory %s: not a directory", dir)
	}
	return &Registry{
		dir:    dir,
		pid:    pid,
		stores: make(map[string]*store.Store),
		locks:  make(map[string]func() error),
	}, nil
}

// NewCounter creates a counter persisting into this process's counter store.
func (r *Registry) NewCounter(name string) *Counter {
	return &Counter{name: name, reg: r}
}

// NewGauge creates a gauge with the given multiprocess mode.
func (r *Registry) NewGauge(name string, mode metrics.GaugeMode) *Gauge {
	return &Gauge{name: name, mode: mode, reg: r}
}

// NewHistogram creates a histogram with the given bucket upper bounds.
// Nil buckets means DefaultBuckets. A +Inf overflow bucket is appended when
// missing.
func (r *Registry) NewHistogram(name string, buckets []float64) *Histogram {
	return newHistogram(name, buckets, r)
}

// NewSummary creates a summary. Only the observation sum and count persist;
// quantiles cannot be merged across processes.
func (r *Registry) NewSummary(name string) *Summary {
	return &Summary{name: name, reg: r}
}

// Close syncs and closes every store file the registry opened, releasing
// the shared locks. After Close the files are fair game for cleanup.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, st := range r.stores {
		if err := st.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if release := r.locks[name]; release != nil {
			if err := release(); err != nil && firstErr == nil {
				firstErr = err
			}
			delete(r.locks, name)
		}
		delete(r.stores, name)
	}
	return firstErr
}

// storeFor lazily opens the store file for one metric class and takes the
// shared lock that marks the file as having a live writer. Callers hold
// r.mu.
func (r *Registry) storeFor(id multiproc.StoreID) (*store.Store, error) {
	name := id.Filename()
	if st, ok := r.stores[name]; ok {
		return st, nil
	}

	path := filepath.Join(r.dir, name)
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	release, free, err := lockfile.TrySharedFile(path)
	if err != nil {
		st.Close()
		return nil, err
	}
	if !free {
		// An exclusive holder means cleanup is mid-reclaim on this file,
		// which only happens when the pid was reused before the reclaim
		// finished. Refuse rather than write into a file being merged away.
		st.Close()
		return nil, fmt.Errorf("store file %s: held exclusively by cleanup", path)
	}

	r.stores[name] = st
	r.locks[name] = release
	return st, nil
}

// set writes key=value into the class store.
func (r *Registry) set(id multiproc.StoreID, key string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.storeFor(id)
	if err != nil {
		return err
	}
	return st.WriteValue(key, value)
}

// add folds delta into the stored value, starting from zero.
func (r *Registry) add(id multiproc.StoreID, key string, delta float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.storeFor(id)
	if err != nil {
		return err
	}
	cur, _, err := st.ReadValue(key, true)
	if err != nil {
		return err
	}
	return st.WriteValue(key, cur+delta)
}

func (r *Registry) id(typ metrics.MetricType, mode metrics.GaugeMode) multiproc.StoreID {
	return multiproc.StoreID{Type: typ, Mode: mode, PID: r.pid}
}

// makeLabels converts key/value varargs into a label map. An odd number of
// arguments yields no labels.
func makeLabels(labels ...string) map[string]string {
	if len(labels) == 0 || len(labels)%2 != 0 {
		return nil
	}
	out := make(map[string]string, len(labels)/2)
	for i := 0; i < len(labels); i += 2 {
		out[labels[i]] = labels[i+1]
	}
	return out
}
