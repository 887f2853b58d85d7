package multiproc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/nicktill/procmet/pkg/lockfile"
	"github.com/nicktill/procmet/pkg/metrics"
	"github.com/nicktill/procmet/pkg/store"
)

// familyHelp is the placeholder documentation attached to collected
// families; the stores carry no help text.
const familyHelp = "Multiprocess metric"

// Collector merges every process's store files into one consistent set of
// metric families at scrape time. It is read-only: the only side effect of
// Collect is holding the coordination lock in shared mode while files are
// read.
type Collector struct {
	dir  string
	lock *lockfile.Lock
}

// NewCollector creates a collector over the given store directory. It fails
// up front if the directory is missing or not a directory; a scrape-time
// surprise would be too late.
func NewCollector(dir string, lock *lockfile.Lock) (*Collector, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("store directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store directory %s: not a directory", dir)
	}
	return &Collector{dir: dir, lock: lock}, nil
}

// Collect scans all store files and returns the reconciled families, sorted
// by name. The shared lock covers the directory scan and every file read, so
// a concurrent compaction is either fully visible or not at all; concurrent
// collectors overlap freely. Reconciliation runs after the lock is released,
// on data already copied into memory.
func (c *Collector) Collect(ctx context.Context) ([]*metrics.Family, error) {
	families := make(map[string]*metrics.Family)

	err := c.lock.WithShared(ctx, func() error {
		entries, err := os.ReadDir(c.dir)
		if err != nil {
			return fmt.Errorf("scan store directory %s: %w", c.dir, err)
		}
		for _, entry := range entries {
			id, ok := ParseStoreFilename(entry.Name())
			if !ok {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.Size() == 0 {
				// A writer creates its file before writing the header;
				// a zero-length file has no data to merge yet.
				continue
			}
			if err := c.readStore(filepath.Join(c.dir, entry.Name()), id, families); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*metrics.Family, 0, len(families))
	for _, fam := range families {
		reconcile(fam)
		out = append(out, fam)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// readStore reads one store file and groups its raw samples into pending
// families. Per-process gauge samples get a synthetic pid label so the
// reconcile step can tell contributing processes apart; the gauge archive
// already carries any pid labels it needs.
func (c *Collector) readStore(path string, id StoreID, families map[string]*metrics.Family) error {
	st, err := store.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer st.Close()

	pairs, err := st.ReadAllValues()
	if err != nil {
		return err
	}

	for _, pair := range pairs {
		key, err := metrics.DecodeKey(pair.Key)
		if err != nil {
			return fmt.Errorf("store %s: %w", path, err)
		}

		fam := families[key.Metric]
		if fam == nil {
			fam = &metrics.Family{
				Name: key.Metric,
				Help: familyHelp,
				Type: id.Type,
				Mode: metrics.GaugeModeAll,
			}
			families[key.Metric] = fam
		}

		labels := key.Labels()
		if id.Type == metrics.GaugeType {
			fam.Mode = id.Mode
			if !id.Archived {
				labels["pid"] = strconv.Itoa(id.PID)
			}
		}
		fam.Samples = append(fam.Samples, metrics.Sample{
			Name:   key.Sample,
			Labels: labels,
			Value:  pair.Value,
		})
	}
	return nil
}
