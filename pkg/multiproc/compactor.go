package multiproc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nicktill/procmet/pkg/lockfile"
	"github.com/nicktill/procmet/pkg/metrics"
	"github.com/nicktill/procmet/pkg/store"
)

// Compactor folds a dead process's store file into the shared per-class
// archive, then deletes the source. Compaction is the only exclusive user of
// the coordination lock: it is fully serialized against scrapes and against
// other compactions.
type Compactor struct {
	dir  string
	lock *lockfile.Lock
}

// NewCompactor creates a compactor over the given store directory.
func NewCompactor(dir string, lock *lockfile.Lock) (*Compactor, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("store directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store directory %s: not a directory", dir)
	}
	return &Compactor{dir: dir, lock: lock}, nil
}

// Compact merges one per-process store file into its class's archive and
// unlinks the source. The caller guarantees no process is still writing the
// source.
//
// Not idempotent: a crash after some archive writes but before the source
// unlink leaves the source in place, and re-running Compact on it would
// double-count the already-merged keys. The archive is fsynced before the
// unlink to keep the window as small as the platform allows; callers must
// not retry a source that may have partially merged.
func (c *Compactor) Compact(ctx context.Context, srcPath string) error {
	id, ok := ParseStoreFilename(filepath.Base(srcPath))
	if !ok {
		return fmt.Errorf("compact %s: not a store filename", srcPath)
	}
	if id.Archived {
		return fmt.Errorf("compact %s: source is already the archive", srcPath)
	}

	return c.lock.WithExclusive(ctx, func() error {
		src, err := store.OpenReadOnly(srcPath)
		if err != nil {
			return err
		}
		defer src.Close()

		dstPath := filepath.Join(c.dir, id.Archive().Filename())
		dst, err := store.Open(dstPath)
		if err != nil {
			return err
		}
		defer dst.Close()

		pairs, err := src.ReadAllValues()
		if err != nil {
			return err
		}
		for _, pair := range pairs {
			if err := mergeValue(dst, id, pair.Key, pair.Value); err != nil {
				return err
			}
		}

		if err := dst.Sync(); err != nil {
			return err
		}
		if err := os.Remove(srcPath); err != nil {
			return fmt.Errorf("remove compacted store %s: %w", srcPath, err)
		}
		return nil
	})
}

// mergeValue folds one source (key, value) into the archive according to the
// source file's type and mode.
func mergeValue(dst *store.Store, id StoreID, key string, value float64) error {
	if id.Type == metrics.GaugeType {
		switch id.Mode {
		case metrics.GaugeModeMin:
			// An absent archive key adopts the value verbatim. Defaulting
			// to 0 would corrupt a positive-only minimum.
			cur, ok, err := dst.ReadValue(key, false)
			if err != nil {
				return err
			}
			if ok && cur <= value {
				return nil
			}
			return dst.WriteValue(key, value)

		case metrics.GaugeModeMax:
			cur, ok, err := dst.ReadValue(key, false)
			if err != nil {
				return err
			}
			if ok && cur >= value {
				return nil
			}
			return dst.WriteValue(key, value)

		case metrics.GaugeModeAll, metrics.GaugeModeLiveAll:
			// The dying process's last value becomes its own permanent
			// series: re-key with the pid appended as a label.
			k, err := metrics.DecodeKey(key)
			if err != nil {
				return err
			}
			rekeyed := k.WithLabel(pidLabel, strconv.Itoa(id.PID)).Encode()
			return dst.WriteValue(rekeyed, value)
		}
	}

	// counter, histogram, summary, gauge/livesum: additive merge.
	cur, _, err := dst.ReadValue(key, true)
	if err != nil {
		return err
	}
	return dst.WriteValue(key, cur+value)
}
