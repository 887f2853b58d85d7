// Package history keeps a local, durable archive of collected snapshots so
// operators can look back at reconciled values after the per-process stores
// have been compacted away. It is purely machine-local storage; nothing
// here talks to a network.
package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/nicktill/procmet/pkg/metrics"
)

// Config holds archive configuration.
type Config struct {
	// Path to the badger directory.
	Path string

	// InMemory mode, for tests.
	InMemory bool

	// MaxMemoryMB bounds badger's memory use. 0 picks a conservative
	// default suitable for running beside the service it observes.
	MaxMemoryMB int64
}

// Point is one archived sample: what a family's sample looked like at one
// collection instant.
type Point struct {
	At     time.Time          `json:"at"`
	Family string             `json:"family"`
	Type   metrics.MetricType `json:"type"`
	Name   string             `json:"name"`
	Labels map[string]string  `json:"labels,omitempty"`
	Value  float64            `json:"value"`
}

// Archive is a badger-backed snapshot store. Keys are
// big-endian unix-nanos followed by a 64-bit series hash, so iteration is
// time-ordered and a snapshot's rows cluster together.
type Archive struct {
	db *badger.DB
}

// Open opens (creating if needed) the archive.
func Open(cfg Config) (*Archive, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}

	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithNumCompactors(1).
		WithValueLogFileSize(64 << 20).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// Append stores one collected snapshot under the given instant.
func (a *Archive) Append(ctx context.Context, at time.Time, families []*metrics.Family) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return a.db.Update(func(txn *badger.Txn) error {
		for _, fam := range families {
			for _, s := range fam.Samples {
				p := Point{
					At:     at,
					Family: fam.Name,
					Type:   fam.Type,
					Name:   s.Name,
					Labels: s.Labels,
					Value:  s.Value,
				}
				value, err := json.Marshal(p)
				if err != nil {
					return fmt.Errorf("encode history point: %w", err)
				}
				if err := txn.Set(makeKey(at, fam.Name, s), value); err != nil {
					return fmt.Errorf("write history point: %w", err)
				}
			}
		}
		return nil
	})
}

// Query returns every archived point in [start, end], time-ordered.
func (a *Archive) Query(ctx context.Context, start, end time.Time) ([]Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var points []Point
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100

		it := txn.NewIterator(opts)
		defer it.Close()

		var seek [8]byte
		binary.BigEndian.PutUint64(seek[:], uint64(start.UnixNano()))

		n := 0
		for it.Seek(seek[:]); it.Valid(); it.Next() {
			n++
			if n%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			item := it.Item()
			ts := keyTime(item.Key())
			if ts.After(end) {
				break // keys are time-ordered
			}

			err := item.Value(func(val []byte) error {
				var p Point
				if err := json.Unmarshal(val, &p); err != nil {
					return fmt.Errorf("decode history point: %w", err)
				}
				points = append(points, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Stats returns the number of archived points and the covered time range.
func (a *Archive) Stats(ctx context.Context) (total uint64, oldest, newest time.Time, err error) {
	err = a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ts := keyTime(it.Item().Key())
			if total == 0 || ts.Before(oldest) {
				oldest = ts
			}
			if ts.After(newest) {
				newest = ts
			}
			total++
		}
		return nil
	})
	return total, oldest, newest, err
}

// Close shuts the archive down, flushing pending writes.
func (a *Archive) Close() error {
	return a.db.Close()
}

// makeKey builds the 16-byte key: timestamp then series hash.
func makeKey(at time.Time, family string, s metrics.Sample) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(at.UnixNano()))
	binary.BigEndian.PutUint64(key[8:], xxhash.Sum64String(seriesKey(family, s)))
	return key
}

func keyTime(key []byte) time.Time {
	if len(key) < 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(key[:8])))
}

// seriesKey builds a deterministic series identity string for hashing.
func seriesKey(family string, s metrics.Sample) string {
	key := family + "\x00" + s.Name
	names := make([]string, 0, len(s.Labels))
	for name := range s.Labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key += "\x00" + name + "=" + s.Labels[name]
	}
	return key
}
