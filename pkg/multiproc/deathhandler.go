package multiproc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/nicktill/procmet/pkg/lockfile"
)

// DeathHandler reclaims a terminated process's store files. The dead process
// does not need to have run any cleanup of its own.
type DeathHandler struct {
	dir       string
	compactor *Compactor
}

// NewDeathHandler creates a death handler over the compactor's directory.
func NewDeathHandler(dir string, compactor *Compactor) (*DeathHandler, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("store directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store directory %s: not a directory", dir)
	}
	return &DeathHandler{dir: dir, compactor: compactor}, nil
}

// MarkProcessDead reclaims every store file owned by pid. Each file gets a
// non-blocking exclusive probe first: a held lock means the pid was reused
// by a live process (or a concurrent cleanup got there first), and the file
// is skipped untouched. Files that probe free are deleted outright when they
// hold live-only gauge state, and compacted into the archive otherwise.
func (h *DeathHandler) MarkProcessDead(ctx context.Context, pid int) error {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return fmt.Errorf("scan store directory %s: %w", h.dir, err)
	}

	for _, entry := range entries {
		id, ok := ParseStoreFilename(entry.Name())
		if !ok || id.Archived || id.PID != pid {
			continue
		}
		if err := h.reclaim(ctx, filepath.Join(h.dir, entry.Name()), id); err != nil {
			return err
		}
	}
	return nil
}

func (h *DeathHandler) reclaim(ctx context.Context, path string, id StoreID) error {
	release, free, err := lockfile.TryExclusiveFile(path)
	if err != nil {
		return err
	}
	if !free {
		// Expected contention, not an error: leave the file for a later
		// attempt.
		return nil
	}
	defer release()

	if id.Live() {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove live store %s: %w", path, err)
		}
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat store %s: %w", path, err)
	}
	if info.Size() == 0 {
		// Created but never written; nothing to merge.
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove empty store %s: %w", path, err)
		}
		return nil
	}
	return h.compactor.Compact(ctx, path)
}

// SweepDead scans the directory for owner pids that no longer exist and
// reclaims their files. It returns the pids it marked dead, sorted. This is
// a convenience lifecycle hook for deployments with no supervisor of their
// own; supervised deployments call MarkProcessDead directly on exit.
func (h *DeathHandler) SweepDead(ctx context.Context) ([]int, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return nil, fmt.Errorf("scan store directory %s: %w", h.dir, err)
	}

	owners := make(map[int]bool)
	for _, entry := range entries {
		if id, ok := ParseStoreFilename(entry.Name()); ok && !id.Archived {
			owners[id.PID] = true
		}
	}

	var reaped []int
	for pid := range owners {
		alive, err := process.PidExistsWithContext(ctx, int32(pid))
		if err != nil {
			return reaped, fmt.Errorf("check pid %d: %w", pid, err)
		}
		if alive {
			continue
		}
		if err := h.MarkProcessDead(ctx, pid); err != nil {
			return reaped, err
		}
		reaped = append(reaped, pid)
	}
	sort.Ints(reaped)
	return reaped, nil
}
