package lockfile

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// retryInterval is how often a blocked acquisition re-probes the lock.
const retryInterval = 25 * time.Millisecond

// Lock coordinates readers and writers of one store directory through a
// single zero-length coordination file. Shared holders may overlap each
// other; an exclusive holder excludes everyone. The lock is advisory: it
// binds only processes that go through this package (or apply the same
// flock discipline).
type Lock struct {
	path string
}

// New creates a coordinator for the given coordination file path. The file
// itself is created on first acquisition.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Path returns the coordination file path.
func (l *Lock) Path() string {
	return l.path
}

// WithShared runs fn while holding the coordination lock in shared mode.
// The lock is released and the handle closed on every exit path, panics
// included. Acquisition blocks until granted or ctx is done.
func (l *Lock) WithShared(ctx context.Context, fn func() error) error {
	return l.with(ctx, false, fn)
}

// WithExclusive runs fn while holding the coordination lock exclusively.
// Same release guarantees as WithShared.
func (l *Lock) WithExclusive(ctx context.Context, fn func() error) error {
	return l.with(ctx, true, fn)
}

func (l *Lock) with(ctx context.Context, exclusive bool, fn func() error) (err error) {
	fl := flock.New(l.path)
	defer func() {
		// Close releases the flock and the file handle.
		if cerr := fl.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("release lock %s: %w", l.path, cerr)
		}
	}()

	var locked bool
	var lockErr error
	if exclusive {
		locked, lockErr = fl.TryLockContext(ctx, retryInterval)
	} else {
		locked, lockErr = fl.TryRLockContext(ctx, retryInterval)
	}
	if lockErr != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, lockErr)
	}
	if !locked {
		return fmt.Errorf("acquire lock %s: not granted", l.path)
	}

	return fn()
}

// TryExclusiveFile probes an arbitrary file with a non-blocking exclusive
// lock. ok=false means another process holds the file; that is an expected
// outcome, not an error. On ok=true the caller must invoke release when done
// with the file.
func TryExclusiveFile(path string) (release func() error, ok bool, err error) {
	fl := flock.New(path)
	ok, err = fl.TryLock()
	if err != nil {
		_ = fl.Close()
		return nil, false, fmt.Errorf("probe lock %s: %w", path, err)
	}
	if !ok {
		_ = fl.Close()
		return nil, false, nil
	}
	return fl.Close, true, nil
}

// TrySharedFile takes a non-blocking shared lock on an arbitrary file. A
// writer holds this for as long as it keeps the file open: shared holders
// coexist with each other and with readers, while TryExclusiveFile reports
// the file as held. ok=false means an exclusive holder has the file.
func TrySharedFile(path string) (release func() error, ok bool, err error) {
	fl := flock.New(path)
	ok, err = fl.TryRLock()
	if err != nil {
		_ = fl.Close()
		return nil, false, fmt.Errorf("probe lock %s: %w", path, err)
	}
	if !ok {
		_ = fl.Close()
		return nil, false, nil
	}
	return fl.Close, true, nil
}
