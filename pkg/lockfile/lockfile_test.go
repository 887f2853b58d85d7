package lockfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func coordPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "compact.lock")
}

func TestWithShared_CreatesCoordinationFile(t *testing.T) {
	path := coordPath(t)
	lock := New(path)

	ran := false
	err := lock.WithShared(context.Background(), func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithShared failed: %v", err)
	}
	if !ran {
		t.Fatal("protected block did not run")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("coordination file missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("coordination file size = %d, want 0", info.Size())
	}
}

func TestWithShared_Overlaps(t *testing.T) {
	lock := New(coordPath(t))

	// A second shared acquisition while the first is held must succeed.
	err := lock.WithShared(context.Background(), func() error {
		return lock.WithShared(context.Background(), func() error {
			return nil
		})
	})
	if err != nil {
		t.Fatalf("overlapping shared acquisitions failed: %v", err)
	}
}

func TestWithExclusive_BlocksShared(t *testing.T) {
	lock := New(coordPath(t))

	acquired := make(chan struct{})
	releaseOK := make(chan error, 1)

	go func() {
		releaseOK <- lock.WithExclusive(context.Background(), func() error {
			close(acquired)
			time.Sleep(200 * time.Millisecond)
			return nil
		})
	}()
	<-acquired

	start := time.Now()
	err := lock.WithShared(context.Background(), func() error { return nil })
	if err != nil {
		t.Fatalf("WithShared failed: %v", err)
	}
	if waited := time.Since(start); waited < 100*time.Millisecond {
		t.Errorf("shared acquisition did not wait for exclusive holder (waited %v)", waited)
	}
	if err := <-releaseOK; err != nil {
		t.Fatalf("WithExclusive failed: %v", err)
	}
}

func TestWithExclusive_ContextBoundsWait(t *testing.T) {
	lock := New(coordPath(t))

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		lock.WithExclusive(context.Background(), func() error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := lock.WithExclusive(ctx, func() error { return nil })
	if err == nil {
		t.Fatal("expected error when context expires while blocked")
	}
}

func TestWith_ReleasesOnError(t *testing.T) {
	lock := New(coordPath(t))

	wantErr := errors.New("boom")
	if err := lock.WithExclusive(context.Background(), func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("WithExclusive = %v, want wrapped boom", err)
	}

	// The failed block must have released the lock.
	release, ok, err := TryExclusiveFile(lock.Path())
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if !ok {
		t.Fatal("lock still held after block returned an error")
	}
	release()
}

func TestTrySharedFile_VisibleToExclusiveProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter_7.db")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	// Shared holders overlap each other.
	releaseA, ok, err := TrySharedFile(path)
	if err != nil || !ok {
		t.Fatalf("first shared hold = %v, %v; want free", ok, err)
	}
	releaseB, ok, err := TrySharedFile(path)
	if err != nil || !ok {
		t.Fatalf("second shared hold = %v, %v; want free", ok, err)
	}

	// An exclusive probe sees the file as held while any shared hold lasts.
	if _, ok, err := TryExclusiveFile(path); err != nil || ok {
		t.Fatalf("exclusive probe under shared holds = %v, %v; want held", ok, err)
	}
	if err := releaseB(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, ok, err := TryExclusiveFile(path); err != nil || ok {
		t.Fatalf("exclusive probe under one shared hold = %v, %v; want held", ok, err)
	}

	if err := releaseA(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	release, ok, err := TryExclusiveFile(path)
	if err != nil || !ok {
		t.Fatalf("exclusive probe after releases = %v, %v; want free", ok, err)
	}
	release()
}

func TestTryExclusiveFile_Probe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gauge_livesum_42.db")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	release, ok, err := TryExclusiveFile(path)
	if err != nil || !ok {
		t.Fatalf("probe of free file = %v, %v; want free", ok, err)
	}

	// While held, a second probe reports contention without blocking.
	start := time.Now()
	_, ok2, err := TryExclusiveFile(path)
	if err != nil {
		t.Fatalf("second probe failed: %v", err)
	}
	if ok2 {
		t.Error("second probe succeeded while file held")
	}
	if time.Since(start) > time.Second {
		t.Error("probe blocked")
	}

	if err := release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	release2, ok3, err := TryExclusiveFile(path)
	if err != nil || !ok3 {
		t.Fatalf("probe after release = %v, %v; want free", ok3, err)
	}
	release2()
}
