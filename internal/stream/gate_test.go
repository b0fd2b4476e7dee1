package stream

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGateUnblocksOnThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.mp4")
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = os.WriteFile(path, make([]byte, 1024), 0o644)
	}()

	g := Gate{Min: 1024, Timeout: time.Second, Poll: time.Millisecond}
	start := time.Now()
	if err := g.Wait(context.Background(), path, nil); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if time.Since(start) >= time.Second {
		t.Fatalf("gate waited for the full timeout despite threshold being met")
	}
}

func TestGateTimeoutIsBestEffort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.mp4")
	g := Gate{Min: 1 << 20, Timeout: 10 * time.Millisecond, Poll: time.Millisecond}
	if err := g.Wait(context.Background(), path, nil); err != nil {
		t.Fatalf("timeout must not be an error, got %v", err)
	}
}

func TestGateUnblocksOnJobTermination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.mp4")
	release := make(chan struct{})
	job := startJob(t, "x", release, nil)
	go func() {
		time.Sleep(5 * time.Millisecond)
		close(release)
	}()

	g := Gate{Min: 1 << 30, Timeout: time.Second, Poll: time.Millisecond}
	start := time.Now()
	if err := g.Wait(context.Background(), path, job); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if time.Since(start) >= time.Second {
		t.Fatalf("gate did not unblock on job termination")
	}
}

func TestGateContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := Gate{Min: 1, Timeout: time.Second, Poll: time.Millisecond}
	if err := g.Wait(ctx, filepath.Join(t.TempDir(), "x"), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGateDisabledWhenMinZero(t *testing.T) {
	g := Gate{Min: 0, Timeout: time.Second}
	if err := g.Wait(context.Background(), "/does/not/exist", nil); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
