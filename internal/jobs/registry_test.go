package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinoosan/vodcache/internal/asset"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetOrStartAtMostOne(t *testing.T) {
	r := NewRegistry(testLogger())

	var starts int32
	release := make(chan struct{})
	run := func(ctx context.Context, j *Job) error {
		atomic.AddInt32(&starts, 1)
		<-release
		return nil
	}

	const n = 50
	var wg sync.WaitGroup
	jobsSeen := make([]*Job, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			j, _ := r.GetOrStart("abc123", run)
			jobsSeen[i] = j
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&starts); got != 1 {
		t.Fatalf("run started %d times, want 1", got)
	}
	for i := 1; i < n; i++ {
		if jobsSeen[i] != jobsSeen[0] {
			t.Fatalf("caller %d observed a different job handle", i)
		}
	}
	close(release)
}

func TestJobOutcomeSharedByWaiters(t *testing.T) {
	r := NewRegistry(testLogger())
	wantErr := errors.New("boom")

	j, started := r.GetOrStart("x", func(ctx context.Context, j *Job) error {
		return wantErr
	})
	if !started {
		t.Fatalf("expected to be the starter")
	}

	select {
	case <-j.Done():
	case <-time.After(time.Second):
		t.Fatalf("job never terminated")
	}
	if j.State() != asset.StateFailed {
		t.Fatalf("state = %v, want Failed", j.State())
	}
	if !errors.Is(j.Err(), wantErr) {
		t.Fatalf("err = %v, want %v", j.Err(), wantErr)
	}
}

func TestJobRemovedOnTerminal(t *testing.T) {
	r := NewRegistry(testLogger())

	j, _ := r.GetOrStart("x", func(ctx context.Context, j *Job) error { return nil })
	<-j.Done()

	// Removal happens before done is closed, so a new job can start.
	if _, ok := r.Get("x"); ok {
		t.Fatalf("job still registered after terminal state")
	}
	j2, started := r.GetOrStart("x", func(ctx context.Context, j *Job) error { return nil })
	if !started {
		t.Fatalf("expected a fresh job after removal")
	}
	if j2 == j {
		t.Fatalf("got the old job handle back")
	}
	<-j2.Done()
}

func TestSetStateIgnoredAfterTerminal(t *testing.T) {
	j := newJob("x")
	j.finish(nil)
	j.SetState(asset.StateDownloading)
	if j.State() != asset.StateComplete {
		t.Fatalf("terminal state mutated to %v", j.State())
	}
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry(testLogger())
	release := make(chan struct{})
	r.GetOrStart("a", func(ctx context.Context, j *Job) error { <-release; return nil })
	r.GetOrStart("b", func(ctx context.Context, j *Job) error { <-release; return nil })

	infos := r.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("snapshot has %d jobs, want 2", len(infos))
	}
	for _, info := range infos {
		if info.State != asset.StateResolving {
			t.Fatalf("job %s state = %v, want Resolving", info.AssetID, info.State)
		}
	}
	close(release)
}
