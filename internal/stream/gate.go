package stream

import (
	"context"
	"os"
	"time"

	"github.com/tinoosan/vodcache/internal/jobs"
)

// Gate delays the start of a tail stream until a minimum prebuffer exists on
// disk, the job terminates, or the timeout elapses. The timeout is not a
// failure: streaming then starts with whatever bytes are available.
type Gate struct {
	Min     int64
	Timeout time.Duration
	Poll    time.Duration
}

// Wait blocks per the gate policy. Only context cancellation is an error.
func (g Gate) Wait(ctx context.Context, path string, job *jobs.Job) error {
	if g.Min <= 0 {
		return nil
	}
	poll := g.Poll
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	var deadline <-chan time.Time
	if g.Timeout > 0 {
		t := time.NewTimer(g.Timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		if fi, err := os.Stat(path); err == nil && fi.Size() >= g.Min {
			return nil
		}
		var done <-chan struct{}
		if job != nil {
			done = job.Done()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-deadline:
			return nil
		case <-time.After(poll):
		}
	}
}
