package recorder

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tinoosan/vodcache/internal/asset"
	"github.com/tinoosan/vodcache/internal/events"
	"github.com/tinoosan/vodcache/internal/jobs"
	"github.com/tinoosan/vodcache/internal/metrics"
	"github.com/tinoosan/vodcache/internal/repo"
)

// Recorder consumes job events, bumps metrics, persists a history record per
// terminal event and fans everything out to the live event hub.
type Recorder struct {
	repo   repo.HistoryWriter
	hub    *events.Hub
	events <-chan jobs.Event
	log    *slog.Logger

	starts map[string]time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Recorder over the given event channel. hub may be nil when no
// live feed is wanted.
func New(log *slog.Logger, historyRepo repo.HistoryWriter, hub *events.Hub, ch <-chan jobs.Event) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		repo:   historyRepo,
		hub:    hub,
		events: ch,
		log:    log,
		starts: make(map[string]time.Time),
	}
}

// Run starts the recording loop.
func (r *Recorder) Run() {
	r.stop = make(chan struct{})
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.stop:
				return
			case e, ok := <-r.events:
				if !ok {
					return
				}
				r.handle(e)
			}
		}
	}()
}

// Stop terminates the recording loop and waits for it to drain.
func (r *Recorder) Stop() {
	if r.stop != nil {
		close(r.stop)
		r.wg.Wait()
	}
}

func (r *Recorder) handle(e jobs.Event) {
	metrics.JobEvents.WithLabelValues(strings.ToLower(string(e.Type))).Inc()
	if r.hub != nil {
		r.hub.Publish(e)
	}

	switch e.Type {
	case jobs.EventResolving:
		r.starts[e.AssetID] = time.Now()
		return
	case jobs.EventDownloading, jobs.EventProgress:
		return
	case jobs.EventComplete, jobs.EventFailed:
	default:
		r.log.Warn("unknown event type", "asset", e.AssetID, "type", e.Type)
		return
	}

	var dur time.Duration
	if t, ok := r.starts[e.AssetID]; ok {
		dur = time.Since(t)
		delete(r.starts, e.AssetID)
	}
	status := asset.StateComplete
	if e.Type == jobs.EventFailed {
		status = asset.StateFailed
	}
	rec := &asset.Record{
		AssetID:  e.AssetID,
		Status:   status,
		Duration: dur,
		Error:    e.Err,
	}
	if e.Progress != nil {
		rec.Bytes = e.Progress.Bytes
	}
	if r.repo == nil {
		return
	}
	if _, err := r.repo.Add(context.Background(), rec); err != nil {
		r.log.Error("persist fetch record", "asset", e.AssetID, "err", err)
		return
	}
	r.log.Info("recorded job outcome", "asset", e.AssetID, "status", status, "bytes", rec.Bytes, "dur", dur)
}
