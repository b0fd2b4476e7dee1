package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tinoosan/vodcache/internal/asset"
	"github.com/tinoosan/vodcache/internal/metrics"
)

// Job is the shared handle for one background fetch. All requests for the
// same asset observe the same Job; only the registry mutates its state.
type Job struct {
	AssetID string

	mu    sync.Mutex
	state asset.JobState
	err   error
	done  chan struct{}
}

func newJob(id string) *Job {
	return &Job{AssetID: id, state: asset.StateResolving, done: make(chan struct{})}
}

// State returns the job's current lifecycle state.
func (j *Job) State() asset.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the terminal error, nil until the job fails.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Terminal reports whether the job has finished, successfully or not.
func (j *Job) Terminal() bool {
	return j.State().Terminal()
}

// Done is closed when the job reaches a terminal state. Waiters select on it
// together with their own context.
func (j *Job) Done() <-chan struct{} { return j.done }

// SetState transitions a live job between non-terminal states. Terminal
// transitions happen only inside the registry when the run function returns.
func (j *Job) SetState(s asset.JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = s
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	if err != nil {
		j.state = asset.StateFailed
		j.err = err
	} else {
		j.state = asset.StateComplete
	}
	j.mu.Unlock()
	close(j.done)
}

// Registry guarantees at most one live fetch job per asset ID. It is the one
// piece of process-wide mutable state; all access goes through the mutex.
type Registry struct {
	log *slog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log, jobs: make(map[string]*Job)}
}

// GetOrStart returns the live job for id, creating and starting one when none
// exists. The second return is true for the caller that became the starter.
// run executes on its own goroutine; when it returns the job is marked
// terminal, removed from the registry and its done channel closed, so a later
// request can start a fresh job.
func (r *Registry) GetOrStart(id string, run func(ctx context.Context, j *Job) error) (*Job, bool) {
	r.mu.Lock()
	if j, ok := r.jobs[id]; ok {
		r.mu.Unlock()
		return j, false
	}
	j := newJob(id)
	r.jobs[id] = j
	r.mu.Unlock()
	metrics.ActiveJobs.Inc()

	go func() {
		// The job deliberately outlives the request that started it: a client
		// disconnect must not abort the shared fetch.
		err := run(context.Background(), j)

		r.mu.Lock()
		delete(r.jobs, id)
		r.mu.Unlock()
		metrics.ActiveJobs.Dec()

		j.finish(err)
		if err != nil {
			r.log.Error("job failed", "asset", id, "err", err)
		} else {
			r.log.Info("job complete", "asset", id)
		}
	}()
	return j, true
}

// Get returns the live job for id, if any.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

// Snapshot lists the currently registered jobs.
func (r *Registry) Snapshot() []JobInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobInfo, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, JobInfo{AssetID: j.AssetID, State: j.State()})
	}
	return out
}

// JobInfo is the externally visible view of a live job.
type JobInfo struct {
	AssetID string         `json:"assetId"`
	State   asset.JobState `json:"state"`
}
