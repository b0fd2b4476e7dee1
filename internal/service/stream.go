package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tinoosan/vodcache/internal/asset"
	"github.com/tinoosan/vodcache/internal/cache"
	"github.com/tinoosan/vodcache/internal/jobs"
	"github.com/tinoosan/vodcache/internal/metrics"
)

// Resolver obtains a time-limited, single-use source URL for an asset.
type Resolver interface {
	Resolve(ctx context.Context, assetID string) (string, error)
}

// Fetcher downloads a source URL into a cache file, resuming from its
// current size. Returns total bytes on disk.
type Fetcher interface {
	Fetch(ctx context.Context, assetID, url, path string) (int64, error)
}

// Result is what a request handler needs to serve an asset: the file path,
// and either a live job to tail or a completed cache hit.
type Result struct {
	Path     string
	Job      *jobs.Job // nil on a fresh complete cache hit
	CacheHit bool
}

// Service ties the cache store, resolver, fetcher and job registry together.
type Service struct {
	cache    *cache.Store
	resolver Resolver
	fetcher  Fetcher
	registry *jobs.Registry
	reporter jobs.Reporter
	log      *slog.Logger

	// mu serializes the evict-and-recreate step so exactly one request
	// evicts a stale entry before the replacement job registers.
	mu sync.Mutex
}

func New(log *slog.Logger, store *cache.Store, res Resolver, f Fetcher, reg *jobs.Registry, rep jobs.Reporter) *Service {
	if log == nil {
		log = slog.Default()
	}
	if rep == nil {
		rep = jobs.NopReporter{}
	}
	return &Service{cache: store, resolver: res, fetcher: f, registry: reg, reporter: rep, log: log}
}

// Ensure returns a Result for assetID: a direct hit when a fresh complete
// entry exists, otherwise the shared fetch job for it (starting one when
// needed). A stale complete entry is evicted first; a partial file with no
// live job is kept so the new job resumes from it.
func (s *Service) Ensure(ctx context.Context, assetID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.cache.Path(assetID)
	entry, err := s.cache.Lookup(assetID)
	switch {
	case err == nil && entry.Complete && s.cache.Fresh(entry):
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return Result{Path: path, CacheHit: true}, nil
	case err == nil && entry.Complete:
		metrics.CacheLookups.WithLabelValues("stale").Inc()
		if _, live := s.registry.Get(assetID); !live {
			if eerr := s.cache.Evict(assetID); eerr != nil {
				return Result{}, eerr
			}
			s.log.Info("evicted stale entry", "asset", assetID)
		}
	case err == nil:
		metrics.CacheLookups.WithLabelValues("partial").Inc()
	case err == asset.ErrNotFound:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		return Result{}, err
	}

	job, started := s.registry.GetOrStart(assetID, s.runJob(assetID, path))
	if started {
		s.log.Info("started fetch job", "asset", assetID)
	}
	return Result{Path: path, Job: job}, nil
}

// runJob builds the background work for one fetch job: resolve, then stream
// the source into the cache file, then mark the entry complete. The job is
// not retried here; the next request after a failure starts clean.
func (s *Service) runJob(assetID, path string) func(ctx context.Context, j *jobs.Job) error {
	return func(ctx context.Context, j *jobs.Job) error {
		s.reporter.Report(jobs.Event{AssetID: assetID, Type: jobs.EventResolving})

		src, err := s.resolver.Resolve(ctx, assetID)
		if err != nil {
			s.reporter.Report(jobs.Event{AssetID: assetID, Type: jobs.EventFailed, Err: err.Error()})
			return err
		}

		j.SetState(asset.StateDownloading)
		s.reporter.Report(jobs.Event{AssetID: assetID, Type: jobs.EventDownloading})

		n, err := s.fetcher.Fetch(ctx, assetID, src, path)
		if err != nil {
			// Remove the partial file so the next request starts clean.
			if eerr := s.cache.Evict(assetID); eerr != nil {
				s.log.Error("cleanup after failed fetch", "asset", assetID, "err", eerr)
			}
			s.reporter.Report(jobs.Event{
				AssetID:  assetID,
				Type:     jobs.EventFailed,
				Progress: &jobs.Progress{Bytes: n, Total: -1},
				Err:      err.Error(),
			})
			return err
		}

		if err := s.cache.MarkComplete(assetID); err != nil {
			s.reporter.Report(jobs.Event{AssetID: assetID, Type: jobs.EventFailed, Err: err.Error()})
			return err
		}
		s.reporter.Report(jobs.Event{
			AssetID:  assetID,
			Type:     jobs.EventComplete,
			Progress: &jobs.Progress{Bytes: n, Total: n},
		})
		return nil
	}
}

// Jobs lists the currently live fetch jobs.
func (s *Service) Jobs() []jobs.JobInfo {
	return s.registry.Snapshot()
}

// Cache exposes the store for handlers that serve files directly.
func (s *Service) Cache() *cache.Store { return s.cache }
