package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tinoosan/vodcache/internal/asset"
)

// Store maps asset IDs to files under a single cache directory and owns the
// freshness/eviction policy. The fetcher is the only writer of a data file;
// any number of tail streamers may read it concurrently.
type Store struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// New creates the cache directory if needed and returns a Store. A ttl of 0
// means completed entries never go stale.
func New(dir string, ttl time.Duration) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache dir required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: abs, ttl: ttl, now: time.Now}, nil
}

// Path returns the data file path for id.
func (s *Store) Path(id string) string { return Path(s.dir, id) }

// HLSPath returns the segmented-variant directory for id.
func (s *Store) HLSPath(id string) string { return HLSDir(s.dir, id) }

// Lookup stats the data file for id. Returns asset.ErrNotFound when absent.
func (s *Store) Lookup(id string) (*asset.Entry, error) {
	fi, err := os.Stat(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, asset.ErrNotFound
		}
		return nil, err
	}
	_, derr := os.Stat(DonePath(s.dir, id))
	return &asset.Entry{
		ID:       id,
		Path:     s.Path(id),
		Size:     fi.Size(),
		Complete: derr == nil,
		ModTime:  fi.ModTime(),
	}, nil
}

// Fresh reports whether a completed entry is still within its TTL window.
func (s *Store) Fresh(e *asset.Entry) bool {
	if s.ttl <= 0 {
		return true
	}
	return s.now().Sub(e.ModTime) < s.ttl
}

// MarkComplete records a successful fetch for id.
func (s *Store) MarkComplete(id string) error {
	f, err := os.Create(DonePath(s.dir, id))
	if err != nil {
		return err
	}
	return f.Close()
}

// Evict removes the data file, completion marker and segmented variant for id.
// A tail streamer still holding the old file's handle keeps reading it; the
// next fetch attempt creates a fresh file under the same path.
func (s *Store) Evict(id string) error {
	var firstErr error
	for _, p := range []string{DonePath(s.dir, id), s.Path(id)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	if err := os.RemoveAll(s.HLSPath(id)); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Writable verifies the cache directory accepts writes. Used by readiness.
func (s *Store) Writable() error {
	f, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
