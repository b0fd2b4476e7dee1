package cache

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/tinoosan/vodcache/internal/asset"
)

func newStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s, err := New(t.TempDir(), ttl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func writeEntry(t *testing.T, s *Store, id string, size int) {
	t.Helper()
	if err := os.WriteFile(s.Path(id), make([]byte, size), 0o644); err != nil {
		t.Fatalf("write entry: %v", err)
	}
}

func TestLookupAbsent(t *testing.T) {
	s := newStore(t, time.Hour)
	_, err := s.Lookup("missing")
	if !errors.Is(err, asset.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupPartialThenComplete(t *testing.T) {
	s := newStore(t, time.Hour)
	writeEntry(t, s, "abc123", 10)

	e, err := s.Lookup("abc123")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.Complete {
		t.Fatalf("entry without marker reported complete")
	}
	if e.Size != 10 {
		t.Fatalf("size = %d, want 10", e.Size)
	}

	if err := s.MarkComplete("abc123"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	e, err = s.Lookup("abc123")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !e.Complete {
		t.Fatalf("entry with marker not reported complete")
	}
}

func TestFreshnessBoundary(t *testing.T) {
	ttl := 3 * time.Hour
	s := newStore(t, ttl)
	writeEntry(t, s, "abc123", 1)

	e, err := s.Lookup("abc123")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	// One second inside the window: fresh.
	s.now = func() time.Time { return e.ModTime.Add(ttl - time.Second) }
	if !s.Fresh(e) {
		t.Fatalf("entry inside ttl window reported stale")
	}

	// One second past the window: stale.
	s.now = func() time.Time { return e.ModTime.Add(ttl + time.Second) }
	if s.Fresh(e) {
		t.Fatalf("entry past ttl window reported fresh")
	}
}

func TestZeroTTLNeverStale(t *testing.T) {
	s := newStore(t, 0)
	writeEntry(t, s, "x", 1)
	e, _ := s.Lookup("x")
	s.now = func() time.Time { return e.ModTime.Add(1000 * time.Hour) }
	if !s.Fresh(e) {
		t.Fatalf("zero ttl entry reported stale")
	}
}

func TestEvictRemovesEverything(t *testing.T) {
	s := newStore(t, time.Hour)
	writeEntry(t, s, "abc", 1)
	if err := s.MarkComplete("abc"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if err := os.MkdirAll(s.HLSPath("abc"), 0o755); err != nil {
		t.Fatalf("mkdir hls: %v", err)
	}

	if err := s.Evict("abc"); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if _, err := s.Lookup("abc"); !errors.Is(err, asset.ErrNotFound) {
		t.Fatalf("entry still present after evict: %v", err)
	}
	if _, err := os.Stat(s.HLSPath("abc")); !os.IsNotExist(err) {
		t.Fatalf("hls dir still present after evict")
	}
	// Idempotent.
	if err := s.Evict("abc"); err != nil {
		t.Fatalf("second Evict: %v", err)
	}
}

func TestWritable(t *testing.T) {
	s := newStore(t, time.Hour)
	if err := s.Writable(); err != nil {
		t.Fatalf("Writable: %v", err)
	}
}
