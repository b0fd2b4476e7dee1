package asset

import (
	"errors"
	"time"
)

// Entry describes one cached media file on disk.
type Entry struct {
	ID       string    `json:"id"`
	Path     string    `json:"-"`
	Size     int64     `json:"size"`
	Complete bool      `json:"complete"`
	ModTime  time.Time `json:"modTime"`
}

// JobState is the lifecycle state of a fetch job.
type JobState string

const (
	StateResolving   JobState = "Resolving"
	StateDownloading JobState = "Downloading"
	StateComplete    JobState = "Complete"
	StateFailed      JobState = "Failed"
)

// Terminal reports whether s is a final state.
func (s JobState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// ErrNotFound is returned when no cache entry exists for an asset ID.
var ErrNotFound = errors.New("asset not found")
