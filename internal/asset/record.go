package asset

import "time"

// Record is the persisted outcome of one finished fetch job.
type Record struct {
	ID        string        `json:"id"`
	AssetID   string        `json:"assetId"`
	Status    JobState      `json:"status"`
	Bytes     int64         `json:"bytes"`
	Duration  time.Duration `json:"durationNs"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Records is a list of fetch history records.
type Records []*Record
