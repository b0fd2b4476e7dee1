package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinoosan/vodcache/internal/asset"
)

// InMemoryHistoryRepo keeps fetch records in process memory. Default backend;
// suitable for ephemeral deployments where history is diagnostic only.
type InMemoryHistoryRepo struct {
	mu      sync.RWMutex
	records asset.Records
}

func NewInMemoryHistoryRepo() *InMemoryHistoryRepo {
	return &InMemoryHistoryRepo{records: make(asset.Records, 0)}
}

func (r *InMemoryHistoryRepo) Add(ctx context.Context, rec *asset.Record) (*asset.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	c := *rec
	r.records = append(r.records, &c)
	out := c
	return &out, nil
}

func (r *InMemoryHistoryRepo) List(ctx context.Context, limit int) (asset.Records, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(asset.Records, 0, len(r.records))
	for i := len(r.records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		c := *r.records[i]
		out = append(out, &c)
	}
	return out, nil
}

func (r *InMemoryHistoryRepo) ByAsset(ctx context.Context, assetID string) (asset.Records, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(asset.Records, 0)
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].AssetID == assetID {
			c := *r.records[i]
			out = append(out, &c)
		}
	}
	return out, nil
}
