package repo

import (
	"context"

	"github.com/tinoosan/vodcache/internal/asset"
)

// HistoryRepo stores the outcomes of finished fetch jobs.
type HistoryRepo interface {
	HistoryReader
	HistoryWriter
}

type HistoryReader interface {
	// List returns records newest first, capped at limit (0 = no cap).
	List(ctx context.Context, limit int) (asset.Records, error)
	// ByAsset returns records for one asset ID, newest first.
	ByAsset(ctx context.Context, assetID string) (asset.Records, error)
}

type HistoryWriter interface {
	Add(ctx context.Context, rec *asset.Record) (*asset.Record, error)
}
