package repo

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/google/uuid"
	"github.com/tinoosan/vodcache/internal/asset"
)

// PostgresHistoryRepo implements HistoryRepo backed by PostgreSQL.
type PostgresHistoryRepo struct {
	db *sql.DB
}

// NewPostgresHistoryRepo constructs a repository using the provided DSN.
func NewPostgresHistoryRepo(dsn string) (*PostgresHistoryRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &PostgresHistoryRepo{db: db}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewPostgresHistoryRepoFromEnv composes the DSN from component env vars.
// Recognized envs (with defaults):
//
//	POSTGRES_HOST (postgres), POSTGRES_PORT (5432), POSTGRES_DB (vodcache),
//	POSTGRES_USER (vodcache), POSTGRES_PASSWORD (empty), POSTGRES_SSLMODE (disable)
//
// Credentials and db name are URL-encoded to handle special characters safely.
func NewPostgresHistoryRepoFromEnv() (*PostgresHistoryRepo, error) {
	host := getenv("POSTGRES_HOST", "postgres")
	port := getenv("POSTGRES_PORT", "5432")
	db := getenv("POSTGRES_DB", "vodcache")
	user := getenv("POSTGRES_USER", "vodcache")
	pass := getenv("POSTGRES_PASSWORD", "")
	ssl := getenv("POSTGRES_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + db,
	}
	q := url.Values{}
	q.Set("sslmode", ssl)
	u.RawQuery = q.Encode()
	return NewPostgresHistoryRepo(u.String())
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (r *PostgresHistoryRepo) Close() error { return r.db.Close() }

func (r *PostgresHistoryRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS fetch_history (
    id UUID PRIMARY KEY,
    asset_id TEXT NOT NULL,
    status TEXT NOT NULL,
    bytes BIGINT NOT NULL DEFAULT 0,
    duration_ns BIGINT NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS fetch_history_asset_idx ON fetch_history (asset_id, created_at DESC);
`)
	return err
}

func (r *PostgresHistoryRepo) Add(ctx context.Context, rec *asset.Record) (*asset.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO fetch_history (id, asset_id, status, bytes, duration_ns, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.AssetID, string(rec.Status), rec.Bytes, int64(rec.Duration), rec.Error, rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	c := *rec
	return &c, nil
}

func (r *PostgresHistoryRepo) List(ctx context.Context, limit int) (asset.Records, error) {
	q := `
SELECT id, asset_id, status, bytes, duration_ns, error, created_at
FROM fetch_history ORDER BY created_at DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, q+` LIMIT $1`, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

func (r *PostgresHistoryRepo) ByAsset(ctx context.Context, assetID string) (asset.Records, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, asset_id, status, bytes, duration_ns, error, created_at
FROM fetch_history WHERE asset_id = $1 ORDER BY created_at DESC`, assetID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) (asset.Records, error) {
	out := make(asset.Records, 0)
	for rows.Next() {
		var (
			rec    asset.Record
			status string
			durNS  int64
		)
		if err := rows.Scan(&rec.ID, &rec.AssetID, &status, &rec.Bytes, &durNS, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = asset.JobState(status)
		rec.Duration = time.Duration(durNS)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
