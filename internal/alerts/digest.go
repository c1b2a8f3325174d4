package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Digest is one persisted alert scan, written by the nightly worker so the
// operator can review how findings evolved.
type Digest struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Alerts      []Alert   `json:"alerts"`
}

// DigestRepository persists alert digests in PostgreSQL. Digest history is
// immutable between nightly runs, so reads go through the versioned Redis
// cache and every insert bumps the version.
type DigestRepository struct {
	pool   *pgxpool.Pool
	cache  *Cache
	logger *slog.Logger
}

// NewDigestRepository constructs DigestRepository. cache may be nil, in
// which case every read hits PostgreSQL.
func NewDigestRepository(pool *pgxpool.Pool, cache *Cache, logger *slog.Logger) *DigestRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DigestRepository{pool: pool, cache: cache, logger: logger}
}

// Insert stores one digest with its alerts as a JSON document. A failed
// cache bump only delays readers until the entry TTL, so it is logged and
// dropped.
func (r *DigestRepository) Insert(ctx context.Context, d Digest) error {
	payload, err := json.Marshal(d.Alerts)
	if err != nil {
		return fmt.Errorf("alerts: encode digest: %w", err)
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO alert_digests (id, company_id, generated_at, alerts)
VALUES ($1,$2,$3,$4)`, d.ID, d.CompanyID, d.GeneratedAt, payload)
	if err != nil {
		return err
	}
	if bumpErr := r.cache.Bump(ctx); bumpErr != nil {
		r.logger.Warn("bump digest cache", slog.Any("error", bumpErr))
	}
	return nil
}

// ListRecent returns the newest digests for a company.
func (r *DigestRepository) ListRecent(ctx context.Context, companyID string, limit int) ([]Digest, error) {
	if limit <= 0 {
		limit = 30
	}
	key, err := r.cache.BuildKey(ctx, "alerts", "digests", companyID, strconv.Itoa(limit))
	if err != nil {
		r.logger.Warn("digest cache key", slog.Any("error", err))
		return r.listRecent(ctx, companyID, limit)
	}
	var out []Digest
	if err := r.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return r.listRecent(ctx, companyID, limit)
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DigestRepository) listRecent(ctx context.Context, companyID string, limit int) ([]Digest, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, generated_at, alerts
FROM alert_digests WHERE company_id=$1 ORDER BY generated_at DESC LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Digest
	for rows.Next() {
		var d Digest
		var payload []byte
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.GeneratedAt, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &d.Alerts); err != nil {
			return nil, fmt.Errorf("alerts: decode digest %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListCompanies returns every company id with at least one ledger record,
// used by the worker to fan out digest scans.
func (r *DigestRepository) ListCompanies(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT company_id FROM materials
UNION SELECT DISTINCT company_id FROM work_orders
UNION SELECT DISTINCT company_id FROM expenses`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
