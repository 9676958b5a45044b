// Package postgres provides the Postgres-backed advisory store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
	"github.com/voyantlabs/advisory-pipeline/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// db is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store persists advisory records in Postgres.
type Store struct {
	pool  db
	table string
}

var _ store.Store = (*Store)(nil)

// New connects a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "advisories"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool db, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "advisories"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// LoadFingerprints returns the fingerprint -> content digest map for the
// whole table.
func (s *Store) LoadFingerprints(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT fingerprint, content_digest FROM %s`, s.table,
	))
	if err != nil {
		return nil, classifyErr(fmt.Errorf("load fingerprints: %w", err))
	}
	defer rows.Close()

	known := make(map[string]string)
	for rows.Next() {
		var fp, digest string
		if err := rows.Scan(&fp, &digest); err != nil {
			return nil, fmt.Errorf("scan fingerprint row: %w", err)
		}
		known[fp] = digest
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(fmt.Errorf("iterate fingerprints: %w", err))
	}
	return known, nil
}

// Upsert writes one source batch inside a single transaction. The conditional
// DO UPDATE only fires when the content digest actually changed, so unchanged
// re-scrapes produce no row version churn; `xmax = 0` distinguishes a fresh
// insert from an update on the rows that did write.
func (s *Store) Upsert(ctx context.Context, records []advisory.Record) (advisory.UpsertReport, error) {
	var report advisory.UpsertReport
	if len(records) == 0 {
		return report, nil
	}
	for _, rec := range records {
		if err := store.ValidateRecord(rec); err != nil {
			return report, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return report, classifyErr(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		// Rollback after commit is a no-op.
		_ = tx.Rollback(ctx)
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	source_name, country, region, risk_level, summary,
	published_at, scraped_at, fingerprint, content_digest, raw_payload
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (fingerprint) DO UPDATE SET
	risk_level = EXCLUDED.risk_level,
	summary = EXCLUDED.summary,
	published_at = EXCLUDED.published_at,
	scraped_at = EXCLUDED.scraped_at,
	content_digest = EXCLUDED.content_digest,
	raw_payload = EXCLUDED.raw_payload,
	updated_at = now()
WHERE %s.content_digest IS DISTINCT FROM EXCLUDED.content_digest
RETURNING (xmax = 0) AS inserted`, s.table, s.table)

	for _, rec := range records {
		var inserted bool
		err := tx.QueryRow(ctx, query,
			rec.SourceName,
			rec.Country,
			rec.Region,
			string(rec.RiskLevel),
			rec.Summary,
			rec.PublishedAt,
			rec.ScrapedAt,
			rec.Fingerprint,
			rec.ContentDigest,
			nullable(rec.RawPayload),
		).Scan(&inserted)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			report.Unchanged++
		case err != nil:
			return advisory.UpsertReport{}, classifyErr(fmt.Errorf("upsert %s: %w", rec.Fingerprint, err))
		case inserted:
			report.Inserted++
		default:
			report.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return advisory.UpsertReport{}, classifyErr(fmt.Errorf("commit tx: %w", err))
	}
	return report, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// classifyErr tags database failures with the error taxonomy sentinels so
// callers can tell a schema violation from a lost connection.
func classifyErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23 covers integrity constraint violations.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
			return fmt.Errorf("%w: %w", advisory.ErrConstraintViolation, err)
		}
	}
	if pgconn.SafeToRetry(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", advisory.ErrConnectionLost, err)
	}
	return err
}
