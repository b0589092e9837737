// Package postgres provides the Postgres-backed media store.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scrapeworks/mediascraper/internal/media"
)

// Config controls the Postgres connection pool used for media rows.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the subset of pgx shared by pgxpool.Pool, pgx.Tx, and pgxmock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type closer interface {
	Close()
}

// Store persists media rows in Postgres. Each source URL has one lifecycle
// row (empty media_url) plus zero or more asset rows, all sharing a status
// column that moves together.
type Store struct {
	db   querier
	pool closer
}

var _ media.Store = (*Store)(nil)

// New connects a pool and returns a Store backed by it.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
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
	return &Store{db: pool, pool: pool}, nil
}

// NewWithQuerier constructs a store from an existing connection (primarily
// for testing with pgxmock).
func NewWithQuerier(db querier) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("querier is required")
	}
	s := &Store{db: db}
	if c, ok := db.(closer); ok {
		s.pool = c
	}
	return s, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the media table and its indexes if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS media (
	id BIGSERIAL PRIMARY KEY,
	source_url TEXT NOT NULL,
	media_url TEXT NOT NULL DEFAULT '',
	media_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source_url, media_url)
);
CREATE INDEX IF NOT EXISTS media_status_idx ON media (status);
CREATE INDEX IF NOT EXISTS media_created_at_idx ON media (created_at DESC);
`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure media schema: %w", err)
	}
	return nil
}

// UpsertPending creates the lifecycle row per source URL, or resets an
// existing one back to pending so a resubmission restarts its lifecycle.
func (s *Store) UpsertPending(ctx context.Context, sourceURLs []string) error {
	if len(sourceURLs) == 0 {
		return nil
	}
	const query = `
INSERT INTO media (source_url, media_url, status)
SELECT u, '', 'pending' FROM unnest($1::text[]) AS u
ON CONFLICT (source_url, media_url)
DO UPDATE SET status = 'pending', updated_at = now()`
	if _, err := s.db.Exec(ctx, query, sourceURLs); err != nil {
		return fmt.Errorf("upsert pending rows: %w", err)
	}
	return nil
}

// InsertMedia bulk-writes discovered assets. The natural key keeps redelivered
// results from duplicating rows.
func (s *Store) InsertMedia(ctx context.Context, items []media.Item) error {
	if len(items) == 0 {
		return nil
	}
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO media (source_url, media_url, media_type, status) VALUES `)
	n := 0
	for _, it := range items {
		if it.Empty() {
			continue
		}
		if n > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d, 'processed')", len(args)+1, len(args)+2, len(args)+3)
		args = append(args, it.SourceURL, it.MediaURL, string(it.MediaType))
		n++
	}
	if n == 0 {
		return nil
	}
	sb.WriteString(` ON CONFLICT (source_url, media_url) DO UPDATE SET media_type = EXCLUDED.media_type, status = 'processed', updated_at = now()`)
	if _, err := s.db.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert media rows: %w", err)
	}
	return nil
}

// UpdateStatus moves every row of the listed source URLs from one status to
// another. Rows not currently in the from status are left untouched, which is
// what keeps terminal transitions one-way under redelivery.
func (s *Store) UpdateStatus(ctx context.Context, sourceURLs []string, from, to media.Status) error {
	if len(sourceURLs) == 0 {
		return nil
	}
	const query = `
UPDATE media SET status = $3, updated_at = now()
WHERE source_url = ANY($1) AND status = $2`
	if _, err := s.db.Exec(ctx, query, sourceURLs, string(from), string(to)); err != nil {
		return fmt.Errorf("update status %s to %s: %w", from, to, err)
	}
	return nil
}

// Statuses returns the lifecycle status per source URL. URLs without a
// lifecycle row are absent from the result.
func (s *Store) Statuses(ctx context.Context, sourceURLs []string) (map[string]media.Status, error) {
	out := make(map[string]media.Status, len(sourceURLs))
	if len(sourceURLs) == 0 {
		return out, nil
	}
	const query = `SELECT source_url, status FROM media WHERE source_url = ANY($1) AND media_url = ''`
	rows, err := s.db.Query(ctx, query, sourceURLs)
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			sourceURL string
			status    string
		)
		if err := rows.Scan(&sourceURL, &status); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}
		out[sourceURL] = media.Status(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status rows: %w", err)
	}
	return out, nil
}

// List returns a paginated, filtered view of media rows ordered newest first.
func (s *Store) List(ctx context.Context, q media.Query) (media.Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}

	var (
		conds []string
		args  []any
	)
	if q.Type != "" {
		args = append(args, string(q.Type))
		conds = append(conds, fmt.Sprintf("media_type = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		conds = append(conds, fmt.Sprintf("(source_url ILIKE $%d OR media_url ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := "SELECT count(*) FROM media" + where
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return media.Page{}, fmt.Errorf("count media rows: %w", err)
	}

	args = append(args, q.Limit, (q.Page-1)*q.Limit)
	listQuery := fmt.Sprintf(
		"SELECT id, source_url, media_url, media_type, status, created_at, updated_at FROM media%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))
	rows, err := s.db.Query(ctx, listQuery, args...)
	if err != nil {
		return media.Page{}, fmt.Errorf("query media rows: %w", err)
	}
	defer rows.Close()

	page := media.Page{
		Total:       total,
		Pages:       int((total + int64(q.Limit) - 1) / int64(q.Limit)),
		CurrentPage: q.Page,
		Media:       []media.Record{},
	}
	for rows.Next() {
		var (
			rec       media.Record
			mediaType string
			status    string
		)
		if err := rows.Scan(&rec.ID, &rec.SourceURL, &rec.MediaURL, &mediaType, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return media.Page{}, fmt.Errorf("scan media row: %w", err)
		}
		rec.MediaType = media.Type(mediaType)
		rec.Status = media.Status(status)
		page.Media = append(page.Media, rec)
	}
	if err := rows.Err(); err != nil {
		return media.Page{}, fmt.Errorf("iterate media rows: %w", err)
	}
	return page, nil
}

// Clear removes every media row.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM media`); err != nil {
		return fmt.Errorf("clear media rows: %w", err)
	}
	return nil
}

// RunInTx runs fn against a transaction-scoped store, committing on nil and
// rolling back on error.
func (s *Store) RunInTx(ctx context.Context, fn func(media.Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: tx}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("rollback tx after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
