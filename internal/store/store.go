// Package store persists postings and run history in PostgreSQL. The
// identity key is the primary key: a key is written at most once, and an
// archived row is a permanent tombstone that later runs can never revive.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kpetrov/jobscout/internal/jobs"
)

var (
	// ErrNotFound is returned when no posting has the requested key.
	ErrNotFound = errors.New("posting not found")
	// ErrBadTransition is returned for a status move the lifecycle does
	// not allow.
	ErrBadTransition = errors.New("status transition not allowed")
)

const schema = `
CREATE TABLE IF NOT EXISTS postings (
	identity_key TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	title        TEXT NOT NULL,
	company      TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	posted_at    TIMESTAMPTZ,
	score        INT NOT NULL,
	breakdown    JSONB NOT NULL DEFAULT '{}',
	status       TEXT NOT NULL DEFAULT 'new',
	first_seen   TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen    TIMESTAMPTZ NOT NULL DEFAULT now(),
	notified     BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS postings_status_idx ON postings (status);
CREATE INDEX IF NOT EXISTS postings_score_idx ON postings (score DESC);

CREATE TABLE IF NOT EXISTS runs (
	id          BIGSERIAL PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	fetched     INT NOT NULL,
	filtered    INT NOT NULL,
	scored      INT NOT NULL,
	stored      INT NOT NULL,
	by_source   JSONB NOT NULL DEFAULT '{}'
);
`

// Store wraps a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, logger: logger.Named("store")}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ExistingKeys returns every identity key present in the store, regardless
// of status. The pipeline uses it to drop already-seen postings before the
// batch write; archived keys staying in this set is what makes tombstones
// permanent.
func (s *Store) ExistingKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT identity_key FROM postings`)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys[key] = true
	}
	return keys, rows.Err()
}

// InsertBatch writes new postings in one round-trip and bumps last_seen on
// keys that already exist. Rows with a non-positive score never reach the
// store. Returns the number of newly inserted rows.
func (s *Store) InsertBatch(ctx context.Context, postings []*jobs.Posting) (int, error) {
	batch := &pgx.Batch{}
	queued := 0
	for _, p := range postings {
		if p.Score <= 0 {
			continue
		}
		batch.Queue(`
			INSERT INTO postings
				(identity_key, source, source_id, title, company, category,
				 location, description, url, posted_at, score, breakdown,
				 status, first_seen, last_seen)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (identity_key) DO UPDATE SET last_seen = now()`,
			p.IdentityKey(), p.Source, p.SourceID, p.Title, p.Company,
			p.Category, p.Location, p.Description, p.URL, nullableTime(p.PostedAt),
			p.Score, p.Breakdown, string(jobs.StatusNew),
		)
		queued++
	}
	if queued == 0 {
		return 0, nil
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for i := 0; i < queued; i++ {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert batch: %w", err)
		}
		// ON CONFLICT DO UPDATE also reports one affected row, so the
		// inserted count here includes refreshed duplicates only when the
		// caller skipped the ExistingKeys pre-filter.
		if tag.RowsAffected() > 0 {
			inserted++
		}
	}
	s.logger.Debug("batch written", zap.Int("queued", queued), zap.Int("affected", inserted))
	return inserted, nil
}

// QueryOpts narrows Query results. Zero values mean no constraint.
type QueryOpts struct {
	Status   jobs.Status
	Source   string
	MinScore int
	Limit    int
}

// Query returns postings best-score-first.
func (s *Store) Query(ctx context.Context, opts QueryOpts) ([]*jobs.Posting, error) {
	q := `
		SELECT source, source_id, title, company, category, location,
		       description, url, COALESCE(posted_at, 'epoch'::timestamptz),
		       score, breakdown, status, first_seen, last_seen, notified
		FROM postings WHERE score >= $1`
	args := []any{opts.MinScore}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if opts.Source != "" {
		args = append(args, opts.Source)
		q += fmt.Sprintf(" AND source = $%d", len(args))
	}
	q += " ORDER BY score DESC, posted_at DESC NULLS LAST"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()
	return scanPostings(rows)
}

// Get returns a single posting by identity key.
func (s *Store) Get(ctx context.Context, key string) (*jobs.Posting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, source_id, title, company, category, location,
		       description, url, COALESCE(posted_at, 'epoch'::timestamptz),
		       score, breakdown, status, first_seen, last_seen, notified
		FROM postings WHERE identity_key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("get posting: %w", err)
	}
	defer rows.Close()

	found, err := scanPostings(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

// UpdateStatus moves a posting through the lifecycle, rejecting moves the
// transition table does not allow.
func (s *Store) UpdateStatus(ctx context.Context, key string, to jobs.Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrBadTransition, to)
	}

	var current jobs.Status
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM postings WHERE identity_key = $1`, key).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if !current.CanTransition(to) {
		return fmt.Errorf("%w: %s to %s", ErrBadTransition, current, to)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE postings SET status = $2 WHERE identity_key = $1`, key, string(to))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	s.logger.Info("status changed",
		zap.String("key", key), zap.String("from", string(current)), zap.String("to", string(to)))
	return nil
}

// Archive tombstones a posting. The row stays in the table so the identity
// key can never be re-inserted by a later run.
func (s *Store) Archive(ctx context.Context, key string) error {
	return s.UpdateStatus(ctx, key, jobs.StatusArchived)
}

// Unarchive brings an archived posting back into review.
func (s *Store) Unarchive(ctx context.Context, key string) error {
	return s.UpdateStatus(ctx, key, jobs.StatusNew)
}

// Unnotified returns new postings at or above the score floor that have
// not yet been included in a digest.
func (s *Store) Unnotified(ctx context.Context, minScore int) ([]*jobs.Posting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, source_id, title, company, category, location,
		       description, url, COALESCE(posted_at, 'epoch'::timestamptz),
		       score, breakdown, status, first_seen, last_seen, notified
		FROM postings
		WHERE notified = false AND status = 'new' AND score >= $1
		ORDER BY score DESC`, minScore)
	if err != nil {
		return nil, fmt.Errorf("query unnotified: %w", err)
	}
	defer rows.Close()
	return scanPostings(rows)
}

// MarkNotified flags postings as already delivered.
func (s *Store) MarkNotified(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE postings SET notified = true WHERE identity_key = ANY($1)`, keys)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// Run is one pipeline execution's ledger entry.
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Filtered   int
	Scored     int
	Stored     int
	BySource   map[string]int
}

// LogRun appends a run record to the history table.
func (s *Store) LogRun(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (started_at, finished_at, fetched, filtered, scored, stored, by_source)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		run.StartedAt, run.FinishedAt, run.Fetched, run.Filtered, run.Scored, run.Stored, run.BySource)
	if err != nil {
		return fmt.Errorf("log run: %w", err)
	}
	return nil
}

func scanPostings(rows pgx.Rows) ([]*jobs.Posting, error) {
	var out []*jobs.Posting
	for rows.Next() {
		p := &jobs.Posting{}
		var status string
		if err := rows.Scan(
			&p.Source, &p.SourceID, &p.Title, &p.Company, &p.Category,
			&p.Location, &p.Description, &p.URL, &p.PostedAt,
			&p.Score, &p.Breakdown, &status, &p.FirstSeen, &p.LastSeen, &p.Notified,
		); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		p.Status = jobs.Status(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
