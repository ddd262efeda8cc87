package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvclean/internal/core"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx. Begin on a pgx.Tx
// opens a savepoint, so a Postgres built on a transaction still saves each
// run atomically.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error)
	Begin(context.Context) (pgx.Tx, error)
}

var (
	_ DBTX = (*pgxpool.Pool)(nil)
	_ DBTX = pgx.Tx(nil)
)

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens and pings a pool.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS csvclean_run (
	id               uuid PRIMARY KEY,
	file             text        NOT NULL,
	mode             text        NOT NULL,
	policy           text        NOT NULL,
	configured       boolean     NOT NULL,
	header           text[]      NOT NULL,
	missing_columns  text[]      NOT NULL DEFAULT '{}',
	rows_in          integer     NOT NULL,
	rows_cleaned     integer     NOT NULL,
	rows_with_errors integer     NOT NULL,
	error_counts     jsonb       NOT NULL,
	cleaned_csv      bytea       NOT NULL,
	duration_ms      bigint      NOT NULL,
	created_at       timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS csvclean_run_created_at_idx ON csvclean_run (created_at DESC);

CREATE TABLE IF NOT EXISTS csvclean_run_error (
	run_id     uuid    NOT NULL REFERENCES csvclean_run (id) ON DELETE CASCADE,
	seq        integer NOT NULL,
	row_index  integer NOT NULL,
	line       integer NOT NULL,
	column_key text    NOT NULL,
	rule_name  text    NOT NULL,
	rule_kind  text    NOT NULL,
	raw_value  text    NOT NULL,
	reason     text    NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

var errorColumns = []string{"run_id", "seq", "row_index", "line", "column_key", "rule_name", "rule_kind", "raw_value", "reason"}

// Postgres stores runs in PostgreSQL.
type Postgres struct {
	db DBTX
}

// NewPostgres wraps a pool or a transaction. Call Migrate before first use.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// WithTx returns a Postgres that runs every query in tx.
func (p *Postgres) WithTx(tx pgx.Tx) *Postgres {
	return &Postgres{db: tx}
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// SaveRun inserts the run and copies its error records in one transaction.
func (p *Postgres) SaveRun(ctx context.Context, s Stored) error {
	counts, err := json.Marshal(s.Run.Summary.ErrorCountByRule)
	if err != nil {
		return fmt.Errorf("encode error counts: %w", err)
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := p.WithTx(tx).insertRun(ctx, s, counts); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func (p *Postgres) insertRun(ctx context.Context, s Stored, counts []byte) error {
	missing := s.Run.Missing
	if missing == nil {
		missing = []string{}
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO csvclean_run (
			id, file, mode, policy, configured, header, missing_columns,
			rows_in, rows_cleaned, rows_with_errors, error_counts,
			cleaned_csv, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		pgUUID(s.Run.ID), s.Run.File, s.Run.Mode, s.Run.Policy, s.Run.Configured,
		s.Run.Header, missing,
		int32(s.Run.Summary.RowsIn), int32(s.Run.Summary.RowsCleaned), int32(s.Run.Summary.RowsWithErrors),
		counts, s.Cleaned, s.Run.DurationMS, s.Run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(s.Errors) > 0 {
		id := pgUUID(s.Run.ID)
		_, err = p.db.CopyFrom(ctx,
			pgx.Identifier{"csvclean_run_error"},
			errorColumns,
			pgx.CopyFromSlice(len(s.Errors), func(i int) ([]any, error) {
				e := s.Errors[i]
				return []any{
					id, int32(i), int32(e.RowIndex), int32(e.Line),
					e.ColumnKey, e.RuleName, e.RuleKind, e.RawValue, e.Reason,
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy error records: %w", err)
		}
	}
	return nil
}

const runColumns = `id, file, mode, policy, configured, header, missing_columns,
	rows_in, rows_cleaned, rows_with_errors, error_counts, duration_ms, created_at`

func scanRun(row pgx.Row) (Run, error) {
	var (
		r       Run
		id      pgtype.UUID
		counts  []byte
		in      int32
		cleaned int32
		withErr int32
	)
	err := row.Scan(&id, &r.File, &r.Mode, &r.Policy, &r.Configured, &r.Header, &r.Missing,
		&in, &cleaned, &withErr, &counts, &r.DurationMS, &r.CreatedAt)
	if err != nil {
		return Run{}, err
	}

	r.ID = uuid.UUID(id.Bytes)
	r.Summary.File = r.File
	r.Summary.RowsIn = int(in)
	r.Summary.RowsCleaned = int(cleaned)
	r.Summary.RowsWithErrors = int(withErr)
	if err := json.Unmarshal(counts, &r.Summary.ErrorCountByRule); err != nil {
		return Run{}, fmt.Errorf("decode error counts: %w", err)
	}
	return r, nil
}

func (p *Postgres) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	r, err := scanRun(p.db.QueryRow(ctx,
		`SELECT `+runColumns+` FROM csvclean_run WHERE id = $1`, pgUUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.Query(ctx,
		`SELECT `+runColumns+` FROM csvclean_run ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Cleaned(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var data []byte
	err := p.db.QueryRow(ctx, `SELECT cleaned_csv FROM csvclean_run WHERE id = $1`, pgUUID(id)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

func (p *Postgres) Errors(ctx context.Context, id uuid.UUID) ([]core.ErrorRecord, error) {
	if _, err := p.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, `
		SELECT row_index, line, column_key, rule_name, rule_kind, raw_value, reason
		FROM csvclean_run_error WHERE run_id = $1 ORDER BY seq`, pgUUID(id))
	if err != nil {
		return nil, fmt.Errorf("query error records: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ErrorRecord, error) {
		var (
			e         core.ErrorRecord
			idx, line int32
		)
		err := row.Scan(&idx, &line, &e.ColumnKey, &e.RuleName, &e.RuleKind, &e.RawValue, &e.Reason)
		e.RowIndex, e.Line = int(idx), int(line)
		return e, err
	})
}

func (p *Postgres) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM csvclean_run WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
