package store

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"codecollab/internal/app"
)

type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgres connects to postgres and returns a pool wrapper
func NewPostgres(ctx context.Context, cfg app.Config, log *slog.Logger) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.PGURL)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = int32(cfg.PGMaxConn)

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

// Ping is used by readiness checks
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// RecordRun appends one proxy call to the history
func (p *Postgres) RecordRun(ctx context.Context, r Run) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO runs (kind, language, outcome, duration_ms)
		VALUES ($1, $2, $3, $4)
	`, r.Kind, r.Language, r.Outcome, r.DurationMS)
	return err
}

// RecentRuns returns the newest runs first
func (p *Postgres) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, kind, language, outcome, duration_ms, created_at
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.Language, &r.Outcome, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
