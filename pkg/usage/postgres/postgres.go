// Package postgres provides a PostgreSQL usage ledger. It uses pgx/v5 for
// connection pooling; records are stored individually and aggregated on read.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/confwhisper/pkg/usage"
)

// Ledger is a PostgreSQL-backed usage.Ledger.
type Ledger struct {
	pool *pgxpool.Pool
}

var _ usage.Ledger = (*Ledger)(nil)

// New connects to PostgreSQL. If MigrateOnStart is true, schema migrations
// are applied before returning.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	l := &Ledger{pool: pool}
	if cfg.MigrateOnStart {
		if err := l.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return l, nil
}

// Record inserts one usage row.
func (l *Ledger) Record(ctx context.Context, rec usage.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO usage_records (subject, model, input_tokens, output_tokens, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.Subject, rec.Model, rec.InputTokens, rec.OutputTokens, at)
	if err != nil {
		return fmt.Errorf("inserting usage record: %w", err)
	}
	return nil
}

// Totals aggregates the subject's rows per model.
func (l *Ledger) Totals(ctx context.Context, subject string) (usage.Totals, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT model, COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM usage_records
		WHERE subject = $1
		GROUP BY model
	`, subject)
	if err != nil {
		return usage.Totals{}, fmt.Errorf("querying usage totals: %w", err)
	}

	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (usage.ModelTotals, error) {
		var m usage.ModelTotals
		err := row.Scan(&m.Model, &m.Requests, &m.InputTokens, &m.OutputTokens)
		return m, err
	})
	if err != nil {
		return usage.Totals{}, fmt.Errorf("scanning usage totals: %w", err)
	}

	t := usage.Totals{Subject: subject, Models: models}
	if t.Models == nil {
		t.Models = []usage.ModelTotals{}
	}
	t.Sum()
	return t, nil
}

// HealthCheck verifies the database connection.
func (l *Ledger) HealthCheck(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

// Close releases the connection pool.
func (l *Ledger) Close() error {
	l.pool.Close()
	return nil
}
