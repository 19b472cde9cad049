package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nvoronina/market-sim/internal/domain"
	"github.com/nvoronina/market-sim/internal/port"
)

var _ port.TradeSink = (*Postgres)(nil)

// Postgres writes the transaction audit trail to a database. It is an export
// target only; the engine never reads it back.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects and ensures the audit schema exists. Call Close when
// finished.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: create pool: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id               TEXT PRIMARY KEY,
			kind             TEXT NOT NULL,
			buyer_label      TEXT NOT NULL DEFAULT '',
			seller_label     TEXT NOT NULL DEFAULT '',
			price            NUMERIC NOT NULL,
			volume           BIGINT NOT NULL,
			requested_volume BIGINT NOT NULL,
			actual_volume    BIGINT NOT NULL,
			average_price    NUMERIC,
			reference_price  NUMERIC,
			slippage_pct     NUMERIC,
			failure_reason   TEXT NOT NULL DEFAULT '',
			legs             JSONB,
			executed_at      TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

// RecordTransaction inserts the record and its legs atomically.
func (p *Postgres) RecordTransaction(ctx context.Context, t *domain.Transaction) error {
	return p.withTx(ctx, func(tx pgx.Tx) error {
		var legs []byte
		if len(t.Legs) > 0 {
			b, err := json.Marshal(t.Legs)
			if err != nil {
				return fmt.Errorf("audit: marshal legs: %w", err)
			}
			legs = b
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO transactions
				(id, kind, buyer_label, seller_label, price, volume,
				 requested_volume, actual_volume, average_price,
				 reference_price, slippage_pct, failure_reason, legs, executed_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (id) DO NOTHING`,
			t.ID, string(t.Kind), t.BuyerLabel, t.SellerLabel, t.Price, t.Volume,
			t.RequestedVolume, t.ActualVolume, t.AveragePrice,
			t.ReferencePrice, t.SlippagePct, t.FailureReason, legs, t.Timestamp)
		return err
	})
}

func (p *Postgres) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}
