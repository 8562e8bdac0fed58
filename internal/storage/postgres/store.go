package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"priceScope/internal/model"
)

// Store provides Postgres persistence for analysis runs.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// WriteResult persists one run: all price points, the reportable large buys,
// and the run watermark.
func (s *Store) WriteResult(ctx context.Context, result *model.AnalysisResult) error {
	if err := s.InsertPricePoints(ctx, result.Summary.TokenAddress, result.Summary.PoolAddress, result.Prices); err != nil {
		return fmt.Errorf("insert price points: %w", err)
	}

	large := make([]model.TradeClassification, 0)
	for _, trade := range result.Trades {
		if trade.Reportable() {
			large = append(large, trade)
		}
	}
	if err := s.UpsertLargeBuys(ctx, result.Summary.TokenAddress, result.Summary.PoolAddress, large); err != nil {
		return fmt.Errorf("upsert large buys: %w", err)
	}

	name := runStateName(result.Summary.TokenAddress, result.Summary.PoolAddress)
	if err := s.SaveState(ctx, name, result.Summary.ToBlock); err != nil {
		return fmt.Errorf("save run state: %w", err)
	}
	return nil
}

// InsertPricePoints batch-inserts price points; replays of the same range
// are ignored.
func (s *Store) InsertPricePoints(ctx context.Context, token, pool string, points []model.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range points {
		point := &points[i]
		ref := ""
		if point.TokenPriceRef != nil {
			ref = model.FormatRat(point.TokenPriceRef)
		}
		batch.Queue(`
			INSERT INTO price_points (
				token_address, pool_address, block_number, block_ts, tx_hash,
				price_base, price_ref, base_price_ref_micros, price_method, low_confidence, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
			ON CONFLICT (pool_address, tx_hash, block_number, price_base) DO NOTHING
		`,
			token,
			pool,
			int64(point.BlockNumber),
			int64(point.Timestamp),
			point.TxHash,
			model.FormatRat(point.TokenPriceBase),
			ref,
			point.BasePriceRefMicros,
			point.PriceMethod,
			point.LowConfidence,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range points {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertLargeBuys inserts or updates the detected large purchases.
func (s *Store) UpsertLargeBuys(ctx context.Context, token, pool string, trades []model.TradeClassification) error {
	if len(trades) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range trades {
		trade := &trades[i]
		batch.Queue(`
			INSERT INTO large_buys (
				token_address, pool_address, block_number, tx_hash,
				base_amount, ref_amount_micros, ref_known, counterpart, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
			ON CONFLICT (pool_address, tx_hash, block_number)
			DO UPDATE SET
				base_amount = EXCLUDED.base_amount,
				ref_amount_micros = EXCLUDED.ref_amount_micros,
				ref_known = EXCLUDED.ref_known,
				counterpart = EXCLUDED.counterpart,
				updated_at = now()
		`,
			token,
			pool,
			int64(trade.BlockNumber),
			trade.TxHash,
			model.FormatRat(trade.BaseAmount),
			trade.RefAmountMicros,
			trade.RefKnown,
			trade.Counterpart,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range trades {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LastProcessedBlock returns the saved watermark for a (token, pool) run,
// or ok=false when the pair has never completed a run.
func (s *Store) LastProcessedBlock(ctx context.Context, token, pool string) (uint64, bool, error) {
	return s.LoadState(ctx, runStateName(token, pool))
}

// LoadState returns the last processed block for a run name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block uint64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM run_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return block, true, nil
}

// SaveState upserts the last processed block for a run name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, block)
	return err
}

func runStateName(token, pool string) string {
	return fmt.Sprintf("analysis:%s:%s", token, pool)
}
