package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/averix/internal/domain"
)

// TradeJournal implements domain.TradeJournal using PostgreSQL. Trades are
// keyed by (user_id, trade_id); re-recording a trade refreshes its status,
// P&L and close time.
type TradeJournal struct {
	pool *pgxpool.Pool
}

// NewTradeJournal creates a new TradeJournal backed by the given pool.
func NewTradeJournal(pool *pgxpool.Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

// Record upserts trades for userID in a single batch.
func (j *TradeJournal) Record(ctx context.Context, userID string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trade_journal (
			user_id, trade_id, symbol, side, amount, price,
			stop_loss, take_profit, status, pnl, created_at, closed_at
		) VALUES (
			$1, $2, $3, $4, $5::numeric, $6::numeric,
			$7::numeric, $8::numeric, $9, $10::numeric, $11, $12
		) ON CONFLICT (user_id, trade_id) DO UPDATE SET
			status      = EXCLUDED.status,
			pnl         = EXCLUDED.pnl,
			closed_at   = EXCLUDED.closed_at,
			recorded_at = NOW()`

	for _, t := range trades {
		batch.Queue(query,
			userID, t.ID, t.Symbol, string(t.Side),
			t.Amount.String(), t.Price.String(),
			optionalDecimal(t.StopLoss), optionalDecimal(t.TakeProfit),
			string(t.Status), t.PnL.String(),
			optionalTime(t.CreatedAt), optionalTime(t.ClosedAt),
		)
	}

	br := j.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, t := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: record trade %s: %w", t.ID, err)
		}
	}
	return nil
}

// List returns journaled trades for userID, newest first.
func (j *TradeJournal) List(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	where, args := listFilter(opts, "created_at", []any{userID}, "user_id = $1")
	query := `SELECT trade_id, symbol, side, amount::text, price::text,
		stop_loss::text, take_profit::text, status, pnl::text, created_at, closed_at
		FROM trade_journal` + where + ` ORDER BY created_at DESC NULLS LAST` + listPage(opts, &args)

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal for %s: %w", userID, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		t, err := scanJournalRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan journal row: %w", err)
		}
		t.UserID = userID
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list journal rows: %w", err)
	}
	return trades, nil
}

func scanJournalRow(rows pgx.Rows) (domain.Trade, error) {
	var (
		t                    domain.Trade
		side, status         string
		amount, price, pnl   string
		stopLoss, takeProfit *string
		createdAt, closedAt  *time.Time
	)
	if err := rows.Scan(
		&t.ID, &t.Symbol, &side, &amount, &price,
		&stopLoss, &takeProfit, &status, &pnl, &createdAt, &closedAt,
	); err != nil {
		return t, err
	}

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, err
	}
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return t, err
	}
	if t.PnL, err = decimal.NewFromString(pnl); err != nil {
		return t, err
	}
	if t.StopLoss, err = parseOptionalDecimal(stopLoss); err != nil {
		return t, err
	}
	if t.TakeProfit, err = parseOptionalDecimal(takeProfit); err != nil {
		return t, err
	}
	t.Side = domain.OrderSide(side)
	t.Status = domain.TradeStatus(status)
	if createdAt != nil {
		t.CreatedAt = domain.NewTimestamp(*createdAt)
	}
	if closedAt != nil {
		t.ClosedAt = domain.NewTimestamp(*closedAt)
	}
	return t, nil
}

// ----------------------------------------------------------------------------
// Internal helpers
// ----------------------------------------------------------------------------

func optionalDecimal(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseOptionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalTime(ts domain.Timestamp) *time.Time {
	if ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}

// Compile-time interface check.
var _ domain.TradeJournal = (*TradeJournal)(nil)
