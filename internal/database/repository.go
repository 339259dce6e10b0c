package database

import (
	"context"
	"fmt"
	"time"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/history"
)

// Repository mirrors trade history into Postgres for reporting. It
// implements history.Archiver; the archive is read by external reporting
// tools, not by this process.
type Repository struct {
	db *DB
}

var _ history.Archiver = (*Repository)(nil)

// NewRepository creates a repository over an open connection.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// ArchiveTrade upserts one trade record. Replays after a crash are
// expected, so conflicts on the trade ID update in place.
func (r *Repository) ArchiveTrade(ctx context.Context, trade history.TradeRecord) error {
	query := `
		INSERT INTO trade_records (
			id, traded_at, market, side, price, volume, total_amount, fee,
			profit, profit_rate, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id)
		DO UPDATE SET
			profit = EXCLUDED.profit,
			profit_rate = EXCLUDED.profit_rate,
			reason = EXCLUDED.reason
	`

	_, err := r.db.Pool.Exec(ctx, query,
		trade.ID, time.UnixMilli(trade.Timestamp).UTC(), trade.Market, string(trade.Type),
		trade.Price, trade.Volume, trade.TotalAmount, trade.Fee,
		trade.Profit, trade.ProfitRate, nullableString(trade.Reason),
	)
	if err != nil {
		return fmt.Errorf("failed to archive trade: %w", err)
	}
	return nil
}

// DeleteTrade removes an archived trade after it is deleted from the log.
func (r *Repository) DeleteTrade(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM trade_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete archived trade: %w", err)
	}
	return nil
}

// SaveDailySummary upserts one day's rollup.
func (r *Repository) SaveDailySummary(ctx context.Context, perf history.DailyPerformance) error {
	date, err := time.Parse("2006-01-02", perf.Date)
	if err != nil {
		return fmt.Errorf("invalid summary date %q: %w", perf.Date, err)
	}

	query := `
		INSERT INTO daily_summaries (
			summary_date, profit, profit_rate, trade_count, win_count, loss_count, win_rate
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (summary_date)
		DO UPDATE SET
			profit = EXCLUDED.profit,
			profit_rate = EXCLUDED.profit_rate,
			trade_count = EXCLUDED.trade_count,
			win_count = EXCLUDED.win_count,
			loss_count = EXCLUDED.loss_count,
			win_rate = EXCLUDED.win_rate,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = r.db.Pool.Exec(ctx, query,
		date, perf.Profit, perf.ProfitRate, perf.Trades, perf.Wins, perf.Losses, perf.WinRate,
	)
	if err != nil {
		return fmt.Errorf("failed to save daily summary: %w", err)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
