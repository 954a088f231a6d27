package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tradementor/capitalengine/internal/models"
)

// TradeColumns records which optional trade columns this deployment has.
// The repository builds its column lists from it, so deployments that
// predate a column still insert, load, and list cleanly; absent fields
// stay zero values on read and are skipped on write.
type TradeColumns struct {
	EntryPrice  bool
	StopLoss    bool
	TargetPrice bool
	ExitPrice   bool
	Outcome     bool
	ClosedAt    bool
	DeletedAt   bool
	PnL         bool
	PLPercent   bool

	// PercentColumn is the percent-of-capital column name, or empty when
	// the deployment has none.
	PercentColumn string
}

// AllTradeColumns describes the bootstrap schema from EnsureSchema.
func AllTradeColumns() TradeColumns {
	return TradeColumns{
		EntryPrice:    true,
		StopLoss:      true,
		TargetPrice:   true,
		ExitPrice:     true,
		Outcome:       true,
		ClosedAt:      true,
		DeletedAt:     true,
		PnL:           true,
		PLPercent:     true,
		PercentColumn: "position_percent",
	}
}

// selectList returns the SELECT column list, in scan order.
func (c TradeColumns) selectList() string {
	cols := []string{"id", "user_id", "symbol"}
	if c.EntryPrice {
		cols = append(cols, "entry_price")
	}
	if c.StopLoss {
		cols = append(cols, "stop_loss")
	}
	if c.TargetPrice {
		cols = append(cols, "target_price")
	}
	if c.ExitPrice {
		cols = append(cols, "exit_price")
	}
	if c.PercentColumn != "" {
		cols = append(cols, c.PercentColumn)
	}
	if c.Outcome {
		cols = append(cols, "outcome")
	}
	if c.ClosedAt {
		cols = append(cols, "closed_at")
	}
	if c.DeletedAt {
		cols = append(cols, "deleted_at")
	}
	if c.PnL {
		cols = append(cols, "pnl")
	}
	if c.PLPercent {
		cols = append(cols, "pl_percent")
	}
	cols = append(cols, "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

// scanDests returns scan destinations matching selectList's order.
func (c TradeColumns) scanDests(t *models.Trade) []any {
	dests := []any{&t.ID, &t.UserID, &t.Symbol}
	if c.EntryPrice {
		dests = append(dests, &t.EntryPrice)
	}
	if c.StopLoss {
		dests = append(dests, &t.StopLoss)
	}
	if c.TargetPrice {
		dests = append(dests, &t.TargetPrice)
	}
	if c.ExitPrice {
		dests = append(dests, &t.ExitPrice)
	}
	if c.PercentColumn != "" {
		dests = append(dests, &t.PositionPercent)
	}
	if c.Outcome {
		dests = append(dests, &t.Outcome)
	}
	if c.ClosedAt {
		dests = append(dests, &t.ClosedAt)
	}
	if c.DeletedAt {
		dests = append(dests, &t.DeletedAt)
	}
	if c.PnL {
		dests = append(dests, &t.PnL)
	}
	if c.PLPercent {
		dests = append(dests, &t.PLPercent)
	}
	return append(dests, &t.CreatedAt, &t.UpdatedAt)
}

// TradeRepository persists trade rows. Column lists are negotiated through
// TradeColumns, mirroring the capability handling the engine applies to its
// own queries.
type TradeRepository struct {
	pool DBPool
	cols TradeColumns
}

func NewTradeRepository(pool DBPool, cols TradeColumns) *TradeRepository {
	return &TradeRepository{pool: pool, cols: cols}
}

func (r *TradeRepository) Create(ctx context.Context, trade *models.Trade) error {
	now := time.Now().UTC()
	trade.CreatedAt = now
	trade.UpdatedAt = now
	if trade.Outcome == "" {
		trade.Outcome = models.OutcomeOpen
	}

	cols := []string{"id", "user_id", "symbol"}
	args := []any{trade.ID, trade.UserID, trade.Symbol}
	if r.cols.EntryPrice {
		cols = append(cols, "entry_price")
		args = append(args, trade.EntryPrice)
	}
	if r.cols.StopLoss {
		cols = append(cols, "stop_loss")
		args = append(args, trade.StopLoss)
	}
	if r.cols.TargetPrice {
		cols = append(cols, "target_price")
		args = append(args, trade.TargetPrice)
	}
	if r.cols.PercentColumn != "" {
		cols = append(cols, r.cols.PercentColumn)
		args = append(args, trade.PositionPercent)
	}
	if r.cols.Outcome {
		cols = append(cols, "outcome")
		args = append(args, trade.Outcome)
	}
	cols = append(cols, "created_at", "updated_at")
	args = append(args, trade.CreatedAt, trade.UpdatedAt)

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := "INSERT INTO trades (" + strings.Join(cols, ", ") +
		") VALUES (" + strings.Join(placeholders, ", ") + ")"

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

func (r *TradeRepository) scanTrade(row Row) (*models.Trade, error) {
	var t models.Trade
	if err := row.Scan(r.cols.scanDests(&t)...); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TradeRepository) GetByID(ctx context.Context, tradeID, userID string) (*models.Trade, error) {
	query := `SELECT ` + r.cols.selectList() + ` FROM trades WHERE id = $1 AND user_id = $2`

	trade, err := r.scanTrade(r.pool.QueryRow(ctx, query, tradeID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load trade %s: %w", tradeID, err)
	}
	return trade, nil
}

// ListByUser returns the user's trades, newest first. Soft-deleted trades
// are excluded when the deployment tracks deletion.
func (r *TradeRepository) ListByUser(ctx context.Context, userID string) ([]models.Trade, error) {
	query := `SELECT ` + r.cols.selectList() + ` FROM trades
		WHERE user_id = $1`
	if r.cols.DeletedAt {
		query += ` AND deleted_at IS NULL`
	}
	query += `
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		trade, err := r.scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *trade)
	}
	return trades, rows.Err()
}

// SoftDelete marks the trade deleted without removing the row. Reported
// false when the trade does not exist or was already deleted.
func (r *TradeRepository) SoftDelete(ctx context.Context, tradeID, userID string) (bool, error) {
	if !r.cols.DeletedAt {
		return false, fmt.Errorf("soft delete requires a deleted_at column")
	}

	now := time.Now().UTC()
	query := `UPDATE trades SET deleted_at = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4 AND deleted_at IS NULL`

	res, err := r.pool.Exec(ctx, query, now, now, tradeID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to soft delete trade: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
