package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradementor/capitalengine/internal/database"
	"github.com/tradementor/capitalengine/internal/models"
)

// SettlementRequest identifies the closing trade and the figures settlement
// derives P&L from.
type SettlementRequest struct {
	TradeID         string
	UserID          string
	EntryPrice      decimal.Decimal
	ExitPrice       decimal.Decimal
	PositionPercent decimal.Decimal
}

// SettlementResult reports what a successful settlement applied.
type SettlementResult struct {
	PnL       decimal.Decimal `json:"pnl"`
	PLPercent Metric          `json:"pl_percent"`
	Outcome   string          `json:"outcome"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// SettleTradeClosure applies a closing trade's realized P&L to the user's
// capital exactly once. The settlement transaction stamps the trade closed
// behind an exit_price IS NULL guard and increments both capital figures
// atomically, so concurrent closures of different trades never lose updates
// and a repeated closure of the same trade is rejected with
// ErrSettlementConflict.
//
// Quantity is recomputed here from resolved capital, never read from a
// cached figure.
func (e *Engine) SettleTradeClosure(ctx context.Context, req SettlementRequest) (SettlementResult, error) {
	var res SettlementResult

	if !e.profile.TradesTable || !e.profile.ExitPrice {
		return res, fmt.Errorf("cannot settle without an exit_price column: %w", ErrSchemaAbsent)
	}
	if !req.ExitPrice.IsPositive() {
		return res, fmt.Errorf("exit price must be positive: %w", ErrUndefined)
	}

	uc := e.ResolveCapital(ctx, req.UserID)

	invested := AmountInvested(uc.TotalCapital, req.PositionPercent)
	qty := Quantity(invested.Value, req.EntryPrice)
	if !qty.Valid {
		return res, fmt.Errorf("quantity requires a positive entry price: %w", ErrUndefined)
	}

	pnl := req.ExitPrice.Sub(req.EntryPrice).Mul(qty.Value)

	plPercent := Undefined()
	if invested.Value.IsPositive() {
		plPercent = Defined(pnl.Div(invested.Value).Mul(oneHundred))
	}

	target, stop := e.readRiskLevels(ctx, req.TradeID, req.UserID)
	outcome := ClassifyOutcome(req.ExitPrice, target, stop, e.cfg.OutcomeTolerance)

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to begin settlement transaction: %w: %w", ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Close the trade. The exit_price IS NULL condition is the idempotency
	// guard: a trade that already settled matches zero rows.
	sets := []string{"exit_price = $1"}
	args := []any{req.ExitPrice}
	if e.profile.Outcome {
		sets = append(sets, "outcome = "+placeholder(len(args)+1))
		args = append(args, outcome)
	}
	if e.profile.ClosedAt {
		sets = append(sets, "closed_at = "+placeholder(len(args)+1))
		args = append(args, time.Now().UTC())
	}
	if e.profile.CloseDate {
		sets = append(sets, "close_date = "+placeholder(len(args)+1))
		args = append(args, time.Now().UTC())
	}
	if e.profile.PnL {
		sets = append(sets, "pnl = "+placeholder(len(args)+1))
		args = append(args, pnl)
	}
	if e.profile.PLPercent && plPercent.Valid {
		sets = append(sets, "pl_percent = "+placeholder(len(args)+1))
		args = append(args, plPercent.Value)
	}

	query := "UPDATE trades SET " + strings.Join(sets, ", ") +
		" WHERE id = " + placeholder(len(args)+1) +
		" AND user_id = " + placeholder(len(args)+2) +
		" AND exit_price IS NULL"
	args = append(args, req.TradeID, req.UserID)

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return res, fmt.Errorf("failed to close trade: %w: %w", ErrStorageUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("failed to read close result: %w: %w", ErrStorageUnavailable, err)
	}
	if affected == 0 {
		return res, ErrSettlementConflict
	}

	// Apply P&L with in-place increments, never read-modify-write.
	if err := e.applyPnL(ctx, tx, req.UserID, pnl); err != nil {
		return res, err
	}

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("failed to commit settlement: %w: %w", ErrStorageUnavailable, err)
	}

	e.log.WithUserID(req.UserID).WithFields(map[string]interface{}{
		"trade_id": req.TradeID,
		"pnl":      pnl.String(),
		"outcome":  outcome,
	}).Info("trade settled")

	res = SettlementResult{
		PnL:       pnl,
		PLPercent: plPercent,
		Outcome:   outcome,
		Quantity:  qty.Value,
	}
	return res, nil
}

// readRiskLevels fetches the trade's target and stop for outcome
// classification. Missing columns or a failed read yield zeros, which
// classify as MANUAL_CLOSE.
func (e *Engine) readRiskLevels(ctx context.Context, tradeID, userID string) (target, stop decimal.Decimal) {
	var cols []string
	var dests []any
	if e.profile.TargetPrice {
		cols = append(cols, "COALESCE(target_price, 0)")
		dests = append(dests, &target)
	}
	if e.profile.StopLoss {
		cols = append(cols, "COALESCE(stop_loss, 0)")
		dests = append(dests, &stop)
	}
	if len(cols) == 0 {
		return decimal.Zero, decimal.Zero
	}

	query := "SELECT " + strings.Join(cols, ", ") + " FROM trades WHERE id = $1 AND user_id = $2"
	if err := e.pool.QueryRow(ctx, query, tradeID, userID).Scan(dests...); err != nil {
		if !isNoRows(err) {
			e.log.WithError(err).WithUserID(userID).Warn("risk level read failed, classifying as manual close")
		}
		return decimal.Zero, decimal.Zero
	}
	return target, stop
}

// applyPnL adds the realized P&L to both capital figures inside the
// settlement transaction, using whichever capital columns exist.
func (e *Engine) applyPnL(ctx context.Context, tx database.Tx, userID string, pnl decimal.Decimal) error {
	var sets []string
	var args []any
	if e.profile.TotalCapital {
		sets = append(sets, "total_capital = COALESCE(total_capital, 0) + "+placeholder(len(args)+1))
		args = append(args, pnl)
	}
	if e.profile.AvailableFunds {
		sets = append(sets, "available_funds = COALESCE(available_funds, 0) + "+placeholder(len(args)+1))
		args = append(args, pnl)
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = " + placeholder(len(args)+1)
	args = append(args, userID)

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to apply pnl to capital: %w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// ClassifyOutcome labels a closed trade once the exit price is known. The
// bands are widened by the tolerance and the boundaries are inclusive;
// TARGET_HIT wins over SL_HIT when both match. A zero target or stop means
// the level was never set and cannot match.
func ClassifyOutcome(exitPrice, targetPrice, stopLoss, tolerance decimal.Decimal) string {
	one := decimal.NewFromInt(1)

	if targetPrice.IsPositive() && exitPrice.GreaterThanOrEqual(targetPrice.Mul(one.Sub(tolerance))) {
		return models.OutcomeTargetHit
	}
	if stopLoss.IsPositive() && exitPrice.LessThanOrEqual(stopLoss.Mul(one.Add(tolerance))) {
		return models.OutcomeStopLossHit
	}
	return models.OutcomeManualClose
}
