package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReservedExposure sums the capital currently reserved by the user's open,
// non-deleted trades, using the best signal this schema offers:
//
//  1. a direct allocation-amount column, when one exists and carries data;
//  2. a percent-of-capital column, scaled by total capital; also the
//     secondary signal when the allocation column exists but sums to
//     nothing;
//  3. the sum of entry prices, a crude last resort when no sizing column
//     exists at all.
//
// The result is never negative. Query failures yield zero: under-reserving
// only skews the availability display, while an error here would block trade
// entry for the user.
func (e *Engine) ReservedExposure(ctx context.Context, userID string, totalCapital decimal.Decimal) decimal.Decimal {
	if !e.profile.TradesTable {
		return decimal.Zero
	}

	pred := e.profile.openPredicate()

	if col := e.profile.AllocationColumn; col != "" {
		reserved, err := e.sumOpenTrades(ctx, userID, col, pred)
		if err != nil {
			e.log.WithError(err).WithUserID(userID).Warn("allocation sum failed, treating exposure as zero")
			return decimal.Zero
		}
		if reserved.IsPositive() {
			return reserved
		}
		// Allocation column present but unpopulated; fall through to the
		// percent signal when there is one.
		if e.profile.PercentColumn == "" {
			return decimal.Zero
		}
	}

	if col := e.profile.PercentColumn; col != "" {
		pctSum, err := e.sumOpenTrades(ctx, userID, col, pred)
		if err != nil {
			e.log.WithError(err).WithUserID(userID).Warn("percent sum failed, treating exposure as zero")
			return decimal.Zero
		}
		reserved := totalCapital.Mul(pctSum).Div(oneHundred)
		if reserved.IsNegative() {
			return decimal.Zero
		}
		return reserved
	}

	if e.profile.EntryPrice {
		reserved, err := e.sumOpenTrades(ctx, userID, "entry_price", pred)
		if err != nil {
			e.log.WithError(err).WithUserID(userID).Warn("entry price sum failed, treating exposure as zero")
			return decimal.Zero
		}
		if reserved.IsNegative() {
			return decimal.Zero
		}
		return reserved
	}

	return decimal.Zero
}

func (e *Engine) sumOpenTrades(ctx context.Context, userID, column, openPred string) (decimal.Decimal, error) {
	query := "SELECT COALESCE(SUM(" + column + "), 0) FROM trades WHERE user_id = $1 AND " + openPred

	var sum decimal.Decimal
	if err := e.pool.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}
