package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Snapshot is the reconciled view of a user's capital state.
// Available always equals TotalCapital minus Reserved; PersistedAvailable is
// what storage held before any healing.
type Snapshot struct {
	UserID             string          `json:"user_id"`
	TotalCapital       decimal.Decimal `json:"total_capital"`
	Reserved           decimal.Decimal `json:"reserved"`
	Available          decimal.Decimal `json:"available"`
	PersistedAvailable decimal.Decimal `json:"-"`
	Healed             bool            `json:"-"`
}

// Reconcile resolves capital, aggregates exposure, and heals the persisted
// available-funds figure when it has drifted beyond the configured epsilon.
// Healing is a repair, not a lock: concurrent writers may still race between
// a read and the corrective write, and the next reconciliation repairs that
// too.
func (e *Engine) Reconcile(ctx context.Context, userID string) Snapshot {
	uc := e.ResolveCapital(ctx, userID)
	reserved := e.ReservedExposure(ctx, userID, uc.TotalCapital)
	available := uc.TotalCapital.Sub(reserved)

	snap := Snapshot{
		UserID:             userID,
		TotalCapital:       uc.TotalCapital,
		Reserved:           reserved,
		Available:          available,
		PersistedAvailable: uc.AvailableFunds,
	}

	drift := uc.AvailableFunds.Sub(available).Abs()
	if e.profile.AvailableFunds && drift.GreaterThan(e.cfg.DriftEpsilon) {
		query := "UPDATE users SET available_funds = $1 WHERE id = $2"
		if _, err := e.pool.Exec(ctx, query, available, userID); err != nil {
			e.log.WithError(err).WithUserID(userID).Warn("available funds heal failed")
		} else {
			snap.Healed = true
			e.log.WithUserID(userID).WithFields(map[string]interface{}{
				"drift":     drift.String(),
				"available": available.String(),
			}).Info("healed available funds drift")
		}
	}

	return snap
}

// CheckAvailablePolicy applies the configured stance on negative available
// funds. With AllowNegativeAvailable set (the default) over-reservation is an
// accepted transient state and this always passes.
func (e *Engine) CheckAvailablePolicy(snap Snapshot) error {
	if e.cfg.AllowNegativeAvailable {
		return nil
	}
	if snap.Available.IsNegative() {
		return fmt.Errorf("available %s below zero: %w", snap.Available.String(), ErrExposureExceedsCapital)
	}
	return nil
}
