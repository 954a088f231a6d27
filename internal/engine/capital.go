package engine

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tradementor/capitalengine/internal/models"
)

// ResolveCapital determines the user's authoritative total capital and
// available-funds baseline, reading whichever capital columns this
// deployment has. A user with no positive capital anywhere is initialized to
// the default capital, written through to storage. The returned total is
// always strictly positive.
//
// This is the only place default capital is ever assigned.
func (e *Engine) ResolveCapital(ctx context.Context, userID string) models.UserCapital {
	total := decimal.Zero
	available := decimal.Zero

	var cols []string
	var dests []any
	if e.profile.TotalCapital {
		cols = append(cols, "COALESCE(total_capital, 0)")
		dests = append(dests, &total)
	}
	if e.profile.AvailableFunds {
		cols = append(cols, "COALESCE(available_funds, 0)")
		dests = append(dests, &available)
	}

	rowFound := false
	if len(cols) > 0 && e.profile.UsersTable {
		query := "SELECT " + strings.Join(cols, ", ") + " FROM users WHERE id = $1"
		err := e.pool.QueryRow(ctx, query, userID).Scan(dests...)
		switch {
		case err == nil:
			rowFound = true
		case isNoRows(err):
			// Missing row reads as zero capital.
		default:
			e.log.WithError(err).WithUserID(userID).Warn("capital read failed, falling back to default capital")
			total = decimal.Zero
			available = decimal.Zero
		}
	}

	// Uninitialized user: assign default capital and write it through so
	// every later read agrees.
	if !total.IsPositive() && !available.IsPositive() {
		uc := models.UserCapital{
			UserID:         userID,
			TotalCapital:   e.cfg.DefaultCapital,
			AvailableFunds: e.cfg.DefaultCapital,
		}
		if rowFound {
			e.persistCapital(ctx, uc)
		}
		return uc
	}

	if !total.IsPositive() {
		total = available
	}
	if !e.profile.AvailableFunds {
		available = total
	}

	return models.UserCapital{
		UserID:         userID,
		TotalCapital:   total,
		AvailableFunds: available,
	}
}

// persistCapital writes both capital figures back, skipping columns the
// schema does not have.
func (e *Engine) persistCapital(ctx context.Context, uc models.UserCapital) {
	var sets []string
	var args []any
	if e.profile.TotalCapital {
		sets = append(sets, "total_capital = "+placeholder(len(args)+1))
		args = append(args, uc.TotalCapital)
	}
	if e.profile.AvailableFunds {
		sets = append(sets, "available_funds = "+placeholder(len(args)+1))
		args = append(args, uc.AvailableFunds)
	}
	if len(sets) == 0 {
		return
	}

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = " + placeholder(len(args)+1)
	args = append(args, uc.UserID)

	if _, err := e.pool.Exec(ctx, query, args...); err != nil {
		e.log.WithError(err).WithUserID(uc.UserID).Warn("capital write-through failed")
	}
}
