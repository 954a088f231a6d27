package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trade outcome states. A trade starts OPEN and moves to exactly one of the
// closed outcomes when an exit price is recorded. Soft deletion is orthogonal.
const (
	OutcomeOpen        = "OPEN"
	OutcomeTargetHit   = "TARGET_HIT"
	OutcomeStopLossHit = "SL_HIT"
	OutcomeManualClose = "MANUAL_CLOSE"
)

// Trade is a single position in a user's journal.
type Trade struct {
	ID              string              `json:"id" db:"id"`
	UserID          string              `json:"user_id" db:"user_id"`
	Symbol          string              `json:"symbol" db:"symbol"`
	EntryPrice      decimal.Decimal     `json:"entry_price" db:"entry_price"`
	StopLoss        decimal.NullDecimal `json:"stop_loss" db:"stop_loss"`
	TargetPrice     decimal.NullDecimal `json:"target_price" db:"target_price"`
	ExitPrice       decimal.NullDecimal `json:"exit_price" db:"exit_price"`
	PositionPercent decimal.Decimal     `json:"position_percent" db:"position_percent"`
	Outcome         string              `json:"outcome" db:"outcome"`
	ClosedAt        *time.Time          `json:"closed_at" db:"closed_at"`
	DeletedAt       *time.Time          `json:"deleted_at" db:"deleted_at"`
	PnL             decimal.NullDecimal `json:"pnl" db:"pnl"`
	PLPercent       decimal.NullDecimal `json:"pl_percent" db:"pl_percent"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// IsClosedOutcome reports whether the outcome string marks a closed trade.
// Comparison is case-insensitive; empty means OPEN.
func IsClosedOutcome(outcome string) bool {
	switch strings.ToUpper(strings.TrimSpace(outcome)) {
	case OutcomeTargetHit, OutcomeStopLossHit, OutcomeManualClose:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the trade still reserves capital. A trade counts as
// open when any present signal says so: a non-closed outcome or a missing
// closed timestamp. The signals match the SQL open predicate the exposure
// queries use, so the in-memory and in-database views of "open" agree.
func (t *Trade) IsOpen() bool {
	return !IsClosedOutcome(t.Outcome) || t.ClosedAt == nil
}

// IsDeleted reports whether the trade has been soft-deleted.
func (t *Trade) IsDeleted() bool {
	return t.DeletedAt != nil
}

// UserCapital is the capital row owned by a user. AvailableFunds may drift
// from TotalCapital minus reserved exposure between reconciliations and may
// go negative transiently.
type UserCapital struct {
	UserID         string          `json:"user_id" db:"user_id"`
	TotalCapital   decimal.Decimal `json:"total_capital" db:"total_capital"`
	AvailableFunds decimal.Decimal `json:"available_funds" db:"available_funds"`
}
