package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradementor/capitalengine/internal/models"
)

const riskLevelsSQL = `SELECT COALESCE\(target_price, 0\), COALESCE\(stop_loss, 0\) FROM trades`

func riskLevelRows(target, stop string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"target_price", "stop_loss"}).
		AddRow(decimal.RequireFromString(target), decimal.RequireFromString(stop))
}

func settlementRequest() SettlementRequest {
	return SettlementRequest{
		TradeID:         "trade-1",
		UserID:          "user-1",
		EntryPrice:      dec("2400"),
		ExitPrice:       dec("2500"),
		PositionPercent: dec("5"),
	}
}

func TestSettleTradeClosure_AppliesPnLOnce(t *testing.T) {
	e, mock := newMockEngine(t, fullProfile())

	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnRows(capitalRows("100000", "95000"))
	mock.ExpectQuery(riskLevelsSQL).
		WithArgs("trade-1", "user-1").
		WillReturnRows(riskLevelRows("2500", "2350"))

	mock.ExpectBegin()
	// invested = 5000, qty = round(5000/2400) = 2, pnl = 100 * 2 = 200.
	mock.ExpectExec(`UPDATE trades SET exit_price = \$1, outcome = \$2, closed_at = \$3, pnl = \$4, pl_percent = \$5 WHERE id = \$6 AND user_id = \$7 AND exit_price IS NULL`).
		WithArgs(dec("2500"), models.OutcomeTargetHit, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "trade-1", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users SET total_capital = COALESCE\(total_capital, 0\) \+ \$1, available_funds = COALESCE\(available_funds, 0\) \+ \$2 WHERE id = \$3`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	res, err := e.SettleTradeClosure(context.Background(), settlementRequest())
	require.NoError(t, err)

	assert.True(t, res.PnL.Equal(dec("200")), "pnl = %s", res.PnL)
	assert.Equal(t, models.OutcomeTargetHit, res.Outcome)
	assert.True(t, res.Quantity.Equal(dec("2")))
	require.True(t, res.PLPercent.Valid)
	assert.True(t, res.PLPercent.Value.Equal(dec("4")), "pl pct = %s", res.PLPercent)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleTradeClosure_ConflictIsRejected(t *testing.T) {
	e, mock := newMockEngine(t, fullProfile())

	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnRows(capitalRows("100000", "95000"))
	mock.ExpectQuery(riskLevelsSQL).
		WithArgs("trade-1", "user-1").
		WillReturnRows(riskLevelRows("2500", "2350"))

	mock.ExpectBegin()
	// The exit_price IS NULL guard matches nothing: already settled.
	mock.ExpectExec(`UPDATE trades SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "trade-1", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := e.SettleTradeClosure(context.Background(), settlementRequest())
	require.ErrorIs(t, err, ErrSettlementConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleTradeClosure_StorageFailure(t *testing.T) {
	e, mock := newMockEngine(t, fullProfile())

	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnRows(capitalRows("100000", "95000"))
	mock.ExpectQuery(riskLevelsSQL).
		WithArgs("trade-1", "user-1").
		WillReturnRows(riskLevelRows("2500", "2350"))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trades SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "trade-1", "user-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := e.SettleTradeClosure(context.Background(), settlementRequest())
	require.ErrorIs(t, err, ErrStorageUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleTradeClosure_RequiresExitPriceColumn(t *testing.T) {
	profile := fullProfile()
	profile.ExitPrice = false
	e, mock := newMockEngine(t, profile)

	_, err := e.SettleTradeClosure(context.Background(), settlementRequest())
	require.ErrorIs(t, err, ErrSchemaAbsent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleTradeClosure_RejectsNonPositiveExit(t *testing.T) {
	e, _ := newMockEngine(t, fullProfile())

	req := settlementRequest()
	req.ExitPrice = decimal.Zero

	_, err := e.SettleTradeClosure(context.Background(), req)
	require.ErrorIs(t, err, ErrUndefined)
}

func TestSettleTradeClosure_RejectsNonPositiveEntry(t *testing.T) {
	e, mock := newMockEngine(t, fullProfile())

	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnRows(capitalRows("100000", "95000"))

	req := settlementRequest()
	req.EntryPrice = decimal.Zero

	_, err := e.SettleTradeClosure(context.Background(), req)
	require.ErrorIs(t, err, ErrUndefined)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyOutcome(t *testing.T) {
	tol := dec("0.10")

	tests := []struct {
		name   string
		exit   string
		target string
		stop   string
		want   string
	}{
		{"exit at target", "2500", "2500", "2350", models.OutcomeTargetHit},
		{"boundary inclusive", "2250", "2500", "0", models.OutcomeTargetHit},
		{"just under the band", "2249.99", "2500", "0", models.OutcomeManualClose},
		{"stop hit", "2300", "0", "2350", models.OutcomeStopLossHit},
		{"stop band inclusive", "2585", "0", "2350", models.OutcomeStopLossHit},
		{"between the bands", "2400", "3000", "1000", models.OutcomeManualClose},
		{"no levels set", "2400", "0", "0", models.OutcomeManualClose},
		{"target checked before stop", "2250", "2500", "2350", models.OutcomeTargetHit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyOutcome(dec(tt.exit), dec(tt.target), dec(tt.stop), tol)
			assert.Equal(t, tt.want, got)
		})
	}
}
