package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradementor/capitalengine/internal/database"
)

func fullProfile() Profile {
	return Profile{
		UsersTable:     true,
		TradesTable:    true,
		TotalCapital:   true,
		AvailableFunds: true,
		EntryPrice:     true,
		StopLoss:       true,
		TargetPrice:    true,
		ExitPrice:      true,
		Outcome:        true,
		ClosedAt:       true,
		DeletedAt:      true,
		PnL:            true,
		PLPercent:      true,
		PercentColumn:  "position_percent",
	}
}

func newMockEngine(t *testing.T, profile Profile) (*Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	e := New(database.NewMockDBPool(mock), profile, DefaultConfig(), testLogger())
	return e, mock
}

const capitalSelectSQL = `SELECT COALESCE\(total_capital, 0\), COALESCE\(available_funds, 0\) FROM users`

func capitalRows(total, available string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"total_capital", "available_funds"}).
		AddRow(decimal.RequireFromString(total), decimal.RequireFromString(available))
}

func TestResolveCapital_DefaultInitialization(t *testing.T) {
	e, mock := newMockEngine(t, fullProfile())

	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnRows(capitalRows("0", "0"))
	mock.ExpectExec(`UPDATE users SET total_capital = \$1, available_funds = \$2 WHERE id = \$3`).
		WithArgs(decimal.NewFromInt(100000), decimal.NewFromInt(100000), "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	uc := e.ResolveCapital(context.Background(), "user-1")

	assert.True(t, uc.TotalCapital.Equal(dec("100000")))
	assert.True(t, uc.AvailableFunds.Equal(dec("100000")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCapital_TotalWins(t *testing.T) {
	e, mock := newMockEngine(t, fullProfile())

	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnRows(capitalRows("250000", "180000"))

	uc := e.ResolveCapital(context.Background(), "user-1")

	assert.True(t, uc.TotalCapital.Equal(dec("250000")))
	assert.True(t, uc.AvailableFunds.Equal(dec("180000")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCapital_FallsBackToAvailable(t *testing.T) {
	e, mock := newMockEngine(t, fullProfile())

	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnRows(capitalRows("0", "75000"))

	uc := e.ResolveCapital(context.Background(), "user-1")

	assert.True(t, uc.TotalCapital.Equal(dec("75000")))
	assert.True(t, uc.AvailableFunds.Equal(dec("75000")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCapital_MissingAvailableColumn(t *testing.T) {
	profile := fullProfile()
	profile.AvailableFunds = false
	e, mock := newMockEngine(t, profile)

	mock.ExpectQuery(`SELECT COALESCE\(total_capital, 0\) FROM users`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"total_capital"}).AddRow(decimal.RequireFromString("60000")))

	uc := e.ResolveCapital(context.Background(), "user-1")

	assert.True(t, uc.TotalCapital.Equal(dec("60000")))
	assert.True(t, uc.AvailableFunds.Equal(dec("60000")), "available falls back to total")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCapital_NoCapitalColumns(t *testing.T) {
	profile := fullProfile()
	profile.TotalCapital = false
	profile.AvailableFunds = false
	e, mock := newMockEngine(t, profile)

	// No query, no write-through: nothing to read or persist.
	uc := e.ResolveCapital(context.Background(), "user-1")

	assert.True(t, uc.TotalCapital.Equal(dec("100000")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCapital_StorageFailure(t *testing.T) {
	e, mock := newMockEngine(t, fullProfile())

	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnError(errors.New("connection reset"))

	uc := e.ResolveCapital(context.Background(), "user-1")

	// Falls back to default capital without a write-through: the row state
	// is unknown.
	assert.True(t, uc.TotalCapital.Equal(dec("100000")))
	assert.True(t, uc.AvailableFunds.Equal(dec("100000")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCapital_MissingRow(t *testing.T) {
	e, mock := newMockEngine(t, fullProfile())

	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	uc := e.ResolveCapital(context.Background(), "ghost")

	assert.True(t, uc.TotalCapital.Equal(dec("100000")))
	require.NoError(t, mock.ExpectationsWereMet())
}
