package engine

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestSweeper_Run(t *testing.T) {
	e, mock := newMockEngine(t, fullProfile())
	s := NewSweeper(e, testLogger())

	mock.ExpectQuery(`SELECT DISTINCT user_id FROM trades`).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow("user-1"))

	// Reconcile for the single user: in sync, nothing to heal.
	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnRows(capitalRows("100000", "92500"))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(position_percent\), 0\) FROM trades`).
		WithArgs("user-1").
		WillReturnRows(sumRows("7.5"))

	s.Run(context.Background())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSweeper_Run_NoTradesTable(t *testing.T) {
	e, mock := newMockEngine(t, Profile{UsersTable: true})
	s := NewSweeper(e, testLogger())

	s.Run(context.Background())

	require.NoError(t, mock.ExpectationsWereMet())
}
