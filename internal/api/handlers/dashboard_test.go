package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradementor/capitalengine/internal/database"
	"github.com/tradementor/capitalengine/internal/engine"
	"github.com/tradementor/capitalengine/internal/logging"
	"github.com/tradementor/capitalengine/internal/models"
	"go.uber.org/zap"
)

const (
	capitalSelectSQL = `SELECT COALESCE\(total_capital, 0\), COALESCE\(available_funds, 0\) FROM users`
	percentSumSQL    = `SELECT COALESCE\(SUM\(position_percent\), 0\) FROM trades`
)

func testProfile() engine.Profile {
	return engine.Profile{
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

// newHandlerMocks builds an engine and repository over a shared pgxmock pool.
func newHandlerMocks(t *testing.T) (*engine.Engine, *database.TradeRepository, pgxmock.PgxPoolIface, *logging.StandardLogger) {
	return newHandlerMocksWithConfig(t, engine.DefaultConfig())
}

func newHandlerMocksWithConfig(t *testing.T, cfg engine.Config) (*engine.Engine, *database.TradeRepository, pgxmock.PgxPoolIface, *logging.StandardLogger) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	pool := database.NewMockDBPool(mock)
	log := logging.NewTestLogger(zap.NewNop())
	eng := engine.New(pool, testProfile(), cfg, log)

	return eng, database.NewTradeRepository(pool, testProfile().TradeColumns()), mock, log
}

func closeMock(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	require.NoError(t, mock.ExpectationsWereMet(), "mock expectations were not met")
}

func capitalRows(total, available string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"total_capital", "available_funds"}).
		AddRow(decimal.RequireFromString(total), decimal.RequireFromString(available))
}

func sumRow(value string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"sum"}).AddRow(decimal.RequireFromString(value))
}

func openTradeRow(id string) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows([]string{
		"id", "user_id", "symbol", "entry_price", "stop_loss", "target_price", "exit_price",
		"position_percent", "outcome", "closed_at", "deleted_at", "pnl", "pl_percent",
		"created_at", "updated_at",
	}).AddRow(
		id, "user-1", "RELIANCE",
		decimal.RequireFromString("2400"),
		decimal.NewNullDecimal(decimal.RequireFromString("2350")),
		decimal.NewNullDecimal(decimal.RequireFromString("2500")),
		decimal.NullDecimal{},
		decimal.RequireFromString("5"),
		models.OutcomeOpen,
		(*time.Time)(nil), (*time.Time)(nil),
		decimal.NullDecimal{}, decimal.NullDecimal{},
		now, now,
	)
}

func TestGetDashboard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	eng, repo, mock, log := newHandlerMocks(t)
	defer closeMock(t, mock)

	h := NewDashboardHandler(eng, repo, nil, log)
	r := gin.New()
	r.GET("/users/:user_id/dashboard", h.GetDashboard)

	// Persisted available agrees with total minus reserve: no heal expected.
	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnRows(capitalRows("100000", "92500"))
	mock.ExpectQuery(percentSumSQL).
		WithArgs("user-1").
		WillReturnRows(sumRow("7.5"))
	mock.ExpectQuery(`FROM trades\s+WHERE user_id = \$1 AND deleted_at IS NULL`).
		WithArgs("user-1").
		WillReturnRows(openTradeRow("trade-1"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/user-1/dashboard", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Snapshot struct {
				TotalCapital decimal.Decimal `json:"total_capital"`
				Reserved     decimal.Decimal `json:"reserved"`
				Available    decimal.Decimal `json:"available"`
			} `json:"snapshot"`
			Trades []struct {
				ID      string `json:"id"`
				Metrics struct {
					AmountInvested decimal.Decimal `json:"amount_invested"`
				} `json:"metrics"`
			} `json:"trades"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "success", resp.Status)
	assert.True(t, resp.Data.Snapshot.TotalCapital.Equal(decimal.NewFromInt(100000)))
	assert.True(t, resp.Data.Snapshot.Reserved.Equal(decimal.NewFromInt(7500)))
	assert.True(t, resp.Data.Snapshot.Available.Equal(decimal.NewFromInt(92500)))

	require.Len(t, resp.Data.Trades, 1)
	assert.Equal(t, "trade-1", resp.Data.Trades[0].ID)
	assert.True(t, resp.Data.Trades[0].Metrics.AmountInvested.Equal(decimal.NewFromInt(5000)))
}

func TestGetDashboard_ListFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	eng, repo, mock, log := newHandlerMocks(t)
	defer closeMock(t, mock)

	h := NewDashboardHandler(eng, repo, nil, log)
	r := gin.New()
	r.GET("/users/:user_id/dashboard", h.GetDashboard)

	mock.ExpectQuery(capitalSelectSQL).
		WithArgs("user-1").
		WillReturnRows(capitalRows("100000", "100000"))
	mock.ExpectQuery(percentSumSQL).
		WithArgs("user-1").
		WillReturnRows(sumRow("0"))
	mock.ExpectQuery(`FROM trades\s+WHERE user_id = \$1 AND deleted_at IS NULL`).
		WithArgs("user-1").
		WillReturnError(assert.AnError)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users/user-1/dashboard", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to load trades")
}
