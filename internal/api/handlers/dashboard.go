package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradementor/capitalengine/internal/cache"
	"github.com/tradementor/capitalengine/internal/database"
	"github.com/tradementor/capitalengine/internal/engine"
	"github.com/tradementor/capitalengine/internal/logging"
	"github.com/tradementor/capitalengine/internal/models"
)

// DashboardHandler serves the reconciled capital snapshot and the trade
// table with derived metrics. Every number it returns comes from the engine;
// no formula lives here.
type DashboardHandler struct {
	engine *engine.Engine
	trades *database.TradeRepository
	cache  *cache.SnapshotCache
	log    *logging.StandardLogger
}

func NewDashboardHandler(eng *engine.Engine, trades *database.TradeRepository, snapshots *cache.SnapshotCache, log *logging.StandardLogger) *DashboardHandler {
	return &DashboardHandler{
		engine: eng,
		trades: trades,
		cache:  snapshots,
		log:    log.WithComponent("dashboard_handler"),
	}
}

// tradeView is one rendered trade row: the persisted fields plus the derived
// metrics the table shows.
type tradeView struct {
	models.Trade
	Metrics engine.DerivedMetrics `json:"metrics"`
}

type dashboardView struct {
	Snapshot   engine.Snapshot         `json:"snapshot"`
	Trades     []tradeView             `json:"trades"`
	Aggregates engine.AggregateMetrics `json:"aggregates"`
}

// GetDashboard handles GET /users/:user_id/dashboard.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	userID := c.Param("user_id")
	ctx := c.Request.Context()

	snap, cached := h.cache.Get(ctx, userID)
	if !cached {
		snap = h.engine.Reconcile(ctx, userID)
		h.cache.Set(ctx, snap)
	}

	trades, err := h.trades.ListByUser(ctx, userID)
	if err != nil {
		h.log.WithError(err).WithUserID(userID).Error("trade listing failed")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to load trades"))
		return
	}

	views := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, tradeView{
			Trade:   t,
			Metrics: engine.TradeMetrics(t, snap.TotalCapital),
		})
	}

	c.JSON(http.StatusOK, successResponse(dashboardView{
		Snapshot:   snap,
		Trades:     views,
		Aggregates: engine.Aggregates(trades, snap.TotalCapital),
	}))
}
