package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradementor/capitalengine/internal/cache"
	"github.com/tradementor/capitalengine/internal/database"
	"github.com/tradementor/capitalengine/internal/engine"
	"github.com/tradementor/capitalengine/internal/logging"
	"github.com/tradementor/capitalengine/internal/models"
)

// TradesHandler owns the trade entry, preview, closure, and deletion flows.
type TradesHandler struct {
	engine *engine.Engine
	trades *database.TradeRepository
	cache  *cache.SnapshotCache
	log    *logging.StandardLogger
}

func NewTradesHandler(eng *engine.Engine, trades *database.TradeRepository, snapshots *cache.SnapshotCache, log *logging.StandardLogger) *TradesHandler {
	return &TradesHandler{
		engine: eng,
		trades: trades,
		cache:  snapshots,
		log:    log.WithComponent("trades_handler"),
	}
}

type createTradeRequest struct {
	Symbol          string              `json:"symbol" binding:"required"`
	EntryPrice      decimal.Decimal     `json:"entry_price" binding:"required"`
	StopLoss        decimal.NullDecimal `json:"stop_loss"`
	TargetPrice     decimal.NullDecimal `json:"target_price"`
	PositionPercent decimal.Decimal     `json:"position_percent" binding:"required"`
}

func (r *createTradeRequest) validate() string {
	if !r.EntryPrice.IsPositive() {
		return "entry_price must be positive"
	}
	if r.PositionPercent.IsNegative() || r.PositionPercent.GreaterThan(decimal.NewFromInt(100)) {
		return "position_percent must be between 0 and 100"
	}
	if r.StopLoss.Valid && !r.StopLoss.Decimal.IsPositive() {
		return "stop_loss must be positive when set"
	}
	if r.TargetPrice.Valid && !r.TargetPrice.Decimal.IsPositive() {
		return "target_price must be positive when set"
	}
	return ""
}

func (r *createTradeRequest) toTrade(userID string) models.Trade {
	return models.Trade{
		ID:              uuid.New().String(),
		UserID:          userID,
		Symbol:          r.Symbol,
		EntryPrice:      r.EntryPrice,
		StopLoss:        r.StopLoss,
		TargetPrice:     r.TargetPrice,
		PositionPercent: r.PositionPercent,
		Outcome:         models.OutcomeOpen,
	}
}

type tradePreview struct {
	Metrics         engine.DerivedMetrics `json:"metrics"`
	AvailableBefore decimal.Decimal       `json:"available_before"`
	AvailableAfter  decimal.Decimal       `json:"available_after"`
}

func (h *TradesHandler) preview(c *gin.Context, userID string, req *createTradeRequest) (*tradePreview, bool) {
	ctx := c.Request.Context()

	snap := h.engine.Reconcile(ctx, userID)
	metrics := engine.TradeMetrics(req.toTrade(userID), snap.TotalCapital)

	after := engine.Snapshot{
		Available: snap.Available.Sub(metrics.AmountInvested.Value),
	}
	if err := h.engine.CheckAvailablePolicy(after); err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse("trade would exceed available funds"))
		return nil, false
	}

	return &tradePreview{
		Metrics:         metrics,
		AvailableBefore: snap.Available,
		AvailableAfter:  after.Available,
	}, true
}

// PreviewTrade handles POST /users/:user_id/trades/preview. It returns the
// derived metrics and post-reservation availability without persisting.
func (h *TradesHandler) PreviewTrade(c *gin.Context) {
	var req createTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request body: "+err.Error()))
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, errorResponse(msg))
		return
	}

	preview, ok := h.preview(c, c.Param("user_id"), &req)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, successResponse(preview))
}

// CreateTrade handles POST /users/:user_id/trades.
func (h *TradesHandler) CreateTrade(c *gin.Context) {
	userID := c.Param("user_id")

	var req createTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request body: "+err.Error()))
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, errorResponse(msg))
		return
	}

	preview, ok := h.preview(c, userID, &req)
	if !ok {
		return
	}

	trade := req.toTrade(userID)
	if err := h.trades.Create(c.Request.Context(), &trade); err != nil {
		h.log.WithError(err).WithUserID(userID).Error("trade creation failed")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to create trade"))
		return
	}

	h.cache.Invalidate(c.Request.Context(), userID)

	c.JSON(http.StatusCreated, successResponse(gin.H{
		"trade":   trade,
		"preview": preview,
	}))
}

type closeTradeRequest struct {
	ExitPrice decimal.Decimal `json:"exit_price" binding:"required"`
}

// CloseTrade handles POST /users/:user_id/trades/:trade_id/close. Settlement
// runs only on the open-to-closed transition; closing an already settled
// trade is rejected with a conflict.
func (h *TradesHandler) CloseTrade(c *gin.Context) {
	userID := c.Param("user_id")
	tradeID := c.Param("trade_id")
	ctx := c.Request.Context()

	var req closeTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid request body: "+err.Error()))
		return
	}

	trade, err := h.trades.GetByID(ctx, tradeID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse("trade not found"))
		return
	}
	if trade.IsDeleted() {
		c.JSON(http.StatusConflict, errorResponse("trade is deleted"))
		return
	}

	result, err := h.engine.SettleTradeClosure(ctx, engine.SettlementRequest{
		TradeID:         tradeID,
		UserID:          userID,
		EntryPrice:      trade.EntryPrice,
		ExitPrice:       req.ExitPrice,
		PositionPercent: trade.PositionPercent,
	})
	switch {
	case errors.Is(err, engine.ErrSettlementConflict):
		c.JSON(http.StatusConflict, errorResponse("trade is already settled"))
		return
	case errors.Is(err, engine.ErrUndefined):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	case err != nil:
		h.log.WithError(err).WithUserID(userID).Error("settlement failed")
		c.JSON(http.StatusInternalServerError, errorResponse("settlement failed"))
		return
	}

	h.cache.Invalidate(ctx, userID)

	c.JSON(http.StatusOK, successResponse(result))
}

// DeleteTrade handles DELETE /users/:user_id/trades/:trade_id. Deletion is
// always soft; the row stays for auditability but stops contributing to
// exposure and risk.
func (h *TradesHandler) DeleteTrade(c *gin.Context) {
	userID := c.Param("user_id")
	tradeID := c.Param("trade_id")
	ctx := c.Request.Context()

	deleted, err := h.trades.SoftDelete(ctx, tradeID, userID)
	if err != nil {
		h.log.WithError(err).WithUserID(userID).Error("trade deletion failed")
		c.JSON(http.StatusInternalServerError, errorResponse("failed to delete trade"))
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, errorResponse("trade not found"))
		return
	}

	h.cache.Invalidate(ctx, userID)

	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": true}))
}
