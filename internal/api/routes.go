package api

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tradementor/capitalengine/internal/api/handlers"
	"github.com/tradementor/capitalengine/internal/cache"
	"github.com/tradementor/capitalengine/internal/database"
	"github.com/tradementor/capitalengine/internal/engine"
	"github.com/tradementor/capitalengine/internal/logging"
)

// SetupRoutes configures all HTTP routes and injects handler dependencies.
//
// Parameters:
//
//	router: The Gin engine instance to register routes on.
//	db: The database connection wrapper.
//	redisClient: Optional Redis client for snapshot caching (nil disables caching).
//	eng: The capital and risk engine.
//	snapshots: Snapshot cache built over redisClient.
//	log: Structured logger.
func SetupRoutes(router *gin.Engine, db database.Database, redisClient *redis.Client, eng *engine.Engine, snapshots *cache.SnapshotCache, log *logging.StandardLogger) {
	trades := database.NewTradeRepository(db, eng.Profile().TradeColumns())

	healthHandler := handlers.NewHealthHandler(db, redisClient, snapshots)
	dashboardHandler := handlers.NewDashboardHandler(eng, trades, snapshots, log)
	tradesHandler := handlers.NewTradesHandler(eng, trades, snapshots, log)

	router.GET("/health", healthHandler.HealthCheck)
	router.HEAD("/health", healthHandler.HealthCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	v1 := router.Group("/api/v1")
	{
		users := v1.Group("/users/:user_id")
		{
			users.GET("/dashboard", dashboardHandler.GetDashboard)

			users.POST("/trades", tradesHandler.CreateTrade)
			users.POST("/trades/preview", tradesHandler.PreviewTrade)
			users.POST("/trades/:trade_id/close", tradesHandler.CloseTrade)
			users.DELETE("/trades/:trade_id", tradesHandler.DeleteTrade)
		}
	}
}
