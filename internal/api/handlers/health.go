package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/tradementor/capitalengine/internal/cache"
)

// DatabaseHealthChecker verifies the primary store connection.
type DatabaseHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db        DatabaseHealthChecker
	redis     *redis.Client
	snapshots *cache.SnapshotCache
}

// HealthResponse represents the health status response.
type HealthResponse struct {
	// Status is the overall system status ("healthy", "degraded").
	Status string `json:"status"`
	// Timestamp is the check time.
	Timestamp time.Time `json:"timestamp"`
	// Services contains status of individual services.
	Services map[string]string `json:"services"`
	// Version is the application version.
	Version string `json:"version"`
	// Uptime is the service uptime.
	Uptime string `json:"uptime"`
	// System contains host resource usage.
	System SystemStats `json:"system"`
	// CacheStats contains snapshot cache hit counters if available.
	CacheStats *CacheStats `json:"cache_stats,omitempty"`
}

// CacheStats reports snapshot cache hit counters.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// SystemStats contains host resource usage.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

func NewHealthHandler(db DatabaseHealthChecker, redis *redis.Client, snapshots *cache.SnapshotCache) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redis,
		snapshots: snapshots,
	}
}

// Global start time for uptime calculation
var startTime = time.Now()

// HealthCheck performs a system health check covering the database, the
// snapshot cache, and host resource usage. The database is the only
// critical dependency; a missing cache degrades the status but keeps 200.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	span := sentry.StartSpan(ctx, "health_check")
	defer span.Finish()
	ctx = span.Context()

	servicesStatus := make(map[string]string)
	criticalUnhealthy := false

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			servicesStatus["database"] = "unhealthy: " + err.Error()
			criticalUnhealthy = true
			sentry.CaptureException(err)
		} else {
			servicesStatus["database"] = "healthy"
		}
	} else {
		servicesStatus["database"] = "unhealthy: not configured"
		criticalUnhealthy = true
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			servicesStatus["redis"] = "unhealthy: " + err.Error()
		} else {
			servicesStatus["redis"] = "healthy"
		}
	} else {
		servicesStatus["redis"] = "not configured"
	}

	status := "healthy"
	for _, s := range servicesStatus {
		if s != "healthy" && s != "not configured" {
			status = "degraded"
		}
	}
	span.SetTag("overall.status", status)

	var cacheStats *CacheStats
	if h.snapshots != nil {
		hits, misses := h.snapshots.Stats()
		cacheStats = &CacheStats{Hits: hits, Misses: misses}
	}

	response := HealthResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Services:   servicesStatus,
		Version:    os.Getenv("APP_VERSION"),
		Uptime:     time.Since(startTime).String(),
		System:     collectSystemStats(),
		CacheStats: cacheStats,
	}

	code := http.StatusOK
	if criticalUnhealthy {
		code = http.StatusServiceUnavailable
		span.Status = sentry.SpanStatusUnavailable
	} else {
		span.Status = sentry.SpanStatusOK
	}
	c.JSON(code, response)
}

// LivenessCheck confirms the process is responsive.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func collectSystemStats() SystemStats {
	stats := SystemStats{}

	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err == nil {
		stats.MemoryPercent = memStat.UsedPercent
	}

	return stats
}
