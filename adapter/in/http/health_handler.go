// Package http exposes the pipeline's operational endpoints.
package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"mailgate_server/adapter/in/worker"
)

// MetricsSource reports worker pool counters.
type MetricsSource interface {
	GetMetrics() worker.PoolMetrics
}

// HealthHandler serves liveness, readiness and pool metrics.
type HealthHandler struct {
	db      *sqlx.DB
	redis   *redis.Client
	metrics MetricsSource
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client, metrics MetricsSource) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redisClient,
		metrics: metrics,
	}
}

// Register mounts the endpoints on the app.
func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/metrics", h.Metrics)
}

// Health reports process liveness.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready reports whether the backing stores answer.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["postgres"] = "healthy"
		}
	} else {
		checks["postgres"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Metrics reports worker pool counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	if h.metrics == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "metrics not configured",
		})
	}

	m := h.metrics.GetMetrics()
	return c.JSON(fiber.Map{
		"jobs_processed":      m.JobsProcessed,
		"jobs_failed":         m.JobsFailed,
		"jobs_retried":        m.JobsRetried,
		"avg_process_time_ms": m.AvgProcessTime,
		"queue_size":          m.QueueSize,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
	})
}
