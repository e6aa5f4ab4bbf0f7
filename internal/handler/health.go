package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	amqpConn    *amqp.Connection
}

func NewHealthHandler(dbPool *pgxpool.Pool, redisClient *redis.Client, amqpConn *amqp.Connection) *HealthHandler {
	return &HealthHandler{dbPool: dbPool, redisClient: redisClient, amqpConn: amqpConn}
}

// Healthz reports process liveness only; no dependency is consulted.
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "up"})
}

// Readyz checks every dependency and reports each one, so a partial outage
// shows exactly which component is down rather than only the first failure.
func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()

	components := gin.H{"postgres": "up", "redis": "up", "rabbitmq": "up"}
	ready := true

	if err := h.dbPool.Ping(ctx); err != nil {
		components["postgres"] = "down"
		ready = false
	}
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		components["redis"] = "down"
		ready = false
	}
	if h.amqpConn.IsClosed() {
		components["rabbitmq"] = "down"
		ready = false
	}

	status := http.StatusOK
	overall := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		overall = "not_ready"
	}
	c.JSON(status, gin.H{"status": overall, "components": components})
}
