package handlers

import (
	"context"
	"time"

	"github.com/tetuya0525/dialogue-index-builder/internal/database"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	mongo     *database.MongoDB
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(mongo *database.MongoDB) *HealthHandler {
	return &HealthHandler{mongo: mongo, startedAt: time.Now()}
}

// Handle responds with server health status including store reachability
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	storeStatus := "healthy"
	status := "healthy"
	if err := h.mongo.Ping(ctx); err != nil {
		storeStatus = "unreachable"
		status = "degraded"
	}

	code := fiber.StatusOK
	if status != "healthy" {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"store":     storeStatus,
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
