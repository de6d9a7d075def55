package handlers

import (
	"fmt"
	"log/slog"

	"github.com/tetuya0525/dialogue-index-builder/internal/services"

	"github.com/gofiber/fiber/v2"
)

// IndexHandler handles dialogue index rebuild requests
type IndexHandler struct {
	builder *services.IndexBuilderService
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(builder *services.IndexBuilderService) *IndexHandler {
	return &IndexHandler{builder: builder}
}

// rebuildRequest is the optional request body. An empty body means the default
// full rebuild over every available log.
type rebuildRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HandleRebuild runs the full pipeline synchronously and reports the number of
// days indexed. Internal detail never leaks into the error response body.
func (h *IndexHandler) HandleRebuild(c *fiber.Ctx) error {
	opts := services.RebuildOptions{Trigger: "http"}

	if len(c.Body()) > 0 {
		var req rebuildRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status":  "error",
				"message": "invalid request body",
			})
		}
		opts.From = req.From
		opts.To = req.To
	}

	if err := opts.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
		})
	}

	report, err := h.builder.Rebuild(c.Context(), opts)
	if err != nil {
		slog.Error("index rebuild failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal Server Error",
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": fmt.Sprintf("%d日分のインデックスを更新しました。", report.DaysIndexed),
	})
}

// HandleStatus returns the most recent rebuild run report
func (h *IndexHandler) HandleStatus(c *fiber.Ctx) error {
	report, ok := h.builder.LastReport()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "no rebuild run has completed yet",
		})
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"report": report,
	})
}
