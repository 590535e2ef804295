package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dashgen/backend/internal/analysis"
	"github.com/dashgen/backend/internal/chat"
	"github.com/dashgen/backend/pkg/logger"
)

type ChatHandler struct {
	engine *chat.Engine
}

func NewChatHandler(engine *chat.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

func (h *ChatHandler) HandleQuery(c *fiber.Ctx) error {
	jobID := c.Params("id")

	var req struct {
		Question string `json:"question"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	answer, err := h.engine.Query(c.Context(), jobID, req.Question)
	if err != nil {
		if errors.Is(err, analysis.ErrNotReady) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Analysis is not completed yet",
			})
		}
		logger.Error("Failed to answer chat query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	return c.JSON(fiber.Map{
		"job_id":   answer.JobID,
		"question": answer.Question,
		"answer":   answer.Answer,
		"cached":   answer.Cached,
	})
}
