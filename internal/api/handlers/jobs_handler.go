package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dashgen/backend/internal/analysis"
	"github.com/dashgen/backend/internal/cache/redis"
	"github.com/dashgen/backend/internal/jobs"
	"github.com/dashgen/backend/pkg/logger"
)

type JobsHandler struct {
	manager *jobs.Manager
	cache   *redis.Client
}

func NewJobsHandler(manager *jobs.Manager, cache *redis.Client) *JobsHandler {
	return &JobsHandler{manager: manager, cache: cache}
}

func (h *JobsHandler) GetStatus(c *fiber.Ctx) error {
	jobID := c.Params("id")

	snap, err := h.manager.Status(jobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	resp := fiber.Map{
		"job_id":         snap.JobID,
		"state":          snap.State,
		"progress_stage": string(snap.State),
		"created_at":     snap.CreatedAt,
		"updated_at":     snap.UpdatedAt,
	}
	if snap.Error != "" {
		resp["error"] = snap.Error
		resp["failed_stage"] = snap.FailedStage
	}

	return c.JSON(resp)
}

func (h *JobsHandler) GetDashboard(c *fiber.Ctx) error {
	jobID := c.Params("id")

	dashboard, err := h.manager.Result(jobID)
	if err != nil {
		if errors.Is(err, analysis.ErrNotReady) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Analysis is not completed yet",
			})
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	return c.JSON(dashboard)
}

func (h *JobsHandler) CancelJob(c *fiber.Ctx) error {
	jobID := c.Params("id")

	if err := h.manager.Cancel(jobID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	if h.cache != nil {
		if err := h.cache.InvalidateJob(c.Context(), jobID); err != nil {
			logger.Warn("Failed to invalidate cached answers", zap.Error(err))
		}
	}

	logger.Info("Job cancellation accepted", zap.String("job_id", jobID))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": jobID,
	})
}
