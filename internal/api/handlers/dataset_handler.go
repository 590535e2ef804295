package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dashgen/backend/internal/jobs"
	"github.com/dashgen/backend/pkg/logger"
)

var allowedExtensions = map[string]struct{}{
	".csv": {},
	".tsv": {},
}

type DatasetHandler struct {
	manager   *jobs.Manager
	uploadDir string
}

func NewDatasetHandler(manager *jobs.Manager, uploadDir string) *DatasetHandler {
	return &DatasetHandler{
		manager:   manager,
		uploadDir: uploadDir,
	}
}

// UploadDataset accepts a tabular file, stores it, and submits an analysis
// job. The response carries the job ID for status polling.
func (h *DatasetHandler) UploadDataset(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A file upload is required",
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": fmt.Sprintf("Unsupported file type %q", ext),
		})
	}

	dest := filepath.Join(h.uploadDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(file.Filename)))
	if err := c.SaveFile(file, dest); err != nil {
		logger.Error("Failed to store uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store file",
		})
	}

	jobID, err := h.manager.Submit(dest)
	if err != nil {
		logger.Error("Failed to submit analysis job", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to submit analysis job",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":   jobID,
		"filename": file.Filename,
	})
}
