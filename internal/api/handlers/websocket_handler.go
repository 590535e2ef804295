package handlers

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/dashgen/backend/internal/jobs"
	"github.com/dashgen/backend/pkg/logger"
)

const statusPollInterval = 500 * time.Millisecond

type WebSocketHandler struct {
	manager *jobs.Manager
}

func NewWebSocketHandler(manager *jobs.Manager) *WebSocketHandler {
	return &WebSocketHandler{manager: manager}
}

// HandleJobEvents streams state transitions for one job until it reaches a
// terminal state or the client disconnects.
func (h *WebSocketHandler) HandleJobEvents(c *websocket.Conn) {
	jobID := c.Params("id")
	logger.Info("Job event stream opened", zap.String("job_id", jobID))

	defer func() {
		c.Close()
		logger.Info("Job event stream closed", zap.String("job_id", jobID))
	}()

	var lastState jobs.State
	for {
		snap, err := h.manager.Status(jobID)
		if err != nil {
			c.WriteJSON(map[string]string{"error": "job not found"})
			return
		}

		if snap.State != lastState {
			lastState = snap.State

			event := map[string]interface{}{
				"job_id": snap.JobID,
				"state":  snap.State,
			}
			if snap.Error != "" {
				event["error"] = snap.Error
				event["failed_stage"] = snap.FailedStage
			}

			if err := c.WriteJSON(event); err != nil {
				logger.Debug("Failed to write job event", zap.Error(err))
				return
			}
		}

		if snap.State.Terminal() {
			return
		}

		time.Sleep(statusPollInterval)
	}
}
