package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"gazette-monitor/internal/monitor"
	"gazette-monitor/internal/queue"
	"gazette-monitor/internal/shared/server/middleware"
	"gazette-monitor/internal/shared/server/respond"
	"gazette-monitor/internal/shared/telemetry"
)

// Runner executes a monitor run in-process.
type Runner interface {
	Run(ctx context.Context, opts monitor.RunOptions) (monitor.Result, error)
}

type runRequest struct {
	Force  bool `json:"force"`
	DryRun bool `json:"dryRun"`
}

type runsHandler struct {
	runner Runner
	queue  queue.Client
}

func (h *runsHandler) create(c *gin.Context) {
	var req runRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid run request body", nil)
			return
		}
	}

	requestID := middleware.RequestIDFromContext(c)
	c.Set("runRequestId", requestID)

	if h.queue != nil {
		msg := queue.NewMessage(requestID, req.Force, req.DryRun)
		if err := h.queue.Send(c.Request.Context(), msg); err != nil {
			telemetry.Error("runs.enqueue_failed", map[string]any{
				"request_id": requestID,
				"error":      err.Error(),
			})
			respond.Error(c, http.StatusBadGateway, "enqueue_failed", "failed to enqueue run", nil)
			return
		}
		respond.Accepted(c, gin.H{"requestId": requestID, "queued": true})
		return
	}

	if h.runner == nil {
		respond.Error(c, http.StatusServiceUnavailable, "not_configured", "monitor is not configured", nil)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	opts := monitor.RunOptions{Force: req.Force, DryRun: req.DryRun, RequestID: requestID}
	go func() {
		res, err := h.runner.Run(ctx, opts)
		if err != nil {
			telemetry.Error("runs.background_failed", map[string]any{
				"request_id": requestID,
				"run_id":     res.RunID,
				"stage":      monitor.StageOf(err),
				"error":      err.Error(),
			})
		}
	}()

	respond.Accepted(c, gin.H{"requestId": requestID, "queued": false})
}
