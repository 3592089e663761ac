package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/internal/repo"
	"github.com/faultlinehq/faultline/internal/utils"
	"github.com/faultlinehq/faultline/internal/windows"
	"github.com/faultlinehq/faultline/pkg/logger"
)

// Triager runs triage requests on behalf of the HTTP layer.
type Triager interface {
	FromMonitor(ctx context.Context, req models.MonitorTriageRequest) (*models.Report, error)
	FromLogs(ctx context.Context, req models.LogsTriageRequest) (*models.Report, error)
	FromService(ctx context.Context, req models.ServiceTriageRequest) (*models.Report, error)
	LatencyP95() time.Duration
}

// TriageHandler exposes the triage seeds over HTTP.
type TriageHandler struct {
	logger  logger.Logger
	triager Triager
}

// NewTriageHandler constructs the handler set.
func NewTriageHandler(log logger.Logger, triager Triager) *TriageHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &TriageHandler{logger: log, triager: triager}
}

// Monitor handles POST /api/v1/triage/monitor.
func (h *TriageHandler) Monitor(c *gin.Context) {
	var req models.MonitorTriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	report, err := h.triager.FromMonitor(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Logs handles POST /api/v1/triage/logs.
func (h *TriageHandler) Logs(c *gin.Context) {
	var req models.LogsTriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	report, err := h.triager.FromLogs(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Service handles POST /api/v1/triage/service.
func (h *TriageHandler) Service(c *gin.Context) {
	var req models.ServiceTriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	report, err := h.triager.FromService(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Health handles GET /healthz.
func (h *TriageHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"triage_p95_ms": h.triager.LatencyP95().Milliseconds(),
	})
}

// fail maps triage errors onto HTTP statuses: invalid input is the caller's
// fault, upstream Datadog failures are a bad gateway, everything else is ours.
func (h *TriageHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, windows.ErrInvalidWindow):
		status = http.StatusBadRequest
	case errors.Is(err, repo.ErrRequestFailed):
		status = http.StatusBadGateway
	}

	fields := []interface{}{"path", c.FullPath(), "error", err}
	if op := utils.Operation(err); op != "" {
		fields = append(fields, "op", op)
	}
	if status >= 500 {
		h.logger.Error("triage request failed", fields...)
	} else {
		h.logger.Warn("triage request rejected", fields...)
	}
	c.JSON(status, gin.H{"status": "error", "error": err.Error()})
}
