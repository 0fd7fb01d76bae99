package handlers

import (
	"context"
	"net/http"

	"quizinsight/internal/observability"
	"quizinsight/internal/services"
	"quizinsight/internal/worker"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// WorkerController is the part of the background worker the admin endpoints drive
type WorkerController interface {
	GetInstance() string
	GetStatus() worker.Status
	GetHistory() []worker.RunRecord
	TriggerManualRun(ctx context.Context) bool
	Pause(ctx context.Context)
	Resume(ctx context.Context)
}

var _ WorkerController = (*worker.Worker)(nil)

// WorkerAdminHandler serves the worker's operational endpoints
type WorkerAdminHandler struct {
	worker        WorkerController
	workerService services.WorkerServiceInterface
	logger        *observability.Logger
}

// NewWorkerAdminHandlerWithLogger creates a new WorkerAdminHandler
func NewWorkerAdminHandlerWithLogger(w WorkerController, workerService services.WorkerServiceInterface, logger *observability.Logger) *WorkerAdminHandler {
	return &WorkerAdminHandler{
		worker:        w,
		workerService: workerService,
		logger:        logger,
	}
}

// GetWorkerStatus returns the in-memory status of this instance together with its pending queue
func (h *WorkerAdminHandler) GetWorkerStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_worker_status",
		attribute.String("worker.instance", h.worker.GetInstance()))
	defer observability.FinishSpan(span, nil)

	healthy, err := h.workerService.IsWorkerHealthy(ctx, h.worker.GetInstance())
	if err != nil {
		h.logger.Warn(ctx, "Failed to check worker health", map[string]interface{}{
			"instance": h.worker.GetInstance(),
			"error":    err.Error(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"instance": h.worker.GetInstance(),
		"status":   h.worker.GetStatus(),
		"healthy":  healthy,
	})
}

// GetWorkerHistory returns the recent runs of this instance, oldest first
func (h *WorkerAdminHandler) GetWorkerHistory(c *gin.Context) {
	history := h.worker.GetHistory()
	c.JSON(http.StatusOK, gin.H{
		"instance": h.worker.GetInstance(),
		"history":  history,
		"count":    len(history),
	})
}

// GetWorkerInstances lists the persisted status of every worker instance
func (h *WorkerAdminHandler) GetWorkerInstances(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_worker_instances")
	defer observability.FinishSpan(span, nil)

	statuses, err := h.workerService.GetAllWorkerStatuses(ctx)
	if err != nil {
		h.logger.Error(ctx, "Failed to list worker statuses", err)
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": statuses})
}

// TriggerWorkerRun asks the worker loop for an immediate run
func (h *WorkerAdminHandler) TriggerWorkerRun(c *gin.Context) {
	if !h.worker.TriggerManualRun(c.Request.Context()) {
		StandardizeHTTPError(c, http.StatusTooManyRequests, "Worker run already pending", "retry after the current trigger has been processed")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Worker run triggered"})
}

// PauseWorker pauses this worker instance
func (h *WorkerAdminHandler) PauseWorker(c *gin.Context) {
	h.worker.Pause(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Worker paused", "status": h.worker.GetStatus()})
}

// ResumeWorker resumes this worker instance
func (h *WorkerAdminHandler) ResumeWorker(c *gin.Context) {
	h.worker.Resume(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Worker resumed", "status": h.worker.GetStatus()})
}
