package transport

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ds124wfegd/crossedpaths/pkg/queue"

	"github.com/gin-gonic/gin"
)

// QueueAdmin is the part of the task queue exposed to operators.
type QueueAdmin interface {
	DLQ() queue.DLQHandler
	GetQueueStats(ctx context.Context) (*queue.QueueStats, error)
}

type AdminHandler struct {
	queue QueueAdmin
}

// NewAdminHandler accepts a nil queue; the endpoints then answer 503.
func NewAdminHandler(q QueueAdmin) *AdminHandler {
	return &AdminHandler{queue: q}
}

func (h *AdminHandler) available(c *gin.Context) bool {
	if h.queue == nil || h.queue.DLQ() == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "task queue is disabled"})
		return false
	}
	return true
}

func (h *AdminHandler) GetQueueStats(c *gin.Context) {
	if !h.available(c) {
		return
	}

	stats, err := h.queue.GetQueueStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) GetFailedTasks(c *gin.Context) {
	if !h.available(c) {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		return
	}

	tasks, err := h.queue.DLQ().GetFailedTasks(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

func (h *AdminHandler) RequeueFailedTask(c *gin.Context) {
	if !h.available(c) {
		return
	}

	if err := h.queue.DLQ().RequeueFailedTask(c.Request.Context(), c.Param("task_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "task requeued"})
}

func (h *AdminHandler) DeleteFailedTask(c *gin.Context) {
	if !h.available(c) {
		return
	}

	if err := h.queue.DLQ().DeleteFailedTask(c.Request.Context(), c.Param("task_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}
