package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meter-image-backend/internal/store"
	"meter-image-backend/internal/upload"
)

// GetTaskStatus handles the GET /task-status/{task_id} request.
//
// OCR runs out of process, so a task id with no readings row yet is a
// pending task, not an unknown one. The worker writes exactly one row
// per task when it finishes, success or failure.
func (h *Handler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")

	reading, err := h.store.ReadingByTaskID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrReadingNotFound) {
			c.JSON(http.StatusOK, gin.H{"task_id": taskID, "status": "pending"})
			return
		}
		h.logger.Error("task lookup failed", zap.String("task_id", taskID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": upload.MsgDatabaseError})
		return
	}

	if reading.Status == "success" {
		c.JSON(http.StatusOK, gin.H{
			"task_id": taskID,
			"status":  reading.Status,
			"result": gin.H{
				"image_id":   reading.ImageID,
				"value":      reading.Value,
				"confidence": reading.Confidence,
				"raw_text":   reading.RawText,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id": taskID,
		"status":  reading.Status,
		"error":   reading.ErrorMessage,
	})
}
