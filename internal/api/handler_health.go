package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meter-image-backend/internal/upload"
)

// GetRoot handles the GET / request.
func (h *Handler) GetRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Water Meter Image Upload API"})
}

// GetHealth handles the GET /health request.
func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// GetMetrics handles the GET /metrics request.
func (h *Handler) GetMetrics(c *gin.Context) {
	stored, err := h.store.CountImages(c.Request.Context())
	if err != nil {
		h.logger.Error("image count failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": upload.MsgDatabaseError})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds":   int64(time.Since(h.startedAt).Seconds()),
		"uploads_accepted": h.uploadsAccepted.Load(),
		"uploads_rejected": h.uploadsRejected.Load(),
		"images_stored":    stored,
	})
}
