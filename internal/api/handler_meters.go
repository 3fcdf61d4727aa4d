package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meter-image-backend/internal/store"
	"meter-image-backend/internal/upload"
)

// ImageResponse represents the API response for a single stored image.
type ImageResponse struct {
	ID        int64     `json:"id"`
	ImageURL  string    `json:"imageUrl"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReadingResponse represents the API response for a single OCR reading.
type ReadingResponse struct {
	ID         int64     `json:"id"`
	ImageID    int64     `json:"imageId"`
	Value      float64   `json:"value"`
	RawText    string    `json:"rawText"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// meterFromParam resolves the :meter_id route param to an active meter.
// It writes the error response itself and reports whether to continue.
func (h *Handler) meterFromParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("meter_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "Invalid meter ID"})
		return 0, false
	}

	if _, err := h.store.MeterByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrMeterNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"detail": fmt.Sprintf("Water meter with ID %d not found or inactive", id),
			})
			return 0, false
		}
		h.logger.Error("meter lookup failed", zap.Int64("meter_id", id), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": upload.MsgDatabaseError})
		return 0, false
	}
	return id, true
}

// GetMeterImages handles the GET /meters/:meter_id/images request.
func (h *Handler) GetMeterImages(c *gin.Context) {
	id, ok := h.meterFromParam(c)
	if !ok {
		return
	}

	images, err := h.store.ImagesByMeter(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("image listing failed", zap.Int64("meter_id", id), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Failed to retrieve images"})
		return
	}

	responses := make([]ImageResponse, 0, len(images))
	for _, img := range images {
		responses = append(responses, ImageResponse{
			ID: img.ID, ImageURL: img.ImageURL,
			Processed: img.Processed, CreatedAt: img.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, responses)
}

// GetMeterReadings handles the GET /meters/:meter_id/readings request.
func (h *Handler) GetMeterReadings(c *gin.Context) {
	id, ok := h.meterFromParam(c)
	if !ok {
		return
	}

	readings, err := h.store.ReadingsByMeter(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("reading listing failed", zap.Int64("meter_id", id), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Failed to retrieve readings"})
		return
	}

	responses := make([]ReadingResponse, 0, len(readings))
	for _, r := range readings {
		responses = append(responses, ReadingResponse{
			ID: r.ID, ImageID: r.ImageID,
			Value: r.Value, RawText: r.RawText,
			Confidence: r.Confidence, Status: r.Status,
			CreatedAt: r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, responses)
}
