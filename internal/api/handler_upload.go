package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meter-image-backend/internal/upload"
)

// uploadForm binds the non-file multipart fields of POST /upload.
type uploadForm struct {
	WaterMeterID int64 `form:"waterMeterId" binding:"required"`
}

// maxFormOverhead is slack on top of the file ceiling for multipart
// boundaries and the non-file form fields.
const maxFormOverhead = 64 << 10

// PostUpload handles the POST /upload request.
func (h *Handler) PostUpload(c *gin.Context) {
	// Cap the request body before the form is parsed so an oversized
	// upload aborts mid-stream instead of being buffered whole first.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+maxFormOverhead)

	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		h.uploadsRejected.Add(1)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": upload.MsgTooLarge})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "waterMeterId form field is required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.uploadsRejected.Add(1)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "No file provided"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.uploadsRejected.Add(1)
		h.logger.Error("failed to open uploaded part", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": upload.MsgStorageFailed})
		return
	}
	defer f.Close()

	result, procErr := h.uploads.Process(c.Request.Context(), form.WaterMeterID, fileHeader.Filename, f)
	if procErr != nil {
		h.uploadsRejected.Add(1)
		c.AbortWithStatusJSON(statusFor(procErr.Kind), gin.H{"detail": procErr.Message})
		return
	}

	h.uploadsAccepted.Add(1)
	resp := gin.H{
		"message":   "Image uploaded successfully",
		"image_id":  result.ImageID,
		"image_url": result.ImageURL,
	}
	if result.TaskID != "" {
		resp["ocr_task_id"] = result.TaskID
		resp["ocr_status"] = result.TaskStatus
	}
	c.JSON(http.StatusOK, resp)
}

// statusFor maps pipeline failure kinds onto HTTP statuses.
func statusFor(kind upload.Kind) int {
	switch kind {
	case upload.KindNotFound:
		return http.StatusNotFound
	case upload.KindBadRequest, upload.KindTooLarge:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
