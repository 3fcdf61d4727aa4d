package api

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"meter-image-backend/internal/store"
	"meter-image-backend/internal/upload"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	uploads   *upload.Service
	maxUpload int64
	logger    *zap.Logger
	startedAt time.Time

	uploadsAccepted atomic.Int64
	uploadsRejected atomic.Int64
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, uploads *upload.Service, maxUpload int64, logger *zap.Logger) *Handler {
	return &Handler{
		store:     s,
		uploads:   uploads,
		maxUpload: maxUpload,
		logger:    logger,
		startedAt: time.Now(),
	}
}
