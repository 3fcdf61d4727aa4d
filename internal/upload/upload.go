package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"meter-image-backend/internal/dispatch"
	"meter-image-backend/internal/imagecheck"
	"meter-image-backend/internal/model"
	"meter-image-backend/internal/parse"
	"meter-image-backend/internal/storage"
	"meter-image-backend/internal/store"
)

// Kind classifies pipeline failures for the HTTP layer.
type Kind int

const (
	KindBadRequest Kind = iota
	KindNotFound
	KindTooLarge
	KindStorage
	KindDatabase
)

// Client-safe failure messages. Internal causes are logged server-side
// and never appear in these.
const (
	MsgInvalidFormat  = "Invalid file format. Allowed formats: JPEG, JPG, PNG"
	MsgFormatMismatch = "File content does not match the declared image format"
	MsgTooLarge       = "File exceeds the maximum upload size"
	MsgStorageFailed  = "Failed to save file"
	MsgDatabaseError  = "Database error"
)

// Error is a pipeline failure carrying only a client-safe message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Result describes a stored image.
type Result struct {
	ImageID    int64
	ImageURL   string
	TaskID     string
	TaskStatus string
}

// Dispatcher hands accepted images to the offline OCR pipeline.
type Dispatcher interface {
	Dispatch(job dispatch.Job)
}

// Service runs the upload pipeline: entity check, validation, staged
// write, metadata insert, promote, dispatch. A response is only
// successful when both the promoted file and the images row exist;
// every failure path removes whatever was already written.
type Service struct {
	store      store.Store
	files      *storage.Dir
	dispatcher Dispatcher
	maxBytes   int64
	logger     *zap.Logger

	// Overridable in tests.
	token func() string
	now   func() time.Time
}

// NewService creates the upload service. dispatcher may be nil when task
// dispatch is disabled.
func NewService(s store.Store, files *storage.Dir, dispatcher Dispatcher, maxBytes int64, logger *zap.Logger) *Service {
	return &Service{
		store:      s,
		files:      files,
		dispatcher: dispatcher,
		maxBytes:   maxBytes,
		logger:     logger,
		token:      uuid.NewString,
		now:        time.Now,
	}
}

// Process validates and stores one uploaded file for a water meter. The
// client filename contributes nothing but its extension; the stored name
// is generated from the meter id, a timestamp and a random token.
func (s *Service) Process(ctx context.Context, meterID int64, filename string, r io.Reader) (*Result, *Error) {
	meter, err := s.store.MeterByID(ctx, meterID)
	if err != nil {
		if errors.Is(err, store.ErrMeterNotFound) {
			return nil, &Error{
				Kind:    KindNotFound,
				Message: fmt.Sprintf("Water meter with ID %d not found or inactive", meterID),
			}
		}
		s.logger.Error("meter lookup failed", zap.Int64("meter_id", meterID), zap.Error(err))
		return nil, &Error{Kind: KindDatabase, Message: MsgDatabaseError}
	}

	ext, err := imagecheck.NormalizeExt(filename)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, Message: MsgInvalidFormat}
	}

	head, body, err := imagecheck.ReadHeader(r)
	if err != nil {
		s.logger.Error("reading upload stream failed", zap.Int64("meter_id", meterID), zap.Error(err))
		return nil, &Error{Kind: KindStorage, Message: MsgStorageFailed}
	}

	sniffed, err := imagecheck.SniffFormat(head)
	if err != nil || !imagecheck.Matches(ext, sniffed) {
		return nil, &Error{Kind: KindBadRequest, Message: MsgFormatMismatch}
	}

	name := parse.FormatImageName(meter.ID, s.now().UTC(), s.token(), ext)

	written, err := s.files.Stage(name, imagecheck.LimitBytes(body, s.maxBytes))
	if err != nil {
		// Stage cleans up its own partial file, so nothing to discard.
		if errors.Is(err, imagecheck.ErrTooLarge) {
			return nil, &Error{Kind: KindTooLarge, Message: MsgTooLarge}
		}
		s.logger.Error("staging write failed",
			zap.Int64("meter_id", meter.ID), zap.String("file", name), zap.Error(err))
		return nil, &Error{Kind: KindStorage, Message: MsgStorageFailed}
	}

	img := &model.Image{
		WaterMeterID: meter.ID,
		ImageURL:     s.files.Path(name),
	}
	if err := s.store.CreateImage(ctx, img); err != nil {
		if discardErr := s.files.Discard(name); discardErr != nil {
			s.logger.Error("failed to discard staging file", zap.String("file", name), zap.Error(discardErr))
		}
		s.logger.Error("image insert failed",
			zap.Int64("meter_id", meter.ID), zap.String("file", name), zap.Error(err))
		return nil, &Error{Kind: KindDatabase, Message: MsgDatabaseError}
	}

	if err := s.files.Promote(name); err != nil {
		// The row exists but the file cannot take its final name; undo both.
		if delErr := s.store.DeleteImage(ctx, img.ID); delErr != nil {
			s.logger.Error("failed to delete image row after promote failure",
				zap.Int64("image_id", img.ID), zap.Error(delErr))
		}
		if discardErr := s.files.Discard(name); discardErr != nil {
			s.logger.Error("failed to discard staging file", zap.String("file", name), zap.Error(discardErr))
		}
		s.logger.Error("promote failed",
			zap.Int64("meter_id", meter.ID), zap.String("file", name), zap.Error(err))
		return nil, &Error{Kind: KindStorage, Message: MsgStorageFailed}
	}

	result := &Result{ImageID: img.ID, ImageURL: img.ImageURL}

	if s.dispatcher != nil {
		job := dispatch.Job{
			TaskID:       s.token(),
			ImageID:      img.ID,
			WaterMeterID: meter.ID,
			ImageURL:     img.ImageURL,
			EnqueuedAt:   s.now().UTC(),
		}
		s.dispatcher.Dispatch(job)
		result.TaskID = job.TaskID
		result.TaskStatus = "queued"
	}

	s.logger.Info("image stored",
		zap.Int64("meter_id", meter.ID),
		zap.Int64("image_id", img.ID),
		zap.Int64("bytes", written),
		zap.String("file", name))

	return result, nil
}
