package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"meter-image-backend/internal/model"
)

// ErrMeterNotFound is returned when a water meter does not exist or is
// inactive. Callers must be able to tell this apart from a database
// failure, so every other error path wraps the cause instead.
var ErrMeterNotFound = errors.New("water meter not found")

// ErrReadingNotFound is returned when no OCR reading exists for a task id.
var ErrReadingNotFound = errors.New("reading not found")

// Store defines the interface for all database operations.
type Store interface {
	MeterByID(ctx context.Context, id int64) (*model.WaterMeter, error)
	CreateImage(ctx context.Context, img *model.Image) error
	DeleteImage(ctx context.Context, id int64) error
	ImagesByMeter(ctx context.Context, meterID int64) ([]model.Image, error)
	CountImages(ctx context.Context) (int64, error)
	ReadingsByMeter(ctx context.Context, meterID int64) ([]model.Reading, error)
	ReadingByTaskID(ctx context.Context, taskID string) (*model.Reading, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for migrations and tests.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// MeterByID fetches an active water meter. An existing but deactivated
// meter is reported as ErrMeterNotFound, same as a missing row.
func (s *gormStore) MeterByID(ctx context.Context, id int64) (*model.WaterMeter, error) {
	var meter model.WaterMeter
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&meter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMeterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up water meter %d: %w", id, err)
	}
	return &meter, nil
}

// CreateImage inserts the metadata row for a staged file. The generated
// ID is written back into img.
func (s *gormStore) CreateImage(ctx context.Context, img *model.Image) error {
	if err := s.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("failed to insert image record: %w", err)
	}
	return nil
}

// DeleteImage removes an image row. Used to compensate when the file
// promotion fails after the row was already written.
func (s *gormStore) DeleteImage(ctx context.Context, id int64) error {
	if err := s.db.WithContext(ctx).Delete(&model.Image{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete image record %d: %w", id, err)
	}
	return nil
}

// ImagesByMeter lists the stored images for a meter, newest first.
func (s *gormStore) ImagesByMeter(ctx context.Context, meterID int64) ([]model.Image, error) {
	var images []model.Image
	err := s.db.WithContext(ctx).
		Where("water_meter_id = ?", meterID).
		Order("created_at DESC").
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images for meter %d: %w", meterID, err)
	}
	return images, nil
}

// CountImages returns the total number of stored images.
func (s *gormStore) CountImages(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Image{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}

// ReadingsByMeter lists the OCR readings recorded for a meter, newest first.
func (s *gormStore) ReadingsByMeter(ctx context.Context, meterID int64) ([]model.Reading, error) {
	var readings []model.Reading
	err := s.db.WithContext(ctx).
		Where("water_meter_id = ?", meterID).
		Order("created_at DESC").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list readings for meter %d: %w", meterID, err)
	}
	return readings, nil
}

// ReadingByTaskID fetches the OCR result for a dispatched task. No row
// means the offline worker has not finished (or never ran); callers map
// that to a pending status.
func (s *gormStore) ReadingByTaskID(ctx context.Context, taskID string) (*model.Reading, error) {
	var reading model.Reading
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		First(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReadingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up reading for task %s: %w", taskID, err)
	}
	return &reading, nil
}
