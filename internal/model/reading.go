package model

import "time"

// Reading is the OCR result for one image, written by the offline worker
// that consumes dispatched tasks. This service only reads the table (task
// status and per-meter listings).
type Reading struct {
	ID           int64   `gorm:"primaryKey"`
	ImageID      int64   `gorm:"index;not null"`
	WaterMeterID int64   `gorm:"index;not null"`
	TaskID       string  `gorm:"uniqueIndex;size:64;not null"`
	Value        float64 // extracted meter value, zero when Status is failure
	RawText      string
	Confidence   float64
	Status       string `gorm:"size:20;not null"` // success or failure
	ErrorMessage string
	CreatedAt    time.Time `gorm:"not null"`
}
