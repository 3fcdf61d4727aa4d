package model

import "time"

// Image is the metadata row for one stored meter photo. ImageURL is the
// path under the storage root; the row exists only for files that were
// fully written and promoted. Processed is flipped by the offline OCR
// worker, never by this service.
type Image struct {
	ID           int64     `gorm:"primaryKey"`
	WaterMeterID int64     `gorm:"index;not null"`
	ImageURL     string    `gorm:"size:500;not null"`
	Processed    bool      `gorm:"default:false;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}
