package model

import "time"

// WaterMeter represents a physical meter installed at a consumer's site.
// Uploads are only accepted for meters with IsActive set; deactivated
// meters stay in the table for history but behave as if they do not exist.
type WaterMeter struct {
	ID         int64  `gorm:"primaryKey"`
	ConsumerID int64  `gorm:"index;not null"`
	MeterCode  string `gorm:"uniqueIndex;size:50;not null"`
	Location   string `gorm:"size:200"`
	IsActive   bool   `gorm:"default:true;not null"`
	CreatedAt  time.Time

	// Associations
	Consumer Consumer `gorm:"constraint:OnDelete:CASCADE"`
	Images   []Image  `gorm:"foreignKey:WaterMeterID"`
}
