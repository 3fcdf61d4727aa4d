package model

import "time"

// Consumer represents a billing customer that owns one or more water meters.
type Consumer struct {
	ID           int64     `gorm:"primaryKey"`
	CustomerCode string    `gorm:"uniqueIndex;size:50;not null"`
	Name         string    `gorm:"size:100;not null"`
	CreatedAt    time.Time `gorm:"not null"`

	// Associations
	Meters []WaterMeter `gorm:"foreignKey:ConsumerID"`
}
