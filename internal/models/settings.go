package models

import (
	"time"
)

// SystemSettings is a singleton row; a default row is created on first read.
type SystemSettings struct {
	ID                     string    `json:"id" gorm:"primaryKey"`
	EnableLongURLDetection int       `json:"enable_long_url_detection" gorm:"default:1"`
	CreatedAt              time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt              time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (SystemSettings) TableName() string {
	return "system_settings"
}
