package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mailsentry/internal/models"
	"mailsentry/pkg/database"
)

type SettingsRepository struct{}

func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{}
}

// GetOrCreateDefault returns the singleton settings row, creating the default
// one on first access.
func (r *SettingsRepository) GetOrCreateDefault() (*models.SystemSettings, error) {
	var settings models.SystemSettings
	err := database.GetDB().Order("created_at ASC").First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	settings = models.SystemSettings{
		ID:                     uuid.NewString(),
		EnableLongURLDetection: 1,
	}
	if err := database.GetDB().Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update applies the given fields to the singleton row.
func (r *SettingsRepository) Update(data map[string]interface{}) (*models.SystemSettings, error) {
	settings, err := r.GetOrCreateDefault()
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := database.GetDB().Model(&models.SystemSettings{}).Where("id = ?", settings.ID).Updates(data).Error; err != nil {
			return nil, err
		}
	}
	var updated models.SystemSettings
	if err := database.GetDB().Where("id = ?", settings.ID).First(&updated).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}
