package repository

import (
	"strings"

	"gorm.io/gorm"

	"mailsentry/internal/models"
	"mailsentry/pkg/database"
)

type SenderWhitelistRepository struct{}

func NewSenderWhitelistRepository() *SenderWhitelistRepository {
	return &SenderWhitelistRepository{}
}

func (r *SenderWhitelistRepository) Create(rule *models.SenderWhitelistRule) error {
	return database.GetDB().Create(rule).Error
}

func (r *SenderWhitelistRepository) FindAll() ([]models.SenderWhitelistRule, error) {
	var rules []models.SenderWhitelistRule
	err := database.GetDB().Order("created_at DESC").Find(&rules).Error
	return rules, err
}

func (r *SenderWhitelistRepository) FindAllActive() ([]models.SenderWhitelistRule, error) {
	var rules []models.SenderWhitelistRule
	err := database.GetDB().Where("is_active = 1").Find(&rules).Error
	return rules, err
}

func (r *SenderWhitelistRepository) Update(id string, data map[string]interface{}) error {
	result := database.GetDB().Model(&models.SenderWhitelistRule{}).Where("id = ?", strings.TrimSpace(id)).Updates(data)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *SenderWhitelistRepository) Delete(id string) error {
	result := database.GetDB().Where("id = ?", strings.TrimSpace(id)).Delete(&models.SenderWhitelistRule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type URLWhitelistRepository struct{}

func NewURLWhitelistRepository() *URLWhitelistRepository {
	return &URLWhitelistRepository{}
}

func (r *URLWhitelistRepository) Create(rule *models.URLWhitelistRule) error {
	return database.GetDB().Create(rule).Error
}

func (r *URLWhitelistRepository) FindAll() ([]models.URLWhitelistRule, error) {
	var rules []models.URLWhitelistRule
	err := database.GetDB().Order("created_at DESC").Find(&rules).Error
	return rules, err
}

func (r *URLWhitelistRepository) FindAllActive() ([]models.URLWhitelistRule, error) {
	var rules []models.URLWhitelistRule
	err := database.GetDB().Where("is_active = 1").Find(&rules).Error
	return rules, err
}

func (r *URLWhitelistRepository) Update(id string, data map[string]interface{}) error {
	result := database.GetDB().Model(&models.URLWhitelistRule{}).Where("id = ?", strings.TrimSpace(id)).Updates(data)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *URLWhitelistRepository) Delete(id string) error {
	result := database.GetDB().Where("id = ?", strings.TrimSpace(id)).Delete(&models.URLWhitelistRule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
