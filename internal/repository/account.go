package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"mailsentry/internal/models"
	"mailsentry/pkg/database"
)

type AccountRepository struct{}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

func (r *AccountRepository) Create(account *models.EmailAccount) error {
	return database.GetDB().Create(account).Error
}

func (r *AccountRepository) FindByID(id string) (*models.EmailAccount, error) {
	var account models.EmailAccount
	if err := database.GetDB().Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) FindByIDForOwner(ownerUserID, id string) (*models.EmailAccount, error) {
	return r.FindByIDForOwnerCtx(context.Background(), ownerUserID, id)
}

func (r *AccountRepository) FindByIDForOwnerCtx(ctx context.Context, ownerUserID, id string) (*models.EmailAccount, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ownerUserID = strings.TrimSpace(ownerUserID)
	id = strings.TrimSpace(id)
	if ownerUserID == "" || id == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var account models.EmailAccount
	err := database.GetDB().WithContext(ctx).Where("id = ? AND owner_user_id = ?", id, ownerUserID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) FindAllForOwner(ownerUserID string) ([]models.EmailAccount, error) {
	return r.FindAllForOwnerCtx(context.Background(), ownerUserID)
}

func (r *AccountRepository) FindAllForOwnerCtx(ctx context.Context, ownerUserID string) ([]models.EmailAccount, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ownerUserID = strings.TrimSpace(ownerUserID)
	var accounts []models.EmailAccount
	err := database.GetDB().WithContext(ctx).Where("owner_user_id = ?", ownerUserID).Order("created_at DESC").Find(&accounts).Error
	return accounts, err
}

func (r *AccountRepository) UpdateForOwner(ownerUserID, id string, data map[string]interface{}) error {
	ownerUserID = strings.TrimSpace(ownerUserID)
	id = strings.TrimSpace(id)
	result := database.GetDB().Model(&models.EmailAccount{}).Where("id = ? AND owner_user_id = ?", id, ownerUserID).Updates(data)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *AccountRepository) UpdateLastSync(id string, at time.Time) error {
	return database.GetDB().Model(&models.EmailAccount{}).Where("id = ?", id).Update("last_sync_at", at).Error
}

// DeleteForOwnerCascade removes an account with all of its folders, messages,
// bodies, recipients and folder mappings in one transaction.
func (r *AccountRepository) DeleteForOwnerCascade(ownerUserID, id string) error {
	ownerUserID = strings.TrimSpace(ownerUserID)
	id = strings.TrimSpace(id)
	if ownerUserID == "" || id == "" {
		return gorm.ErrRecordNotFound
	}

	return database.GetDB().Transaction(func(tx *gorm.DB) error {
		// Ensure the account belongs to the owner first.
		var account models.EmailAccount
		if err := tx.Select("id").Where("id = ? AND owner_user_id = ?", id, ownerUserID).First(&account).Error; err != nil {
			return err
		}

		var messageIDs []string
		if err := tx.Model(&models.Message{}).Where("account_id = ?", account.ID).Pluck("id", &messageIDs).Error; err != nil {
			return err
		}

		if len(messageIDs) > 0 {
			if err := tx.Where("message_id IN ?", messageIDs).Delete(&models.Body{}).Error; err != nil {
				return err
			}
			if err := tx.Where("message_id IN ?", messageIDs).Delete(&models.Recipient{}).Error; err != nil {
				return err
			}
			if err := tx.Where("message_id IN ?", messageIDs).Delete(&models.FolderMessage{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("account_id = ?", account.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", account.ID).Delete(&models.Folder{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ? AND owner_user_id = ?", account.ID, ownerUserID).Delete(&models.EmailAccount{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
