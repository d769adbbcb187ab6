package repository

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mailsentry/internal/models"
	"mailsentry/pkg/database"
)

type FolderRepository struct{}

func NewFolderRepository() *FolderRepository {
	return &FolderRepository{}
}

// Upsert creates or refreshes a folder row and reports whether the remote
// UIDVALIDITY differs from the stored one. A nil remote value never
// downgrades the stored generation.
func (r *FolderRepository) Upsert(accountID, name string, delimiter, attributes *string, uidValidity *uint32) (*models.Folder, bool, error) {
	accountID = strings.TrimSpace(accountID)
	name = strings.TrimSpace(name)
	if accountID == "" || name == "" {
		return nil, false, gorm.ErrRecordNotFound
	}

	var folder models.Folder
	err := database.GetDB().Where("account_id = ? AND name = ?", accountID, name).First(&folder).Error
	if err == nil {
		uidChanged := uidValidity != nil && folder.UIDValidity != nil && *folder.UIDValidity != *uidValidity

		updates := map[string]interface{}{
			"delimiter":  delimiter,
			"attributes": attributes,
		}
		if uidValidity != nil {
			updates["uid_validity"] = *uidValidity
		}
		if uidChanged {
			updates["last_uid"] = 0
		}
		if err := database.GetDB().Model(&models.Folder{}).Where("id = ?", folder.ID).Updates(updates).Error; err != nil {
			return nil, false, err
		}

		folder.Delimiter = delimiter
		folder.Attributes = attributes
		if uidValidity != nil {
			folder.UIDValidity = uidValidity
		}
		if uidChanged {
			folder.LastUID = 0
		}
		return &folder, uidChanged, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	folder = models.Folder{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Name:        name,
		Delimiter:   delimiter,
		Attributes:  attributes,
		UIDValidity: uidValidity,
		LastUID:     0,
	}
	if err := database.GetDB().Create(&folder).Error; err != nil {
		return nil, false, err
	}
	return &folder, false, nil
}

// PurgeMessages removes every FolderMessage of the folder, GC'ing messages
// whose only appearance was in this folder along with their bodies and
// recipients. Used on UIDVALIDITY change before the refill.
func (r *FolderRepository) PurgeMessages(folderID string) (int64, error) {
	var deleted int64
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		var messageIDs []string
		if err := tx.Model(&models.FolderMessage{}).Where("folder_id = ?", folderID).
			Distinct().Pluck("message_id", &messageIDs).Error; err != nil {
			return err
		}

		res := tx.Where("folder_id = ?", folderID).Delete(&models.FolderMessage{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected

		if len(messageIDs) == 0 {
			return nil
		}

		// Orphaned messages: no other folder references them anymore.
		var stillReferenced []string
		if err := tx.Model(&models.FolderMessage{}).Where("message_id IN ?", messageIDs).
			Distinct().Pluck("message_id", &stillReferenced).Error; err != nil {
			return err
		}
		referenced := make(map[string]struct{}, len(stillReferenced))
		for _, id := range stillReferenced {
			referenced[id] = struct{}{}
		}

		var orphans []string
		for _, id := range messageIDs {
			if _, ok := referenced[id]; !ok {
				orphans = append(orphans, id)
			}
		}
		if len(orphans) == 0 {
			return nil
		}

		if err := tx.Where("message_id IN ?", orphans).Delete(&models.Body{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id IN ?", orphans).Delete(&models.Recipient{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", orphans).Delete(&models.Message{}).Error
	})
	return deleted, err
}

// UpdateSyncState advances the folder cursor after a persisted chunk.
func (r *FolderRepository) UpdateSyncState(folderID string, lastUID uint32, syncTime time.Time) error {
	return database.GetDB().Model(&models.Folder{}).Where("id = ?", folderID).Updates(map[string]interface{}{
		"last_uid":     lastUID,
		"last_sync_at": syncTime,
	}).Error
}

func (r *FolderRepository) FindByAccountID(accountID string) ([]models.Folder, error) {
	var folders []models.Folder
	err := database.GetDB().Where("account_id = ?", accountID).Order("name ASC").Find(&folders).Error
	return folders, err
}

func (r *FolderRepository) FindIDsByAccountIDs(accountIDs []string) ([]string, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := database.GetDB().Model(&models.Folder{}).Where("account_id IN ?", accountIDs).Pluck("id", &ids).Error
	return ids, err
}

func (r *FolderRepository) FindByID(id string) (*models.Folder, error) {
	var folder models.Folder
	if err := database.GetDB().Where("id = ?", id).First(&folder).Error; err != nil {
		return nil, err
	}
	return &folder, nil
}
