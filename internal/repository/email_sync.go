package repository

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mailsentry/internal/imapclient"
	"mailsentry/internal/mailparse"
	"mailsentry/internal/models"
	"mailsentry/pkg/database"
)

// SyncPayload is one fetched and parsed message ready for persistence.
type SyncPayload struct {
	UID           uint32
	MessageID     string
	Subject       *string
	SenderName    *string
	SenderAddress *string
	Snippet       *string
	ReceivedAt    *time.Time
	InternalDate  *time.Time
	Size          *int64
	Flags         []string
	ContentText   *string
	ContentHTML   *string
	Recipients    []mailparse.ParsedRecipient
}

type EmailSyncRepository struct{}

func NewEmailSyncRepository() *EmailSyncRepository {
	return &EmailSyncRepository{}
}

// SaveFolderEmails persists a chunk of fetched messages idempotently in a
// single transaction and returns the count and ids of newly inserted
// FolderMessages.
//
// Per payload:
//   - an existing (folder_id, uid) row only gets its flags refreshed;
//   - otherwise the Message is found by (account_id, message_id) or created
//     together with its Body and Recipients, and a FolderMessage is inserted.
//
// A UNIQUE violation (concurrent sync of the same account) rolls back and is
// retried once at batch scope.
func (r *EmailSyncRepository) SaveFolderEmails(accountID, folderID string, payloads []SyncPayload) (int, []string, error) {
	if len(payloads) == 0 {
		return 0, nil, nil
	}

	var inserted int
	var insertedIDs []string
	var err error

	for attempt := 0; attempt < 2; attempt++ {
		inserted, insertedIDs, err = r.saveOnce(accountID, folderID, payloads)
		if err == nil || !isUniqueViolation(err) {
			return inserted, insertedIDs, err
		}
	}
	return inserted, insertedIDs, err
}

func (r *EmailSyncRepository) saveOnce(accountID, folderID string, payloads []SyncPayload) (int, []string, error) {
	var insertedIDs []string

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		messageIDs := make([]string, 0, len(payloads))
		uids := make([]uint32, 0, len(payloads))
		for _, p := range payloads {
			if p.MessageID != "" {
				messageIDs = append(messageIDs, p.MessageID)
			}
			uids = append(uids, p.UID)
		}

		existingMessages, err := loadExistingMessages(tx, accountID, messageIDs)
		if err != nil {
			return err
		}
		existingFolderMessages, err := loadExistingFolderMessages(tx, folderID, uids)
		if err != nil {
			return err
		}

		for _, payload := range payloads {
			if fm, ok := existingFolderMessages[payload.UID]; ok {
				// Flag reconciliation only; no new Message is created.
				if err := refreshFlags(tx, fm.ID, payload.Flags); err != nil {
					return err
				}
				continue
			}

			message, found := existingMessages[payload.MessageID]
			if !found || message == nil {
				message = &models.Message{
					ID:             uuid.NewString(),
					AccountID:      accountID,
					MessageID:      payload.MessageID,
					Subject:        payload.Subject,
					SenderName:     payload.SenderName,
					SenderAddress:  payload.SenderAddress,
					Snippet:        payload.Snippet,
					ReceivedAt:     receivedAt(payload),
					Size:           payload.Size,
					PhishingLevel:  models.PhishingLevelNormal,
					PhishingScore:  0.0,
					PhishingStatus: models.PhishingStatusPending,
				}
				if err := tx.Create(message).Error; err != nil {
					return err
				}
				if err := tx.Create(&models.Body{
					MessageID:   message.ID,
					ContentText: payload.ContentText,
					ContentHTML: payload.ContentHTML,
				}).Error; err != nil {
					return err
				}
				for _, recipient := range payload.Recipients {
					row := models.Recipient{
						ID:        uuid.NewString(),
						MessageID: message.ID,
						Kind:      recipient.Kind,
						Address:   recipient.Address,
					}
					if recipient.Name != "" {
						name := recipient.Name
						row.DisplayName = &name
					}
					if err := tx.Create(&row).Error; err != nil {
						return err
					}
				}
				existingMessages[payload.MessageID] = message
			}

			status := imapclient.FlagsToStatus(payload.Flags)
			fm := models.FolderMessage{
				ID:           uuid.NewString(),
				FolderID:     folderID,
				MessageID:    message.ID,
				UID:          payload.UID,
				Flags:        normalizedFlags(payload.Flags),
				IsRead:       boolToInt(status.IsRead),
				IsFlagged:    boolToInt(status.IsFlagged),
				IsAnswered:   boolToInt(status.IsAnswered),
				IsDeleted:    boolToInt(status.IsDeleted),
				IsDraft:      boolToInt(status.IsDraft),
				InternalDate: payload.InternalDate,
			}
			if err := tx.Create(&fm).Error; err != nil {
				return err
			}
			insertedIDs = append(insertedIDs, fm.ID)
		}

		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return len(insertedIDs), insertedIDs, nil
}

func loadExistingMessages(tx *gorm.DB, accountID string, messageIDs []string) (map[string]*models.Message, error) {
	existing := make(map[string]*models.Message)
	if len(messageIDs) == 0 {
		return existing, nil
	}
	var messages []models.Message
	if err := tx.Where("account_id = ? AND message_id IN ?", accountID, messageIDs).Find(&messages).Error; err != nil {
		return nil, err
	}
	for i := range messages {
		existing[messages[i].MessageID] = &messages[i]
	}
	return existing, nil
}

func loadExistingFolderMessages(tx *gorm.DB, folderID string, uids []uint32) (map[uint32]*models.FolderMessage, error) {
	existing := make(map[uint32]*models.FolderMessage)
	if len(uids) == 0 {
		return existing, nil
	}
	var rows []models.FolderMessage
	if err := tx.Where("folder_id = ? AND uid IN ?", folderID, uids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		existing[rows[i].UID] = &rows[i]
	}
	return existing, nil
}

func refreshFlags(tx *gorm.DB, folderMessageID string, flags []string) error {
	status := imapclient.FlagsToStatus(flags)
	return tx.Model(&models.FolderMessage{}).Where("id = ?", folderMessageID).Updates(map[string]interface{}{
		"flags":       normalizedFlags(flags),
		"is_read":     boolToInt(status.IsRead),
		"is_flagged":  boolToInt(status.IsFlagged),
		"is_answered": boolToInt(status.IsAnswered),
		"is_deleted":  boolToInt(status.IsDeleted),
		"is_draft":    boolToInt(status.IsDraft),
	}).Error
}

func receivedAt(payload SyncPayload) *time.Time {
	if payload.ReceivedAt != nil {
		return payload.ReceivedAt
	}
	return payload.InternalDate
}

func normalizedFlags(flags []string) *string {
	normalized := imapclient.NormalizeFlags(flags)
	if normalized == "" {
		return nil
	}
	return &normalized
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
