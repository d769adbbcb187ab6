package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"mailsentry/internal/models"
	"mailsentry/pkg/database"
)

// EmailListRow is one folder message joined with its message metadata for
// list views.
type EmailListRow struct {
	ID             string     `json:"id"`
	FolderID       string     `json:"folder_id"`
	MessageID      string     `json:"message_id"`
	UID            uint32     `json:"uid"`
	IsRead         int        `json:"is_read"`
	InternalDate   *time.Time `json:"internal_date"`
	Subject        *string    `json:"subject"`
	SenderName     *string    `json:"sender_name"`
	SenderAddress  *string    `json:"sender_address"`
	Snippet        *string    `json:"snippet"`
	PhishingLevel  string     `json:"phishing_level"`
	PhishingScore  float64    `json:"phishing_score"`
	PhishingStatus string     `json:"phishing_status"`
}

// EmailDetail bundles everything the detail view and the detection pipeline
// need about one folder message.
type EmailDetail struct {
	FolderMessage *models.FolderMessage
	Message       *models.Message
	Body          *models.Body
	Recipients    []models.Recipient
	Account       *models.EmailAccount
}

type EmailRepository struct{}

func NewEmailRepository() *EmailRepository {
	return &EmailRepository{}
}

// ParseListCursor decodes a "{unix_millis}_{id}" cursor.
func ParseListCursor(cursor string) (*time.Time, string, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return nil, "", nil
	}
	sep := strings.Index(cursor, "_")
	if sep <= 0 || sep == len(cursor)-1 {
		return nil, "", fmt.Errorf("invalid cursor: %s", cursor)
	}
	millis, err := strconv.ParseInt(cursor[:sep], 10, 64)
	if err != nil {
		return nil, "", fmt.Errorf("invalid cursor: %s", cursor)
	}
	t := time.UnixMilli(millis).UTC()
	return &t, cursor[sep+1:], nil
}

// ListByFolderIDs pages folder messages ordered by (internal_date DESC, id
// DESC). The cursor condition is a strict less-than on the combined key so
// rows sharing an internal_date never repeat across pages, and rows inserted
// at the head never interleave into an already-served page.
func (r *EmailRepository) ListByFolderIDs(ctx context.Context, folderIDs []string, cursorDate *time.Time, cursorID string, limit int) ([]EmailListRow, *string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(folderIDs) == 0 {
		return []EmailListRow{}, nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := database.GetDB().WithContext(ctx).
		Table("folder_messages AS fm").
		Select(strings.Join([]string{
			"fm.id", "fm.folder_id", "fm.message_id", "fm.uid", "fm.is_read", "fm.internal_date",
			"m.subject", "m.sender_name", "m.sender_address", "m.snippet",
			"m.phishing_level", "m.phishing_score", "m.phishing_status",
		}, ", ")).
		Joins("JOIN messages m ON m.id = fm.message_id").
		Where("fm.folder_id IN ?", folderIDs)

	if cursorDate != nil && cursorID != "" {
		query = query.Where(
			"(fm.internal_date < ?) OR (fm.internal_date = ? AND fm.id < ?)",
			cursorDate, cursorDate, cursorID,
		)
	}

	var rows []EmailListRow
	err := query.
		Order("fm.internal_date DESC").
		Order("fm.id DESC").
		Limit(limit + 1).
		Scan(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *string
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		if last.InternalDate != nil {
			cursor := fmt.Sprintf("%d_%s", last.InternalDate.UnixMilli(), last.ID)
			nextCursor = &cursor
		}
	}

	return rows, nextCursor, nil
}

// GetDetail loads a folder message with its message, body, recipients and
// owning account.
func (r *EmailRepository) GetDetail(ctx context.Context, folderMessageID string) (*EmailDetail, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := database.GetDB().WithContext(ctx)

	var fm models.FolderMessage
	if err := db.Where("id = ?", folderMessageID).First(&fm).Error; err != nil {
		return nil, err
	}

	var message models.Message
	if err := db.Where("id = ?", fm.MessageID).First(&message).Error; err != nil {
		return nil, err
	}

	detail := &EmailDetail{FolderMessage: &fm, Message: &message}

	var body models.Body
	if err := db.Where("message_id = ?", message.ID).First(&body).Error; err == nil {
		detail.Body = &body
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var recipients []models.Recipient
	if err := db.Where("message_id = ?", message.ID).Find(&recipients).Error; err == nil {
		detail.Recipients = recipients
	}

	var account models.EmailAccount
	if err := db.Where("id = ?", message.AccountID).First(&account).Error; err == nil {
		detail.Account = &account
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	return detail, nil
}

// MarkAsRead is idempotent; marking an already-read row is a no-op.
func (r *EmailRepository) MarkAsRead(folderMessageID string) error {
	return database.GetDB().Model(&models.FolderMessage{}).
		Where("id = ?", folderMessageID).
		Update("is_read", 1).Error
}

// UpdatePhishingResult writes the classification fields atomically.
func (r *EmailRepository) UpdatePhishingResult(messageID, level string, score float64, reason, status string) error {
	return database.GetDB().Model(&models.Message{}).Where("id = ?", messageID).Updates(map[string]interface{}{
		"phishing_level":  level,
		"phishing_score":  score,
		"phishing_reason": reason,
		"phishing_status": status,
	}).Error
}

// GetAllFolderMessageIDs returns every folder message id; used by the
// operator-triggered global re-detection.
func (r *EmailRepository) GetAllFolderMessageIDs() ([]string, error) {
	var ids []string
	err := database.GetDB().Model(&models.FolderMessage{}).Order("created_at ASC").Pluck("id", &ids).Error
	return ids, err
}

// ResetPhishingPending flips messages back to PENDING before re-detection.
func (r *EmailRepository) ResetPhishingPending(messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	const chunkSize = 200
	for i := 0; i < len(messageIDs); i += chunkSize {
		end := i + chunkSize
		if end > len(messageIDs) {
			end = len(messageIDs)
		}
		if err := database.GetDB().Model(&models.Message{}).
			Where("id IN ?", messageIDs[i:end]).
			Update("phishing_status", models.PhishingStatusPending).Error; err != nil {
			return err
		}
	}
	return nil
}

// MessageIDsForFolderMessages resolves folder message ids to message ids.
func (r *EmailRepository) MessageIDsForFolderMessages(folderMessageIDs []string) ([]string, error) {
	if len(folderMessageIDs) == 0 {
		return nil, nil
	}
	var ids []string
	const chunkSize = 200
	for i := 0; i < len(folderMessageIDs); i += chunkSize {
		end := i + chunkSize
		if end > len(folderMessageIDs) {
			end = len(folderMessageIDs)
		}
		var chunk []string
		if err := database.GetDB().Model(&models.FolderMessage{}).
			Where("id IN ?", folderMessageIDs[i:end]).
			Distinct().Pluck("message_id", &chunk).Error; err != nil {
			return nil, err
		}
		ids = append(ids, chunk...)
	}
	return ids, nil
}
