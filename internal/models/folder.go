package models

import (
	"time"
)

// Folder mirrors one IMAP mailbox of an account.
// LastUID is the greatest UID successfully persisted for the current
// UIDVALIDITY generation; a UIDVALIDITY change resets it to 0.
type Folder struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	AccountID   string     `json:"account_id" gorm:"not null;uniqueIndex:idx_folders_account_name"`
	Name        string     `json:"name" gorm:"not null;uniqueIndex:idx_folders_account_name"`
	Delimiter   *string    `json:"delimiter"`
	Attributes  *string    `json:"attributes"`
	UIDValidity *uint32    `json:"uid_validity"`
	LastUID     uint32     `json:"last_uid" gorm:"default:0"`
	LastSyncAt  *time.Time `json:"last_sync_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Folder) TableName() string {
	return "folders"
}
