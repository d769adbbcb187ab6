package models

import (
	"time"
)

// Phishing classification levels
const (
	PhishingLevelNormal     = "NORMAL"
	PhishingLevelSuspicious = "SUSPICIOUS"
	PhishingLevelHighRisk   = "HIGH_RISK"
)

// Phishing detection status. Transitions are PENDING -> COMPLETED only;
// operator-triggered re-detection resets to PENDING first.
const (
	PhishingStatusPending   = "PENDING"
	PhishingStatusCompleted = "COMPLETED"
)

// Recipient kinds
const (
	RecipientTo      = "TO"
	RecipientCc      = "CC"
	RecipientBcc     = "BCC"
	RecipientReplyTo = "REPLY_TO"
)

// Message is one logical email of an account, unique by (account_id, message_id).
// The same Message may appear in multiple folders via FolderMessage rows.
type Message struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	AccountID      string     `json:"account_id" gorm:"not null;uniqueIndex:idx_messages_account_mid"`
	MessageID      string     `json:"message_id" gorm:"not null;uniqueIndex:idx_messages_account_mid;size:255"`
	Subject        *string    `json:"subject"`
	SenderName     *string    `json:"sender_name"`
	SenderAddress  *string    `json:"sender_address" gorm:"index"`
	Snippet        *string    `json:"snippet"`
	ReceivedAt     *time.Time `json:"received_at"`
	Size           *int64     `json:"size"`
	PhishingLevel  string     `json:"phishing_level" gorm:"default:NORMAL"`
	PhishingScore  float64    `json:"phishing_score" gorm:"default:0"`
	PhishingReason *string    `json:"phishing_reason"`
	PhishingStatus string     `json:"phishing_status" gorm:"default:PENDING;index"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Message) TableName() string {
	return "messages"
}

// Body holds the large text/html columns, 1:1 with Message.
type Body struct {
	MessageID   string  `json:"message_id" gorm:"primaryKey"`
	ContentText *string `json:"content_text"`
	ContentHTML *string `json:"content_html"`
}

func (Body) TableName() string {
	return "bodies"
}

// Recipient is one address of a To/Cc/Bcc/Reply-To header.
type Recipient struct {
	ID          string  `json:"id" gorm:"primaryKey"`
	MessageID   string  `json:"message_id" gorm:"not null;index"`
	Kind        string  `json:"kind" gorm:"not null"`
	DisplayName *string `json:"display_name"`
	Address     string  `json:"address" gorm:"not null"`
}

func (Recipient) TableName() string {
	return "recipients"
}

// FolderMessage is one appearance of a Message inside a Folder,
// unique by (folder_id, uid). Listing order is (internal_date DESC, id DESC).
type FolderMessage struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	FolderID     string     `json:"folder_id" gorm:"not null;uniqueIndex:idx_folder_messages_folder_uid"`
	MessageID    string     `json:"message_id" gorm:"not null;index"`
	UID          uint32     `json:"uid" gorm:"not null;uniqueIndex:idx_folder_messages_folder_uid"`
	Flags        *string    `json:"flags"`
	IsRead       int        `json:"is_read" gorm:"default:0"`
	IsFlagged    int        `json:"is_flagged" gorm:"default:0"`
	IsAnswered   int        `json:"is_answered" gorm:"default:0"`
	IsDeleted    int        `json:"is_deleted" gorm:"default:0"`
	IsDraft      int        `json:"is_draft" gorm:"default:0"`
	InternalDate *time.Time `json:"internal_date" gorm:"index"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (FolderMessage) TableName() string {
	return "folder_messages"
}
