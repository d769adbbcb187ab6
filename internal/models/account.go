package models

import (
	"time"
)

// Provider kinds supported by the IMAP layer. CUSTOM requires explicit endpoints.
const (
	ProviderQQ          = "QQ"
	ProviderNetease163  = "NETEASE_163"
	ProviderNetease126  = "NETEASE_126"
	ProviderNeteaseYeah = "NETEASE_YEAH"
	ProviderSchool      = "SCHOOL_DEFAULT"
	ProviderCustom      = "CUSTOM"
)

// EmailAccount represents an external mailbox registered by a user.
// The IMAP app password is stored encrypted (see utils.PasswordEncryptor).
type EmailAccount struct {
	ID                string     `json:"id" gorm:"primaryKey"`
	OwnerUserID       string     `json:"owner_user_id" gorm:"not null;index"`
	EmailAddress      string     `json:"email_address" gorm:"not null"`
	ProviderKind      string     `json:"provider_kind" gorm:"not null;default:CUSTOM"`
	IMAPHost          string     `json:"imap_host" gorm:"not null"`
	IMAPPort          int        `json:"imap_port" gorm:"default:993"`
	SMTPHost          string     `json:"smtp_host"`
	SMTPPort          int        `json:"smtp_port" gorm:"default:465"`
	UseSSL            int        `json:"use_ssl" gorm:"default:1"`
	AuthUser          string     `json:"auth_user"`
	EncryptedPassword string     `json:"-" gorm:"not null"`
	IsActive          int        `json:"is_active" gorm:"default:1"`
	LastSyncAt        *time.Time `json:"last_sync_at"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (EmailAccount) TableName() string {
	return "email_accounts"
}

// EmailAccountResponse is the response with the credential masked
type EmailAccountResponse struct {
	ID           string     `json:"id"`
	EmailAddress string     `json:"email_address"`
	ProviderKind string     `json:"provider_kind"`
	IMAPHost     string     `json:"imap_host"`
	IMAPPort     int        `json:"imap_port"`
	SMTPHost     string     `json:"smtp_host"`
	SMTPPort     int        `json:"smtp_port"`
	UseSSL       int        `json:"use_ssl"`
	AuthUser     string     `json:"auth_user"`
	Password     string     `json:"password"`
	IsActive     int        `json:"is_active"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (a *EmailAccount) ToResponse() EmailAccountResponse {
	return EmailAccountResponse{
		ID:           a.ID,
		EmailAddress: a.EmailAddress,
		ProviderKind: a.ProviderKind,
		IMAPHost:     a.IMAPHost,
		IMAPPort:     a.IMAPPort,
		SMTPHost:     a.SMTPHost,
		SMTPPort:     a.SMTPPort,
		UseSSL:       a.UseSSL,
		AuthUser:     a.AuthUser,
		Password:     "********",
		IsActive:     a.IsActive,
		LastSyncAt:   a.LastSyncAt,
		CreatedAt:    a.CreatedAt,
	}
}
