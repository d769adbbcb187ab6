package models

import (
	"time"
)

// Whitelist rule kinds (Clash-style domain rules; EMAIL is sender-only).
const (
	RuleEmail         = "EMAIL"
	RuleDomain        = "DOMAIN"
	RuleDomainSuffix  = "DOMAIN-SUFFIX"
	RuleDomainKeyword = "DOMAIN-KEYWORD"
)

// SenderWhitelistRule whitelists a sender address or domain.
type SenderWhitelistRule struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	RuleType    string    `json:"rule_type" gorm:"not null"`
	RuleValue   string    `json:"rule_value" gorm:"not null"`
	Description *string   `json:"description"`
	IsActive    int       `json:"is_active" gorm:"default:1"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (SenderWhitelistRule) TableName() string {
	return "sender_whitelist_rules"
}

// URLWhitelistRule whitelists link targets by domain rule.
type URLWhitelistRule struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	RuleType    string    `json:"rule_type" gorm:"not null"`
	RuleValue   string    `json:"rule_value" gorm:"not null"`
	Description *string   `json:"description"`
	IsActive    int       `json:"is_active" gorm:"default:1"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (URLWhitelistRule) TableName() string {
	return "url_whitelist_rules"
}
