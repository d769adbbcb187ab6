package services

import (
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mailsentry/internal/models"
	"mailsentry/internal/repository"
)

// SenderWhitelistService owns the sender whitelist rules and the in-memory
// matcher cache consulted by the detection pipeline. The cache is read-mostly
// behind a RWMutex; writes happen only through Refresh, which every rule
// mutation triggers.
type SenderWhitelistService struct {
	repo *repository.SenderWhitelistRepository

	mu     sync.RWMutex
	rules  []models.SenderWhitelistRule
	loaded bool
}

func NewSenderWhitelistService() *SenderWhitelistService {
	return &SenderWhitelistService{
		repo: repository.NewSenderWhitelistRepository(),
	}
}

// Refresh reloads the active rules into the cache.
func (s *SenderWhitelistService) Refresh() error {
	rules, err := s.repo.FindAllActive()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.rules = rules
	s.loaded = true
	s.mu.Unlock()
	log.Printf("[Whitelist] sender rules cache refreshed: %d rules", len(rules))
	return nil
}

// IsWhitelisted checks a full sender address against the cached rules.
func (s *SenderWhitelistService) IsWhitelisted(senderAddress string) (bool, error) {
	senderAddress = strings.ToLower(strings.TrimSpace(senderAddress))
	if senderAddress == "" {
		return false, nil
	}
	domain := EmailDomain(senderAddress)
	if domain == "" {
		return false, nil
	}

	s.mu.RLock()
	loaded := s.loaded
	rules := s.rules
	s.mu.RUnlock()

	if !loaded {
		if err := s.Refresh(); err != nil {
			return false, err
		}
		s.mu.RLock()
		rules = s.rules
		s.mu.RUnlock()
	}

	for _, rule := range rules {
		if MatchSenderRule(senderAddress, domain, rule.RuleType, rule.RuleValue) {
			return true, nil
		}
	}
	return false, nil
}

type WhitelistRuleInput struct {
	RuleType    string  `json:"rule_type" binding:"required"`
	RuleValue   string  `json:"rule_value" binding:"required"`
	Description *string `json:"description"`
	IsActive    *int    `json:"is_active"`
}

func (s *SenderWhitelistService) CreateRule(input WhitelistRuleInput) (*models.SenderWhitelistRule, error) {
	isActive := 1
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	rule := &models.SenderWhitelistRule{
		ID:          uuid.NewString(),
		RuleType:    strings.ToUpper(strings.TrimSpace(input.RuleType)),
		RuleValue:   strings.ToLower(strings.TrimSpace(input.RuleValue)),
		Description: input.Description,
		IsActive:    isActive,
	}
	if err := s.repo.Create(rule); err != nil {
		return nil, err
	}
	if err := s.Refresh(); err != nil {
		log.Printf("[Whitelist] refresh after create failed: %v", err)
	}
	return rule, nil
}

func (s *SenderWhitelistService) ListRules() ([]models.SenderWhitelistRule, error) {
	return s.repo.FindAll()
}

func (s *SenderWhitelistService) UpdateRule(id string, data map[string]interface{}) error {
	if err := s.repo.Update(id, data); err != nil {
		return err
	}
	if err := s.Refresh(); err != nil {
		log.Printf("[Whitelist] refresh after update failed: %v", err)
	}
	return nil
}

func (s *SenderWhitelistService) DeleteRule(id string) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if err := s.Refresh(); err != nil {
		log.Printf("[Whitelist] refresh after delete failed: %v", err)
	}
	return nil
}

// EmailDomain extracts the domain part of an email address.
func EmailDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}

// MatchSenderRule checks one sender against one rule.
//
// DOMAIN-SUFFIX matches the domain itself or any sub-domain of it, never a
// bare substring: evilqq.com must not match suffix qq.com.
func MatchSenderRule(email, domain, ruleType, ruleValue string) bool {
	email = strings.ToLower(email)
	domain = strings.ToLower(domain)
	ruleValue = strings.ToLower(ruleValue)

	switch ruleType {
	case models.RuleEmail:
		return email == ruleValue
	case models.RuleDomain:
		return domain == ruleValue
	case models.RuleDomainSuffix:
		return domain == ruleValue || strings.HasSuffix(domain, "."+ruleValue)
	case models.RuleDomainKeyword:
		return ruleValue != "" && strings.Contains(domain, ruleValue)
	}
	return false
}
