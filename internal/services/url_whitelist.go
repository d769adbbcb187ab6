package services

import (
	"log"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mailsentry/internal/models"
	"mailsentry/internal/repository"
)

// Resource extensions are never treated as clickable phishing targets
// (images, styles, scripts, fonts, media, documents).
var resourceExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {},
	".ico": {}, ".bmp": {}, ".css": {}, ".js": {}, ".woff": {}, ".woff2": {},
	".ttf": {}, ".eot": {}, ".otf": {}, ".mp3": {}, ".mp4": {}, ".avi": {},
	".mov": {}, ".wmv": {}, ".flv": {}, ".webm": {}, ".pdf": {}, ".doc": {},
	".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
}

var (
	// Only <a href> anchors; <img>/<link>/<script> references are not
	// something the user clicks.
	whitelistAnchorRegex = regexp.MustCompile(`(?is)<a\s+[^>]*href\s*=\s*["']?(https?://[^"'>\s]+)`)
	whitelistTextRegex   = regexp.MustCompile(`(?i)https?://[^\s<>"'()\[\]{}]+`)
)

// URLWhitelistService owns the URL whitelist rules and the cached matcher
// used for the detection short-circuit.
type URLWhitelistService struct {
	repo *repository.URLWhitelistRepository

	mu     sync.RWMutex
	rules  []models.URLWhitelistRule
	loaded bool
}

func NewURLWhitelistService() *URLWhitelistService {
	return &URLWhitelistService{
		repo: repository.NewURLWhitelistRepository(),
	}
}

func (s *URLWhitelistService) Refresh() error {
	rules, err := s.repo.FindAllActive()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.rules = rules
	s.loaded = true
	s.mu.Unlock()
	log.Printf("[Whitelist] url rules cache refreshed: %d rules", len(rules))
	return nil
}

// IsURLWhitelisted checks a single URL's hostname against the cached rules.
func (s *URLWhitelistService) IsURLWhitelisted(rawURL string) (bool, error) {
	domain := ExtractURLDomain(rawURL)
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
		if MatchURLRule(domain, rule.RuleType, rule.RuleValue) {
			return true, nil
		}
	}
	return false, nil
}

// AllURLsWhitelisted reports whether a non-empty URL set matches the
// whitelist entirely. An empty set is NOT whitelisted.
func (s *URLWhitelistService) AllURLsWhitelisted(urls []string) (bool, error) {
	if len(urls) == 0 {
		return false, nil
	}
	for _, u := range urls {
		ok, err := s.IsURLWhitelisted(u)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *URLWhitelistService) CreateRule(input WhitelistRuleInput) (*models.URLWhitelistRule, error) {
	isActive := 1
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	rule := &models.URLWhitelistRule{
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

func (s *URLWhitelistService) ListRules() ([]models.URLWhitelistRule, error) {
	return s.repo.FindAll()
}

func (s *URLWhitelistService) UpdateRule(id string, data map[string]interface{}) error {
	if err := s.repo.Update(id, data); err != nil {
		return err
	}
	if err := s.Refresh(); err != nil {
		log.Printf("[Whitelist] refresh after update failed: %v", err)
	}
	return nil
}

func (s *URLWhitelistService) DeleteRule(id string) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if err := s.Refresh(); err != nil {
		log.Printf("[Whitelist] refresh after delete failed: %v", err)
	}
	return nil
}

// MatchURLRule checks a hostname against one rule. Same suffix semantics as
// sender rules; EMAIL rules do not apply to URLs.
func MatchURLRule(domain, ruleType, ruleValue string) bool {
	domain = strings.ToLower(domain)
	ruleValue = strings.ToLower(ruleValue)

	switch ruleType {
	case models.RuleDomain:
		return domain == ruleValue
	case models.RuleDomainSuffix:
		return domain == ruleValue || strings.HasSuffix(domain, "."+ruleValue)
	case models.RuleDomainKeyword:
		return ruleValue != "" && strings.Contains(domain, ruleValue)
	}
	return false
}

// ExtractURLDomain returns the lowercased hostname of a URL, port stripped.
func ExtractURLDomain(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "http://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// IsResourceURL reports whether the URL path (query stripped) ends with a
// resource extension.
func IsResourceURL(rawURL string) bool {
	path := strings.ToLower(rawURL)
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndex(path, "."); i >= 0 {
		if _, ok := resourceExtensions[path[i:]]; ok {
			return true
		}
	}
	return false
}

// ExtractClickableURLsFromHTML returns de-duplicated anchor targets with
// resource links dropped.
func ExtractClickableURLsFromHTML(html string) []string {
	if html == "" {
		return nil
	}
	matches := whitelistAnchorRegex.FindAllStringSubmatch(html, -1)
	return dedupeNonResource(matches)
}

// ExtractURLsFromText returns de-duplicated plain-text URLs with resource
// links dropped. Catches phishing mails that show the raw URL as text.
func ExtractURLsFromText(text string) []string {
	if text == "" {
		return nil
	}
	found := whitelistTextRegex.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(found))
	var urls []string
	for _, u := range found {
		if IsResourceURL(u) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// ExtractMessageURLs unions the HTML anchor set and the text set.
func ExtractMessageURLs(contentText, contentHTML string) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, u := range ExtractClickableURLsFromHTML(contentHTML) {
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	for _, u := range ExtractURLsFromText(contentText) {
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls
}

func dedupeNonResource(matches [][]string) []string {
	seen := make(map[string]struct{}, len(matches))
	var urls []string
	for _, m := range matches {
		u := m[1]
		if IsResourceURL(u) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}
