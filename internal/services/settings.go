package services

import (
	"context"
	"log"
	"sync"
	"time"

	"mailsentry/internal/models"
	"mailsentry/internal/repository"
)

// SystemSettingsService caches the singleton settings row to keep the
// per-message detection path off the database. The cache expires after a
// short TTL and is invalidated immediately on write.
type SystemSettingsService struct {
	repo     *repository.SettingsRepository
	cacheTTL time.Duration

	mu        sync.Mutex
	cached    *models.SystemSettings
	expiresAt time.Time
}

func NewSystemSettingsService() *SystemSettingsService {
	return &SystemSettingsService{
		repo:     repository.NewSettingsRepository(),
		cacheTTL: 30 * time.Second,
	}
}

// GetSettings returns the settings, refreshing the cache when stale.
func (s *SystemSettingsService) GetSettings(forceRefresh bool) (*models.SystemSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !forceRefresh && s.cached != nil && now.Before(s.expiresAt) {
		return s.cached, nil
	}

	settings, err := s.repo.GetOrCreateDefault()
	if err != nil {
		return nil, err
	}
	s.cached = settings
	s.expiresAt = now.Add(s.cacheTTL)
	return settings, nil
}

// UpdateSettings writes the given toggles and refreshes the cache.
func (s *SystemSettingsService) UpdateSettings(enableLongURLDetection *bool) (*models.SystemSettings, error) {
	data := map[string]interface{}{}
	if enableLongURLDetection != nil {
		v := 0
		if *enableLongURLDetection {
			v = 1
		}
		data["enable_long_url_detection"] = v
	}

	settings, err := s.repo.Update(data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = settings
	s.expiresAt = time.Now().Add(s.cacheTTL)
	s.mu.Unlock()

	log.Printf("[Settings] updated: enable_long_url_detection=%d", settings.EnableLongURLDetection)
	return settings, nil
}

// IsLongURLDetectionEnabled implements phishing.LongURLToggle. Errors fall
// back to enabled so a settings hiccup never silently weakens detection.
func (s *SystemSettingsService) IsLongURLDetectionEnabled(ctx context.Context) bool {
	settings, err := s.GetSettings(false)
	if err != nil {
		log.Printf("[Settings] read failed, defaulting long-url detection on: %v", err)
		return true
	}
	return settings.EnableLongURLDetection == 1
}
