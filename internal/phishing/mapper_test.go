package phishing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailsentry/internal/models"
)

func TestScoreLevelMapperBoundaries(t *testing.T) {
	mapper := NewScoreLevelMapper(0.6, 0.8)

	tests := []struct {
		name  string
		score float64
		level string
	}{
		{"zero is normal", 0.0, models.PhishingLevelNormal},
		{"just below suspicious", 0.59, models.PhishingLevelNormal},
		{"exactly suspicious threshold", 0.6, models.PhishingLevelSuspicious},
		{"between thresholds", 0.79, models.PhishingLevelSuspicious},
		{"exactly high risk threshold", 0.8, models.PhishingLevelHighRisk},
		{"maximum", 1.0, models.PhishingLevelHighRisk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.level, mapper.LevelFor(tt.score))
		})
	}
}

func TestScoreLevelMapperNormalize(t *testing.T) {
	mapper := NewScoreLevelMapper(0.6, 0.8)
	assert.Equal(t, 0.0, mapper.Normalize(-1))
	assert.Equal(t, 1.0, mapper.Normalize(3.5))
	assert.Equal(t, 0.42, mapper.Normalize(0.42))
}

func TestScoreLevelMapperDefaults(t *testing.T) {
	mapper := NewScoreLevelMapper(0, 0)
	assert.Equal(t, 0.6, mapper.SuspiciousThreshold())
	assert.Equal(t, 0.8, mapper.HighRiskThreshold())
}

func TestMaxLevel(t *testing.T) {
	assert.Equal(t, models.PhishingLevelHighRisk,
		MaxLevel(models.PhishingLevelNormal, models.PhishingLevelHighRisk, models.PhishingLevelSuspicious))
	assert.Equal(t, models.PhishingLevelSuspicious,
		MaxLevel(models.PhishingLevelSuspicious, models.PhishingLevelNormal))
	assert.Equal(t, models.PhishingLevelNormal, MaxLevel())
}
