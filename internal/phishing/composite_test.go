package phishing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"mailsentry/internal/models"
)

type stubDetector struct {
	name   string
	result Result
	err    error
	calls  int
}

func (d *stubDetector) Name() string { return d.name }

func (d *stubDetector) Detect(ctx context.Context, in Input) (Result, error) {
	d.calls++
	return d.result, d.err
}

func (d *stubDetector) Info() map[string]interface{} {
	return map[string]interface{}{"name": d.name}
}

func TestCompositeTakesMaximum(t *testing.T) {
	composite := NewCompositeDetector(
		&stubDetector{name: "RuleA", result: Result{Level: models.PhishingLevelSuspicious, Score: 0.65, Reason: "可疑"}},
		&stubDetector{name: "RuleB", result: Result{Level: models.PhishingLevelHighRisk, Score: 0.95, Reason: "高危"}},
		&stubDetector{name: "RuleC", result: Result{Level: models.PhishingLevelNormal, Score: 0.1, Reason: "正常"}},
	)

	result, err := composite.Detect(context.Background(), Input{})
	assert.NoError(t, err)
	assert.Equal(t, models.PhishingLevelHighRisk, result.Level)
	assert.Equal(t, 0.95, result.Score)
	assert.Contains(t, result.Reason, "[RuleA] 可疑")
	assert.Contains(t, result.Reason, "[RuleB] 高危")
	assert.NotContains(t, result.Reason, "RuleC")
	assert.Contains(t, result.Reason, "; ")
}

func TestCompositeScoreAndLevelMaxIndependently(t *testing.T) {
	// Max score can come from a different detector than the max level.
	composite := NewCompositeDetector(
		&stubDetector{name: "A", result: Result{Level: models.PhishingLevelHighRisk, Score: 0.85, Reason: "a"}},
		&stubDetector{name: "B", result: Result{Level: models.PhishingLevelSuspicious, Score: 0.9, Reason: "b"}},
	)
	result, err := composite.Detect(context.Background(), Input{})
	assert.NoError(t, err)
	assert.Equal(t, models.PhishingLevelHighRisk, result.Level)
	assert.Equal(t, 0.9, result.Score)
}

func TestCompositeSurvivesFailingDetector(t *testing.T) {
	composite := NewCompositeDetector(
		&stubDetector{name: "Broken", err: errors.New("boom")},
		&stubDetector{name: "OK", result: Result{Level: models.PhishingLevelSuspicious, Score: 0.7, Reason: "r"}},
	)
	result, err := composite.Detect(context.Background(), Input{})
	assert.NoError(t, err)
	assert.Equal(t, models.PhishingLevelSuspicious, result.Level)
}

func TestCompositeAllFail(t *testing.T) {
	composite := NewCompositeDetector(&stubDetector{name: "Broken", err: errors.New("boom")})
	result, err := composite.Detect(context.Background(), Input{})
	assert.NoError(t, err)
	assert.Equal(t, models.PhishingLevelNormal, result.Level)
	assert.Equal(t, 0.0, result.Score)
}

type stubToggle struct {
	enabled bool
}

func (s stubToggle) IsLongURLDetectionEnabled(ctx context.Context) bool { return s.enabled }

func TestDynamicDetectorToggle(t *testing.T) {
	ml := &stubDetector{name: "ML", result: Result{Level: models.PhishingLevelNormal, Score: 0.1}}
	longURL := &stubDetector{name: "Long", result: Result{Level: models.PhishingLevelHighRisk, Score: 1.0, Reason: "长URL"}}

	on := NewDynamicDetector(ml, longURL, stubToggle{enabled: true})
	result, err := on.Detect(context.Background(), Input{})
	assert.NoError(t, err)
	assert.Equal(t, models.PhishingLevelHighRisk, result.Level)
	assert.Equal(t, 1, longURL.calls)

	longURL.calls = 0
	ml.calls = 0
	off := NewDynamicDetector(ml, longURL, stubToggle{enabled: false})
	result, err = off.Detect(context.Background(), Input{})
	assert.NoError(t, err)
	assert.Equal(t, models.PhishingLevelNormal, result.Level)
	assert.Equal(t, 0, longURL.calls)
	assert.Equal(t, 1, ml.calls)
}
