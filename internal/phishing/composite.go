package phishing

import (
	"context"
	"fmt"
	"log"
	"strings"

	"mailsentry/internal/models"
)

// CompositeDetector runs several detectors and keeps the strictest result:
// maximum level and maximum score, reasons of non-NORMAL stages joined
// with "; ".
type CompositeDetector struct {
	detectors []Detector
}

func NewCompositeDetector(detectors ...Detector) *CompositeDetector {
	return &CompositeDetector{detectors: detectors}
}

func (d *CompositeDetector) Name() string { return "CompositeDetector" }

func (d *CompositeDetector) Detect(ctx context.Context, in Input) (Result, error) {
	var results []Result
	var reasons []string

	for _, detector := range d.detectors {
		result, err := detector.Detect(ctx, in)
		if err != nil {
			log.Printf("[Detect] detector %s failed: %v", detector.Name(), err)
			continue
		}
		results = append(results, result)
		if result.Level != models.PhishingLevelNormal && result.Reason != "" {
			reasons = append(reasons, fmt.Sprintf("[%s] %s", detector.Name(), result.Reason))
		}
	}

	if len(results) == 0 {
		return NormalResult("检测器执行失败"), nil
	}

	level := models.PhishingLevelNormal
	score := 0.0
	for _, r := range results {
		level = MaxLevel(level, r.Level)
		if r.Score > score {
			score = r.Score
		}
	}

	reason := "未检测到明显威胁"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return Result{Level: level, Score: score, Reason: reason}, nil
}

func (d *CompositeDetector) Info() map[string]interface{} {
	infos := make([]map[string]interface{}, 0, len(d.detectors))
	for _, detector := range d.detectors {
		infos = append(infos, map[string]interface{}{
			"name": detector.Name(),
			"info": detector.Info(),
		})
	}
	return map[string]interface{}{
		"mode":      "composite",
		"detectors": infos,
	}
}
