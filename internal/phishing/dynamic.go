package phishing

import (
	"context"
)

// LongURLToggle reports whether the long-URL stage is currently enabled.
// Backed by the cached system settings.
type LongURLToggle interface {
	IsLongURLDetectionEnabled(ctx context.Context) bool
}

// DynamicDetector selects the detector set per message based on system
// settings: long-URL detection on means long-URL + ML combined, off means
// ML only.
type DynamicDetector struct {
	ml     Detector
	full   *CompositeDetector
	toggle LongURLToggle
}

func NewDynamicDetector(ml Detector, longURL Detector, toggle LongURLToggle) *DynamicDetector {
	return &DynamicDetector{
		ml:     ml,
		full:   NewCompositeDetector(longURL, ml),
		toggle: toggle,
	}
}

func (d *DynamicDetector) Name() string { return "DynamicDetector" }

func (d *DynamicDetector) Detect(ctx context.Context, in Input) (Result, error) {
	if d.toggle != nil && d.toggle.IsLongURLDetectionEnabled(ctx) {
		return d.full.Detect(ctx, in)
	}
	return d.ml.Detect(ctx, in)
}

func (d *DynamicDetector) Info() map[string]interface{} {
	return map[string]interface{}{
		"mode": "dynamic",
		"full": d.full.Info(),
		"ml":   d.ml.Info(),
	}
}
