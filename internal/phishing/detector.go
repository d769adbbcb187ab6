package phishing

import (
	"context"

	"mailsentry/internal/models"
)

// Input is the material a detector examines.
type Input struct {
	Subject     string
	Sender      string
	ContentText string
	ContentHTML string
}

// Result is one detector's verdict. Score is a phishing probability in [0,1];
// Level must agree with the score per the ScoreLevelMapper thresholds.
type Result struct {
	Level  string  `json:"level"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// NormalResult builds a NORMAL verdict with the given reason.
func NormalResult(reason string) Result {
	return Result{Level: models.PhishingLevelNormal, Score: 0.0, Reason: reason}
}

// Detector is one phishing detection stage.
type Detector interface {
	// Name identifies the detector in combined reasons and logs.
	Name() string

	// Detect scores a single message.
	Detect(ctx context.Context, in Input) (Result, error)

	// Info reports detector metadata for the operator surface.
	Info() map[string]interface{}
}
