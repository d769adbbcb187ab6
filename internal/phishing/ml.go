package phishing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"regexp"
	"strings"
	"sync"

	"mailsentry/internal/models"
)

var tokenRegex = regexp.MustCompile(`\w{2,}`)

// mlArtifact is the JSON export of the offline trainer: the fitted TF-IDF
// vectorizer (max_features=5000, English stop words dropped at fit time)
// and the dense network weights (5000 -> 128 relu -> 64 relu -> 1 sigmoid).
type mlArtifact struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	MaxFeatures int            `json:"max_features"`
	W1          [][]float64    `json:"w1"` // [features][128]
	B1          []float64      `json:"b1"`
	W2          [][]float64    `json:"w2"` // [128][64]
	B2          []float64      `json:"b2"`
	W3          []float64      `json:"w3"` // [64]
	B3          float64        `json:"b3"`
}

func (a *mlArtifact) validate() error {
	if len(a.Vocabulary) == 0 || len(a.IDF) == 0 {
		return fmt.Errorf("empty vectorizer")
	}
	if len(a.Vocabulary) > len(a.IDF) {
		return fmt.Errorf("vocabulary/idf size mismatch: %d > %d", len(a.Vocabulary), len(a.IDF))
	}
	if len(a.W1) != len(a.IDF) {
		return fmt.Errorf("w1 rows %d != features %d", len(a.W1), len(a.IDF))
	}
	if len(a.B1) == 0 || len(a.W2) != len(a.B1) || len(a.B2) == 0 || len(a.W3) != len(a.B2) {
		return fmt.Errorf("dense layer shape mismatch")
	}
	return nil
}

// MLClassifier scores message text with the trained artifact. The model and
// vectorizer are immutable after load and safe to share across workers. When
// the artifact is missing the classifier stays registered and contributes
// score 0.0 so the rule detectors still apply.
type MLClassifier struct {
	mapper    *ScoreLevelMapper
	modelPath string

	mu    sync.RWMutex
	model *mlArtifact
}

func NewMLClassifier(modelPath string, mapper *ScoreLevelMapper) *MLClassifier {
	if mapper == nil {
		mapper = NewScoreLevelMapper(0, 0)
	}
	c := &MLClassifier{mapper: mapper, modelPath: modelPath}
	if err := c.Reload(); err != nil {
		log.Printf("[Detect] ML classifier unavailable, rule detectors only: %v", err)
	}
	return c
}

func (c *MLClassifier) Name() string { return "MLPhishingDetector" }

// Reload reads the artifact from disk. Used at startup and by the operator
// surface after a new model is deployed.
func (c *MLClassifier) Reload() error {
	raw, err := os.ReadFile(c.modelPath)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	artifact := &mlArtifact{}
	if err := json.Unmarshal(raw, artifact); err != nil {
		return fmt.Errorf("parse model: %w", err)
	}
	if err := artifact.validate(); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}

	c.mu.Lock()
	c.model = artifact
	c.mu.Unlock()

	log.Printf("[Detect] ML model loaded: %s (features=%d)", c.modelPath, len(artifact.IDF))
	return nil
}

func (c *MLClassifier) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

func (c *MLClassifier) Detect(ctx context.Context, in Input) (Result, error) {
	c.mu.RLock()
	model := c.model
	c.mu.RUnlock()

	if model == nil {
		return NormalResult("ML检测器不可用"), nil
	}

	text := joinNonEmpty(" ", in.Subject, in.ContentText, in.ContentHTML)
	score := c.mapper.Normalize(predict(model, text))
	level := c.mapper.LevelFor(score)

	reason := "未检测到明显威胁"
	if level != models.PhishingLevelNormal {
		reason = fmt.Sprintf("机器学习模型判定钓鱼置信度%.2f", score)
	}

	return Result{Level: level, Score: score, Reason: reason}, nil
}

func (c *MLClassifier) Info() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := map[string]interface{}{
		"mode":       "ml",
		"model_path": c.modelPath,
		"is_loaded":  c.model != nil,
	}
	if c.model != nil {
		info["features"] = len(c.model.IDF)
	}
	return info
}

// predict runs the TF-IDF transform and the dense forward pass.
func predict(model *mlArtifact, text string) float64 {
	features := vectorize(model, text)

	h1 := make([]float64, len(model.B1))
	for i, b := range model.B1 {
		h1[i] = b
	}
	for featureIdx, value := range features {
		if value == 0 {
			continue
		}
		row := model.W1[featureIdx]
		for j := range h1 {
			h1[j] += value * row[j]
		}
	}
	relu(h1)

	h2 := make([]float64, len(model.B2))
	for j := range h2 {
		sum := model.B2[j]
		for i, v := range h1 {
			sum += v * model.W2[i][j]
		}
		h2[j] = sum
	}
	relu(h2)

	out := model.B3
	for i, v := range h2 {
		out += v * model.W3[i]
	}
	return sigmoid(out)
}

// vectorize computes the l2-normalized tf-idf vector as a sparse map.
func vectorize(model *mlArtifact, text string) map[int]float64 {
	tokens := tokenRegex.FindAllString(strings.ToLower(text), -1)
	counts := make(map[int]float64)
	for _, token := range tokens {
		if idx, ok := model.Vocabulary[token]; ok && idx >= 0 && idx < len(model.IDF) {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return counts
	}

	var norm float64
	for idx := range counts {
		counts[idx] *= model.IDF[idx]
		norm += counts[idx] * counts[idx]
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for idx := range counts {
			counts[idx] /= norm
		}
	}
	return counts
}

func relu(v []float64) {
	for i := range v {
		if v[i] < 0 {
			v[i] = 0
		}
	}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
