package phishing

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"mailsentry/internal/models"
)

func newTestLongURLDetector() *LongURLDetector {
	return NewLongURLDetector(150, 100, NewScoreLevelMapper(0.6, 0.8))
}

// urlOfLength builds an URL whose total character count is exactly n.
func urlOfLength(n int) string {
	prefix := "http://e.com/"
	return prefix + strings.Repeat("a", n-len(prefix))
}

func TestLongURLLengthBoundary(t *testing.T) {
	detector := newTestLongURLDetector()

	tests := []struct {
		name   string
		length int
		level  string
		score  float64
	}{
		{"exactly 150 is not high risk", 150, models.PhishingLevelSuspicious, 0.6},
		{"151 is high risk", 151, models.PhishingLevelHighRisk, 1.0},
		{"exactly 100 is normal", 100, models.PhishingLevelNormal, 0.0},
		{"101 is suspicious", 101, models.PhishingLevelSuspicious, 0.6},
		{"short is normal", 40, models.PhishingLevelNormal, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := urlOfLength(tt.length)
			assert.Len(t, url, tt.length)

			result, err := detector.Detect(context.Background(), Input{
				ContentText: "请点击 " + url + " 查看",
			})
			assert.NoError(t, err)
			assert.Equal(t, tt.level, result.Level)
			assert.Equal(t, tt.score, result.Score)
		})
	}
}

func TestLongURLInHTMLAnchor(t *testing.T) {
	detector := newTestLongURLDetector()
	long := urlOfLength(160)
	html := fmt.Sprintf(`<a href="%s">点此领取</a>`, long)

	result, err := detector.Detect(context.Background(), Input{ContentHTML: html})
	assert.NoError(t, err)
	assert.Equal(t, models.PhishingLevelHighRisk, result.Level)
	assert.Equal(t, 1.0, result.Score)
	assert.Contains(t, result.Reason, "超长超链接")
}

func TestDisguisedHyperlink(t *testing.T) {
	detector := newTestLongURLDetector()
	href := urlOfLength(120)
	html := fmt.Sprintf(`<a href="%s">www.baidu.com</a>`, href)

	result, err := detector.Detect(context.Background(), Input{ContentHTML: html})
	assert.NoError(t, err)
	assert.Equal(t, models.PhishingLevelHighRisk, result.Level)
	assert.InDelta(t, 0.9, result.Score, 1e-9)
	assert.Contains(t, result.Reason, "伪装超链接")
}

func TestDisguiseNotFlaggedWhenHrefMatchesDisplay(t *testing.T) {
	detector := newTestLongURLDetector()
	// href starts with the display domain: legitimate, even if long-ish.
	href := "https://www.example.com/" + strings.Repeat("p", 90)
	html := fmt.Sprintf(`<a href="%s">www.example.com</a>`, href)

	result, err := detector.Detect(context.Background(), Input{ContentHTML: html})
	assert.NoError(t, err)
	assert.NotContains(t, result.Reason, "伪装超链接")
}

func TestDisguiseIgnoresNonDomainText(t *testing.T) {
	detector := newTestLongURLDetector()
	href := urlOfLength(120)
	html := fmt.Sprintf(`<a href="%s">点击这里</a>`, href)

	result, err := detector.Detect(context.Background(), Input{ContentHTML: html})
	assert.NoError(t, err)
	assert.NotContains(t, result.Reason, "伪装超链接")
	// Still suspicious by length.
	assert.Equal(t, models.PhishingLevelSuspicious, result.Level)
}

func TestLongURLNoThreats(t *testing.T) {
	detector := newTestLongURLDetector()
	result, err := detector.Detect(context.Background(), Input{
		ContentText: "没有链接的正常邮件",
		ContentHTML: `<p>hello <a href="https://example.com/ok">ok</a></p>`,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.PhishingLevelNormal, result.Level)
	assert.Equal(t, 0.0, result.Score)
	assert.Contains(t, result.Reason, "未检测到长URL威胁")
}

func TestExtractAnchorURLsIgnoresResources(t *testing.T) {
	html := `<img src="http://cdn.example.com/pic.png"><a href="http://example.com/page">x</a><script src="http://cdn.example.com/app.js"></script>`
	urls := ExtractAnchorURLs(html)
	assert.Equal(t, []string{"http://example.com/page"}, urls)
}

func TestExtractTextURLsStopsAtDelimiters(t *testing.T) {
	urls := ExtractTextURLs(`见 (http://a.example/x) 和 http://b.example/y<end>`)
	assert.Equal(t, []string{"http://a.example/x", "http://b.example/y"}, urls)
}
