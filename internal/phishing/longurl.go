package phishing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	textURLRegex    = regexp.MustCompile(`(?i)https?://[^\s<>"'()\[\]{}]+`)
	anchorHrefRegex = regexp.MustCompile(`(?is)<a\s+[^>]*href\s*=\s*["']?(https?://[^"'>\s]+)`)
	anchorFullRegex = regexp.MustCompile(`(?is)<a\s+[^>]*href=["'](https?://[^"']+)["'][^>]*>(.*?)</a>`)
	displayDomain   = regexp.MustCompile(`(?i)^(www\.)?[\w-]+\.[a-z]{2,}$`)
	innerTagRegex   = regexp.MustCompile(`<[^>]+>`)
)

// LongURLDetector flags overlong URLs and disguised hyperlinks. URLs longer
// than the high-risk threshold score 1.0; anchors whose display text looks
// like a domain but whose href points elsewhere and exceeds the suspicious
// threshold score 0.9; lengths between the thresholds score at the
// suspicious boundary.
type LongURLDetector struct {
	highRiskLength   int
	suspiciousLength int
	mapper           *ScoreLevelMapper
}

func NewLongURLDetector(highRiskLength, suspiciousLength int, mapper *ScoreLevelMapper) *LongURLDetector {
	if highRiskLength <= 0 {
		highRiskLength = 150
	}
	if suspiciousLength <= 0 || suspiciousLength >= highRiskLength {
		suspiciousLength = 100
	}
	if mapper == nil {
		mapper = NewScoreLevelMapper(0, 0)
	}
	return &LongURLDetector{
		highRiskLength:   highRiskLength,
		suspiciousLength: suspiciousLength,
		mapper:           mapper,
	}
}

func (d *LongURLDetector) Name() string { return "LongUrlDetector" }

func (d *LongURLDetector) Detect(ctx context.Context, in Input) (Result, error) {
	score := 0.0
	var reasons []string

	textURLs := ExtractTextURLs(in.ContentText)
	var longText, suspiciousText []string
	for _, u := range textURLs {
		switch {
		case len(u) > d.highRiskLength:
			longText = append(longText, u)
		case len(u) > d.suspiciousLength:
			suspiciousText = append(suspiciousText, u)
		}
	}

	if len(longText) > 0 {
		score = 1.0
		reasons = append(reasons, fmt.Sprintf("检测到%d个超长URL(长度>%d)", len(longText), d.highRiskLength))
		for _, u := range sample(longText, 3) {
			reasons = append(reasons, fmt.Sprintf("URL长度: %d字符", len(u)))
		}
	}

	if in.ContentHTML != "" {
		htmlLinks := ExtractAnchorURLs(in.ContentHTML)
		var longHTML, suspiciousHTML []string
		for _, u := range htmlLinks {
			switch {
			case len(u) > d.highRiskLength:
				longHTML = append(longHTML, u)
			case len(u) > d.suspiciousLength:
				suspiciousHTML = append(suspiciousHTML, u)
			}
		}

		disguised := d.detectDisguisedLinks(in.ContentHTML)

		if len(longHTML) > 0 {
			score = maxFloat(score, 1.0)
			reasons = append(reasons, fmt.Sprintf("检测到%d个超长超链接(长度>%d)", len(longHTML), d.highRiskLength))
			for _, u := range sample(longHTML, 3) {
				reasons = append(reasons, fmt.Sprintf("链接长度: %d字符", len(u)))
			}
		}

		if len(disguised) > 0 {
			score = maxFloat(score, 0.9)
			reasons = append(reasons, fmt.Sprintf("检测到%d个伪装超链接", len(disguised)))
			for _, dl := range disguised[:min(3, len(disguised))] {
				reasons = append(reasons, fmt.Sprintf("显示为'%s'，实际指向长URL(长度:%d)", dl.display, len(dl.href)))
			}
		}

		if len(longHTML) == 0 && len(suspiciousHTML) > 0 {
			score = maxFloat(score, d.mapper.SuspiciousThreshold())
			reasons = append(reasons, fmt.Sprintf("检测到%d个可疑长度链接", len(suspiciousHTML)))
		}
	}

	if score < d.mapper.HighRiskThreshold() && len(suspiciousText) > 0 {
		score = maxFloat(score, d.mapper.SuspiciousThreshold())
		reasons = append(reasons, fmt.Sprintf("检测到%d个可疑长度URL", len(suspiciousText)))
	}

	reason := "未检测到长URL威胁"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return Result{
		Level:  d.mapper.LevelFor(score),
		Score:  d.mapper.Normalize(score),
		Reason: reason,
	}, nil
}

func (d *LongURLDetector) Info() map[string]interface{} {
	return map[string]interface{}{
		"mode":                  "rule_based_url",
		"url_length_high_risk":  d.highRiskLength,
		"url_length_suspicious": d.suspiciousLength,
	}
}

type disguisedLink struct {
	display string
	href    string
}

// detectDisguisedLinks finds anchors whose display text looks like a domain
// while the href points somewhere else and is long enough to hide behind it.
func (d *LongURLDetector) detectDisguisedLinks(html string) []disguisedLink {
	matches := anchorFullRegex.FindAllStringSubmatch(html, -1)
	var disguised []disguisedLink
	for _, m := range matches {
		href := m[1]
		display := strings.TrimSpace(innerTagRegex.ReplaceAllString(m[2], ""))
		if display == "" || len(href) <= d.suspiciousLength {
			continue
		}
		if strings.HasPrefix(href, "http://"+display) || strings.HasPrefix(href, "https://"+display) {
			continue
		}
		if displayDomain.MatchString(display) {
			disguised = append(disguised, disguisedLink{display: display, href: href})
		}
	}
	return disguised
}

// ExtractTextURLs finds http/https URLs in plain text.
func ExtractTextURLs(text string) []string {
	if text == "" {
		return nil
	}
	return textURLRegex.FindAllString(text, -1)
}

// ExtractAnchorURLs finds the href targets of <a> tags. Resource references
// (img/link/script) are intentionally not matched.
func ExtractAnchorURLs(html string) []string {
	if html == "" {
		return nil
	}
	matches := anchorHrefRegex.FindAllStringSubmatch(html, -1)
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, m[1])
	}
	return urls
}

func sample(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
