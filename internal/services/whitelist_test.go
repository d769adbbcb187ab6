package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailsentry/internal/models"
)

func TestMatchSenderRule(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		ruleType  string
		ruleValue string
		expected  bool
	}{
		{"email exact match", "foo@qq.com", models.RuleEmail, "foo@qq.com", true},
		{"email mismatch", "bar@qq.com", models.RuleEmail, "foo@qq.com", false},
		{"domain exact match", "a@qq.com", models.RuleDomain, "qq.com", true},
		{"domain subdomain does not match DOMAIN", "a@mail.qq.com", models.RuleDomain, "qq.com", false},
		{"suffix matches domain itself", "a@qq.com", models.RuleDomainSuffix, "qq.com", true},
		{"suffix matches subdomain", "a@mail.qq.com", models.RuleDomainSuffix, "qq.com", true},
		{"suffix rejects lookalike", "a@evilqq.com", models.RuleDomainSuffix, "qq.com", false},
		{"suffix deep subdomain", "foo@mail.tsinghua.edu.cn", models.RuleDomainSuffix, "tsinghua.edu.cn", true},
		{"keyword substring", "a@mail.tsinghua.edu.cn", models.RuleDomainKeyword, "tsinghua", true},
		{"keyword absent", "a@pku.edu.cn", models.RuleDomainKeyword, "tsinghua", false},
		{"unknown rule type", "a@qq.com", "REGEX", "qq.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain := EmailDomain(tt.email)
			assert.Equal(t, tt.expected, MatchSenderRule(tt.email, domain, tt.ruleType, tt.ruleValue))
		})
	}
}

func TestMatchSenderRuleCaseInsensitive(t *testing.T) {
	assert.True(t, MatchSenderRule("A@QQ.com", "qq.com", models.RuleDomain, "QQ.COM"))
}

func TestMatchURLRule(t *testing.T) {
	assert.True(t, MatchURLRule("safe.example.com", models.RuleDomainSuffix, "example.com"))
	assert.False(t, MatchURLRule("evilexample.com", models.RuleDomainSuffix, "example.com"))
	assert.True(t, MatchURLRule("example.com", models.RuleDomain, "example.com"))
	assert.True(t, MatchURLRule("cdn.example.com", models.RuleDomainKeyword, "example"))
	// EMAIL rules never apply to URLs.
	assert.False(t, MatchURLRule("example.com", models.RuleEmail, "example.com"))
}

func TestExtractURLDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractURLDomain("https://EXAMPLE.com/path?q=1"))
	assert.Equal(t, "example.com", ExtractURLDomain("http://example.com:8443/x"))
	assert.Equal(t, "example.com", ExtractURLDomain("example.com/x"))
	assert.Equal(t, "", ExtractURLDomain(""))
}

func TestIsResourceURL(t *testing.T) {
	assert.True(t, IsResourceURL("http://cdn.example.com/logo.png"))
	assert.True(t, IsResourceURL("http://cdn.example.com/app.js?v=3"))
	assert.True(t, IsResourceURL("http://x.example.com/doc.pdf"))
	assert.False(t, IsResourceURL("http://x.example.com/login"))
	assert.False(t, IsResourceURL("http://x.example.com/file.html"))
}

func TestExtractClickableURLsFromHTML(t *testing.T) {
	html := `
		<a href="https://safe.example.com/x">link</a>
		<a href='https://evil.cn/x'>single quotes</a>
		<a href = "https://spaced.example.com/y">spaced equals</a>
		<img src="https://cdn.example.com/pic.png">
		<link href="https://cdn.example.com/style.css">
		<script src="https://cdn.example.com/app.js"></script>
		<a href="https://cdn.example.com/banner.jpg">resource anchor</a>`

	urls := ExtractClickableURLsFromHTML(html)
	assert.ElementsMatch(t, []string{
		"https://safe.example.com/x",
		"https://evil.cn/x",
		"https://spaced.example.com/y",
	}, urls)
}

func TestExtractMessageURLsUnionAndDedupe(t *testing.T) {
	html := `<a href="https://a.example.com/x">x</a>`
	text := "见 https://a.example.com/x 以及 https://b.example.com/y"

	urls := ExtractMessageURLs(text, html)
	assert.ElementsMatch(t, []string{
		"https://a.example.com/x",
		"https://b.example.com/y",
	}, urls)
}

func TestExtractURLsFromTextFiltersResources(t *testing.T) {
	urls := ExtractURLsFromText("图片 https://cdn.example.com/p.png 页面 https://site.example.com/page")
	assert.Equal(t, []string{"https://site.example.com/page"}, urls)
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "qq.com", EmailDomain("user@qq.com"))
	assert.Equal(t, "", EmailDomain("no-at-sign"))
	assert.Equal(t, "", EmailDomain("trailing@"))
}
