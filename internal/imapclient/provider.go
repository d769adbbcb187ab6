package imapclient

import (
	"strings"
	"time"

	"github.com/emersion/go-imap/client"

	"mailsentry/internal/models"
)

// ProviderConfig holds the default server endpoints of a mail vendor.
type ProviderConfig struct {
	IMAPHost string
	IMAPPort int
	SMTPHost string
	SMTPPort int
	UseSSL   bool
}

// Provider captures vendor-specific IMAP behavior. Implementations must be
// stateless; a single instance is shared across sessions.
type Provider interface {
	// Name is the human-readable vendor name, used in logs.
	Name() string

	// Kind is the stable provider identifier stored on accounts.
	Kind() string

	// DefaultConfig returns the vendor's default endpoints.
	DefaultConfig() ProviderConfig

	// PostLogin runs right after a successful LOGIN. Netease requires an
	// ID command here; without it SELECT fails with "Unsafe Login".
	PostLogin(c *client.Client) error

	// FormatMailboxName applies the vendor's wire quoting to a folder name.
	FormatMailboxName(name string) string

	// RequiresRawUIDSearch reports whether UID SEARCH must be sent at the
	// protocol layer. Netease rejects the CHARSET parameter generic
	// libraries inject into SEARCH.
	RequiresRawUIDSearch() bool

	// SpecialFolders maps logical folder roles to vendor folder names.
	SpecialFolders() map[string]string

	// ConnectTimeout is the dial timeout for this vendor.
	ConnectTimeout() time.Duration
}

// QuoteMailboxName wraps a folder name in quotes when it contains a space or
// a quote, escaping backslashes and quotes. Already-quoted names pass through.
func QuoteMailboxName(name string) string {
	if name == "" {
		return name
	}
	if strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		return name
	}
	if !strings.Contains(name, " ") && !strings.Contains(name, `"`) {
		return name
	}
	escaped := strings.ReplaceAll(name, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

func defaultSpecialFolders() map[string]string {
	return map[string]string{
		"inbox":  "INBOX",
		"sent":   "Sent",
		"drafts": "Drafts",
		"trash":  "Trash",
		"junk":   "Junk",
	}
}

// QQProvider covers QQ mail. Standard IMAP, no special handling; the account
// must use an authorization code instead of the login password.
type QQProvider struct{}

func (QQProvider) Name() string { return "QQ邮箱" }
func (QQProvider) Kind() string { return models.ProviderQQ }

func (QQProvider) DefaultConfig() ProviderConfig {
	return ProviderConfig{
		IMAPHost: "imap.qq.com",
		IMAPPort: 993,
		SMTPHost: "smtp.qq.com",
		SMTPPort: 465,
		UseSSL:   true,
	}
}

func (QQProvider) PostLogin(c *client.Client) error     { return nil }
func (QQProvider) FormatMailboxName(name string) string { return QuoteMailboxName(name) }
func (QQProvider) RequiresRawUIDSearch() bool           { return false }
func (QQProvider) SpecialFolders() map[string]string    { return defaultSpecialFolders() }
func (QQProvider) ConnectTimeout() time.Duration        { return 30 * time.Second }

// NeteaseProvider covers the 163/126/yeah.net family. The family requires a
// post-login ID command and the raw UID SEARCH dialect.
type NeteaseProvider struct {
	kind     string
	name     string
	imapHost string
	smtpHost string
}

func NewNetease163Provider() *NeteaseProvider {
	return &NeteaseProvider{
		kind:     models.ProviderNetease163,
		name:     "网易163邮箱",
		imapHost: "imap.163.com",
		smtpHost: "smtp.163.com",
	}
}

func NewNetease126Provider() *NeteaseProvider {
	return &NeteaseProvider{
		kind:     models.ProviderNetease126,
		name:     "网易126邮箱",
		imapHost: "imap.126.com",
		smtpHost: "smtp.126.com",
	}
}

func NewNeteaseYeahProvider() *NeteaseProvider {
	return &NeteaseProvider{
		kind:     models.ProviderNeteaseYeah,
		name:     "网易yeah邮箱",
		imapHost: "imap.yeah.net",
		smtpHost: "smtp.yeah.net",
	}
}

func (p *NeteaseProvider) Name() string { return p.name }
func (p *NeteaseProvider) Kind() string { return p.kind }

func (p *NeteaseProvider) DefaultConfig() ProviderConfig {
	return ProviderConfig{
		IMAPHost: p.imapHost,
		IMAPPort: 993,
		SMTPHost: p.smtpHost,
		SMTPPort: 465,
		UseSSL:   true,
	}
}

// PostLogin sends the ID command Netease mandates. The argument must be a
// single parenthesized list of quoted key/value pairs; the library formatter
// would emit unquoted atoms, so the literal is sent raw.
func (p *NeteaseProvider) PostLogin(c *client.Client) error {
	return sendClientID(c, clientIDName, clientIDVersion, clientIDVendor)
}

func (p *NeteaseProvider) FormatMailboxName(name string) string { return QuoteMailboxName(name) }
func (p *NeteaseProvider) RequiresRawUIDSearch() bool           { return true }

// SpecialFolders for Netease use UTF-7 encoded Chinese names.
func (p *NeteaseProvider) SpecialFolders() map[string]string {
	return map[string]string{
		"inbox":  "INBOX",
		"sent":   "&XfJT0ZAB-",    // 已发送
		"drafts": "&g0l6P3ux-",    // 草稿箱
		"trash":  "&XfJSIJZk-",    // 已删除
		"junk":   "&V4NXPpCuTvY-", // 垃圾邮件
	}
}

// Netease servers can be slow to answer the greeting.
func (p *NeteaseProvider) ConnectTimeout() time.Duration { return 60 * time.Second }

// DefaultProvider covers school, enterprise and custom mailboxes over
// standard IMAP/SSL.
type DefaultProvider struct {
	kind   string
	name   string
	config ProviderConfig
}

func NewSchoolProvider() *DefaultProvider {
	return &DefaultProvider{
		kind: models.ProviderSchool,
		name: "学校邮箱",
		config: ProviderConfig{
			IMAPHost: "mail.hhstu.edu.cn",
			IMAPPort: 993,
			SMTPHost: "mail.hhstu.edu.cn",
			SMTPPort: 465,
			UseSSL:   true,
		},
	}
}

func NewCustomProvider(name string, config ProviderConfig) *DefaultProvider {
	if name == "" {
		name = "自定义邮箱"
	}
	if config.IMAPPort == 0 {
		config.IMAPPort = 993
	}
	if config.SMTPPort == 0 {
		config.SMTPPort = 465
	}
	return &DefaultProvider{
		kind:   models.ProviderCustom,
		name:   name,
		config: config,
	}
}

func (p *DefaultProvider) Name() string                         { return p.name }
func (p *DefaultProvider) Kind() string                         { return p.kind }
func (p *DefaultProvider) DefaultConfig() ProviderConfig        { return p.config }
func (p *DefaultProvider) PostLogin(c *client.Client) error     { return nil }
func (p *DefaultProvider) FormatMailboxName(name string) string { return QuoteMailboxName(name) }
func (p *DefaultProvider) RequiresRawUIDSearch() bool           { return false }
func (p *DefaultProvider) SpecialFolders() map[string]string    { return defaultSpecialFolders() }
func (p *DefaultProvider) ConnectTimeout() time.Duration        { return 30 * time.Second }
