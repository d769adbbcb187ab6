package imapclient

import (
	"strings"

	"mailsentry/internal/models"
)

// Client identification sent in the IMAP ID command.
const (
	clientIDName    = "MailSentry"
	clientIDVersion = "1.0"
	clientIDVendor  = "MailSentry Mail Client"
)

var domainProviders = map[string]func() Provider{
	"qq.com":       func() Provider { return QQProvider{} },
	"163.com":      func() Provider { return NewNetease163Provider() },
	"126.com":      func() Provider { return NewNetease126Provider() },
	"yeah.net":     func() Provider { return NewNeteaseYeahProvider() },
	"hhstu.edu.cn": func() Provider { return NewSchoolProvider() },
}

// ProviderForKind resolves an explicit provider kind. CUSTOM kinds get a
// DefaultProvider built from the supplied endpoints.
func ProviderForKind(kind string, custom ProviderConfig) Provider {
	switch kind {
	case models.ProviderQQ:
		return QQProvider{}
	case models.ProviderNetease163:
		return NewNetease163Provider()
	case models.ProviderNetease126:
		return NewNetease126Provider()
	case models.ProviderNeteaseYeah:
		return NewNeteaseYeahProvider()
	case models.ProviderSchool:
		return NewSchoolProvider()
	default:
		return NewCustomProvider("", custom)
	}
}

// ProviderForAddress detects the vendor from the address domain, falling back
// to a default provider for unknown domains.
func ProviderForAddress(address string) Provider {
	domain := addressDomain(address)
	if domain == "" {
		return NewCustomProvider("", ProviderConfig{})
	}
	if factory, ok := domainProviders[domain]; ok {
		return factory()
	}
	return NewCustomProvider("未知邮箱("+domain+")", ProviderConfig{})
}

// KindForAddress returns the provider kind detected from the address domain,
// or CUSTOM when the domain is unknown.
func KindForAddress(address string) string {
	domain := addressDomain(address)
	if domain == "" {
		return models.ProviderCustom
	}
	if factory, ok := domainProviders[domain]; ok {
		return factory().Kind()
	}
	return models.ProviderCustom
}

func addressDomain(address string) string {
	address = strings.TrimSpace(strings.ToLower(address))
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return address[at+1:]
}
