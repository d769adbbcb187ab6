package imapclient

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"

	"mailsentry/internal/models"
)

func TestKindForAddress(t *testing.T) {
	cases := map[string]string{
		"user@qq.com":        models.ProviderQQ,
		"USER@163.COM":       models.ProviderNetease163,
		"someone@126.com":    models.ProviderNetease126,
		"a@yeah.net":         models.ProviderNeteaseYeah,
		"s@hhstu.edu.cn":     models.ProviderSchool,
		"x@unknown-mail.com": models.ProviderCustom,
		"not-an-address":     models.ProviderCustom,
		"":                   models.ProviderCustom,
	}
	for address, expected := range cases {
		if got := KindForAddress(address); got != expected {
			t.Fatalf("KindForAddress(%q) = %q, expected %q", address, got, expected)
		}
	}
}

func TestProviderForAddressNetease(t *testing.T) {
	p := ProviderForAddress("user@163.com")
	if !p.RequiresRawUIDSearch() {
		t.Fatal("netease provider must use the raw UID SEARCH dialect")
	}
	if p.ConnectTimeout() != 60*time.Second {
		t.Fatalf("netease timeout = %s, expected 60s", p.ConnectTimeout())
	}
	cfg := p.DefaultConfig()
	if cfg.IMAPHost != "imap.163.com" || cfg.IMAPPort != 993 {
		t.Fatalf("unexpected netease endpoints: %+v", cfg)
	}
}

func TestProviderForAddressDefaultTimeout(t *testing.T) {
	p := ProviderForAddress("user@qq.com")
	if p.RequiresRawUIDSearch() {
		t.Fatal("qq provider must not require raw UID SEARCH")
	}
	if p.ConnectTimeout() != 30*time.Second {
		t.Fatalf("qq timeout = %s, expected 30s", p.ConnectTimeout())
	}
}

func TestProviderForKindCustomEndpoints(t *testing.T) {
	p := ProviderForKind(models.ProviderCustom, ProviderConfig{
		IMAPHost: "mail.corp.example",
	})
	cfg := p.DefaultConfig()
	if cfg.IMAPHost != "mail.corp.example" {
		t.Fatalf("custom imap host = %q", cfg.IMAPHost)
	}
	if cfg.IMAPPort != 993 || cfg.SMTPPort != 465 {
		t.Fatalf("custom ports not defaulted: %+v", cfg)
	}
}

func TestQuoteMailboxName(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"INBOX", "INBOX"},
		{"Sent Items", `"Sent Items"`},
		{`We"ird`, `"We\"ird"`},
		{`Back\slash folder`, `"Back\\slash folder"`},
		{`"Already Quoted"`, `"Already Quoted"`},
		{"", ""},
	}
	for _, tc := range cases {
		if got := QuoteMailboxName(tc.in); got != tc.expected {
			t.Fatalf("QuoteMailboxName(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}

func TestNeteaseSpecialFolders(t *testing.T) {
	p := NewNetease163Provider()
	folders := p.SpecialFolders()
	if folders["inbox"] != "INBOX" {
		t.Fatalf("inbox = %q", folders["inbox"])
	}
	if folders["sent"] != "&XfJT0ZAB-" {
		t.Fatalf("sent = %q", folders["sent"])
	}
}

func TestIDCommandShape(t *testing.T) {
	cmd := (&idCommand{name: "MailSentry", version: "1.0", vendor: "MailSentry Mail Client"}).Command()
	if cmd.Name != "ID" {
		t.Fatalf("command name = %q", cmd.Name)
	}
	if len(cmd.Arguments) != 1 {
		t.Fatalf("expected a single raw argument, got %d", len(cmd.Arguments))
	}
	raw := string(cmd.Arguments[0].(imap.RawString))
	expected := `("name" "MailSentry" "version" "1.0" "vendor" "MailSentry Mail Client")`
	if raw != expected {
		t.Fatalf("ID literal = %s, expected %s", raw, expected)
	}
}

func TestUIDSearchCommandShape(t *testing.T) {
	cmd := (&uidSearchSinceCommand{startUID: 41}).Command()
	if cmd.Name != "UID SEARCH" {
		t.Fatalf("command name = %q", cmd.Name)
	}
	raw := string(cmd.Arguments[0].(imap.RawString))
	if raw != "41:*" {
		t.Fatalf("search set = %q, expected 41:*", raw)
	}
}

func TestFilterAndSortUIDs(t *testing.T) {
	got := filterAndSortUIDs([]uint32{47, 45, 40, 46}, 45)
	if len(got) != 3 || got[0] != 45 || got[1] != 46 || got[2] != 47 {
		t.Fatalf("filterAndSortUIDs = %v", got)
	}
	if out := filterAndSortUIDs(nil, 1); len(out) != 0 {
		t.Fatalf("empty input should stay empty, got %v", out)
	}
}
