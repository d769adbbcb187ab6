package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	_ "github.com/emersion/go-message/charset" // register extended charsets (gbk, gb2312, ...)

	"mailsentry/internal/models"
)

// ParsedRecipient is one decoded address of a recipient header.
type ParsedRecipient struct {
	Kind    string
	Name    string
	Address string
}

// ParsedMessage is the structured projection of raw RFC 5322 bytes.
type ParsedMessage struct {
	MessageID     string
	Subject       string
	SenderName    string
	SenderAddress string
	Recipients    []ParsedRecipient
	ContentText   string
	ContentHTML   string
	ReceivedAt    *time.Time
	Snippet       string
}

const snippetMaxRunes = 200

// Parse converts raw message bytes into a ParsedMessage. Header encoded-words
// are decoded; unknown charsets fall back to UTF-8 with replacement via the
// charset registry. The first text/plain part fills ContentText, the first
// text/html part fills ContentHTML.
func Parse(raw []byte) (*ParsedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return nil, fmt.Errorf("create mail reader: %w", err)
	}

	header := mr.Header
	parsed := &ParsedMessage{}

	if id, err := header.MessageID(); err == nil && id != "" {
		parsed.MessageID = id
	} else if v := strings.TrimSpace(header.Get("Message-Id")); v != "" {
		parsed.MessageID = strings.Trim(v, "<>")
	}

	if subject, err := header.Subject(); err == nil {
		parsed.Subject = strings.TrimSpace(subject)
	} else {
		parsed.Subject = strings.TrimSpace(header.Get("Subject"))
	}

	if addrs, err := header.AddressList("From"); err == nil && len(addrs) > 0 {
		parsed.SenderName = strings.TrimSpace(addrs[0].Name)
		parsed.SenderAddress = strings.TrimSpace(addrs[0].Address)
	}

	parsed.Recipients = parseRecipients(header)

	if date, err := header.Date(); err == nil && !date.IsZero() {
		parsed.ReceivedAt = &date
	}

	parsed.ContentText, parsed.ContentHTML = extractContent(mr)
	parsed.Snippet = BuildSnippet(parsed.ContentText, parsed.ContentHTML)

	return parsed, nil
}

func parseRecipients(header mail.Header) []ParsedRecipient {
	var recipients []ParsedRecipient
	kinds := []struct {
		field string
		kind  string
	}{
		{"To", models.RecipientTo},
		{"Cc", models.RecipientCc},
		{"Bcc", models.RecipientBcc},
		{"Reply-To", models.RecipientReplyTo},
	}
	for _, k := range kinds {
		addrs, err := header.AddressList(k.field)
		if err != nil || len(addrs) == 0 {
			continue
		}
		for _, addr := range addrs {
			address := strings.TrimSpace(addr.Address)
			if address == "" {
				continue
			}
			recipients = append(recipients, ParsedRecipient{
				Kind:    k.kind,
				Name:    strings.TrimSpace(addr.Name),
				Address: address,
			})
		}
	}
	return recipients
}

func extractContent(mr *mail.Reader) (text string, html string) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("[Parse] read part error: %v", err)
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := inline.ContentType()
		if err != nil {
			continue
		}

		switch strings.ToLower(contentType) {
		case "text/plain":
			if text == "" {
				if body, err := io.ReadAll(part.Body); err == nil {
					text = string(body)
				}
			}
		case "text/html":
			if html == "" {
				if body, err := io.ReadAll(part.Body); err == nil {
					html = string(body)
				}
			}
		}
	}
	return text, html
}

var (
	scriptStyleRegex = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagRegex     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
)

// BuildSnippet produces the list preview: text (or tag-stripped HTML),
// whitespace collapsed, truncated to 200 characters.
func BuildSnippet(contentText, contentHTML string) string {
	raw := contentText
	if strings.TrimSpace(raw) == "" {
		raw = StripHTML(contentHTML)
	}
	raw = strings.TrimSpace(whitespaceRegex.ReplaceAllString(raw, " "))
	if raw == "" {
		return ""
	}
	runes := []rune(raw)
	if len(runes) > snippetMaxRunes {
		return string(runes[:snippetMaxRunes])
	}
	return raw
}

// StripHTML drops script/style elements with their contents, then the
// remaining tags.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	html = scriptStyleRegex.ReplaceAllString(html, " ")
	return htmlTagRegex.ReplaceAllString(html, " ")
}

// FallbackMessageID synthesizes a stable id for messages without a
// Message-ID header, truncated to fit the column.
func FallbackMessageID(folderName string, uid uint32) string {
	id := fmt.Sprintf("missing-%s-%d", folderName, uid)
	if len(id) > 255 {
		id = id[:255]
	}
	return id
}
