package imapclient

import (
	"sort"
	"strings"
	"time"
)

// FlagStatus carries the boolean projection of IMAP system flags.
type FlagStatus struct {
	IsRead     bool
	IsFlagged  bool
	IsAnswered bool
	IsDeleted  bool
	IsDraft    bool
}

// NormalizeFlags renders a stable, sorted flags string for storage.
func NormalizeFlags(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	sorted := make([]string, len(flags))
	copy(sorted, flags)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// FlagsToStatus maps system flags to booleans by exact case-insensitive match.
func FlagsToStatus(flags []string) FlagStatus {
	upper := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		upper[strings.ToUpper(f)] = struct{}{}
	}
	has := func(name string) bool {
		_, ok := upper[name]
		return ok
	}
	return FlagStatus{
		IsRead:     has(`\SEEN`),
		IsFlagged:  has(`\FLAGGED`),
		IsAnswered: has(`\ANSWERED`),
		IsDeleted:  has(`\DELETED`),
		IsDraft:    has(`\DRAFT`),
	}
}

var internalDateLayouts = []string{
	"02-Jan-2006 15:04:05 -0700", // RFC 3501 date-time
	"2-Jan-2006 15:04:05 -0700",
	time.RFC1123Z, // RFC 5322 fallback
	time.RFC1123,
}

// ParseInternalDate parses an INTERNALDATE string per RFC 3501, falling back
// to RFC 5322 shapes some servers emit.
func ParseInternalDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(strings.Trim(value, `"`))
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range internalDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
