package imapclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// ErrNotConnected is returned when an operation runs before Connect.
var ErrNotConnected = errors.New("imap session not connected")

// ErrAuthFailed wraps a rejected LOGIN.
var ErrAuthFailed = errors.New("imap login rejected")

// FolderInfo describes one LIST entry.
type FolderInfo struct {
	Name       string
	Delimiter  string
	Attributes []string
}

// NoSelect reports whether the folder carries the \Noselect attribute.
func (f FolderInfo) NoSelect() bool {
	for _, attr := range f.Attributes {
		if strings.EqualFold(attr, `\Noselect`) {
			return true
		}
	}
	return false
}

// FolderStatus holds STATUS results; absent fields stay nil.
type FolderStatus struct {
	UIDValidity  *uint32
	UIDNext      *uint32
	MessageCount *uint32
}

// FetchedMessage is one UID FETCH result with the raw RFC 5322 bytes.
type FetchedMessage struct {
	UID          uint32
	Flags        []string
	InternalDate time.Time
	Size         uint32
	Raw          []byte
}

// Session wraps one authenticated IMAP/SSL connection. A session is not safe
// for concurrent use; commands are serialized per connection.
type Session struct {
	provider Provider
	c        *client.Client
	selected string
}

func NewSession(provider Provider) *Session {
	return &Session{provider: provider}
}

// Connect dials, consumes the greeting, logs in and runs the provider's
// post-login hook. Note: InsecureSkipVerify is intentionally set to true to
// support mail servers with self-signed certificates, which is common in
// enterprise environments.
func (s *Session) Connect(host string, port int, username, password string) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	dialer := &net.Dialer{Timeout: s.provider.ConnectTimeout()}

	// #nosec G402 - InsecureSkipVerify is intentional to support self-signed certs
	c, err := client.DialWithDialerTLS(dialer, addr, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	if err := c.Login(username, password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	if err := s.provider.PostLogin(c); err != nil {
		// The hook must not break the session; some server builds accept
		// SELECT without it.
		log.Printf("[IMAP] post-login hook failed for %s: %v", s.provider.Name(), err)
	}

	s.c = c
	return nil
}

// ListFolders returns all LIST entries. Callers decide what to skip
// (e.g. \Noselect folders).
func (s *Session) ListFolders() ([]FolderInfo, error) {
	if s.c == nil {
		return nil, ErrNotConnected
	}

	ch := make(chan *imap.MailboxInfo, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.c.List("", "*", ch)
	}()

	var folders []FolderInfo
	for info := range ch {
		if info == nil || info.Name == "" {
			continue
		}
		folders = append(folders, FolderInfo{
			Name:       info.Name,
			Delimiter:  info.Delimiter,
			Attributes: info.Attributes,
		})
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return folders, nil
}

// Status fetches UIDVALIDITY/UIDNEXT/MESSAGES for a folder. Fields missing
// from the response stay nil.
func (s *Session) Status(name string) (*FolderStatus, error) {
	if s.c == nil {
		return nil, ErrNotConnected
	}

	items := []imap.StatusItem{
		imap.StatusUidValidity,
		imap.StatusUidNext,
		imap.StatusMessages,
	}
	status, err := s.c.Status(name, items)
	if err != nil {
		return nil, err
	}

	result := &FolderStatus{}
	if _, ok := status.Items[imap.StatusUidValidity]; ok {
		v := status.UidValidity
		result.UIDValidity = &v
	}
	if _, ok := status.Items[imap.StatusUidNext]; ok {
		v := status.UidNext
		result.UIDNext = &v
	}
	if _, ok := status.Items[imap.StatusMessages]; ok {
		v := status.Messages
		result.MessageCount = &v
	}
	return result, nil
}

// Select puts the connection in SELECTED state for the folder.
func (s *Session) Select(name string) error {
	if s.c == nil {
		return ErrNotConnected
	}
	if _, err := s.c.Select(name, false); err != nil {
		return fmt.Errorf("select %s: %w", s.provider.FormatMailboxName(name), err)
	}
	s.selected = name
	return nil
}

// UIDSearchSince returns the sorted UIDs >= startUID that currently exist in
// the selected folder. The provider decides the dialect: Netease needs the
// raw "UID SEARCH N:*" form; everyone else goes through SEARCH UID plus a
// FETCH (UID) round-trip, because SEARCH returns sequence numbers.
func (s *Session) UIDSearchSince(startUID uint32) ([]uint32, error) {
	if s.c == nil {
		return nil, ErrNotConnected
	}
	if startUID < 1 {
		startUID = 1
	}

	if s.provider.RequiresRawUIDSearch() {
		uids, err := rawUIDSearchSince(s.c, startUID)
		if err != nil {
			return nil, err
		}
		return filterAndSortUIDs(uids, startUID), nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.Uid = new(imap.SeqSet)
	criteria.Uid.AddRange(startUID, 0)

	seqNums, err := s.c.Search(criteria)
	if err != nil {
		return nil, err
	}
	if len(seqNums) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	ch := make(chan *imap.Message, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.c.Fetch(seqSet, []imap.FetchItem{imap.FetchUid}, ch)
	}()

	var uids []uint32
	for msg := range ch {
		if msg != nil && msg.Uid > 0 {
			uids = append(uids, msg.Uid)
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return filterAndSortUIDs(uids, startUID), nil
}

// UIDFetch retrieves the listed UIDs with flags, internal date, size and the
// full body via BODY.PEEK[] (keeps \Seen untouched on the server). Messages
// the server does not return are silently omitted; a broken body on one UID
// does not abort the batch.
func (s *Session) UIDFetch(uids []uint32) ([]FetchedMessage, error) {
	if s.c == nil {
		return nil, ErrNotConnected
	}
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchUid,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchRFC822Size,
		section.FetchItem(),
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	ch := make(chan *imap.Message, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.c.UidFetch(seqSet, items, ch)
	}()

	var fetched []FetchedMessage
	for msg := range ch {
		if msg == nil || msg.Uid == 0 {
			continue
		}
		raw, err := s.readBody(msg, section)
		if err != nil {
			log.Printf("[IMAP] read body failed: uid=%d err=%v", msg.Uid, err)
			continue
		}
		if len(raw) == 0 {
			log.Printf("[IMAP] empty body: uid=%d", msg.Uid)
			continue
		}
		fetched = append(fetched, FetchedMessage{
			UID:          msg.Uid,
			Flags:        msg.Flags,
			InternalDate: msg.InternalDate,
			Size:         msg.Size,
			Raw:          raw,
		})
	}
	if err := <-errCh; err != nil {
		return fetched, err
	}
	return fetched, nil
}

// readBody extracts the literal body by declared byte count, falling back to
// marker scanning when the reader hands back still-framed response bytes.
func (s *Session) readBody(msg *imap.Message, section *imap.BodySectionName) ([]byte, error) {
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("no body section")
	}

	var raw []byte
	var err error
	if sized, ok := r.(interface{ Len() int }); ok {
		raw, err = ReadLiteral(r, sized.Len())
	} else {
		raw, err = ReadLiteral(r, -1)
	}
	if err != nil {
		return nil, err
	}

	// Some transports deliver the whole response as one buffer; recover the
	// literal from the {N} marker in that case.
	if looksFramed(raw) {
		if body, ok := ExtractLiteral(raw); ok {
			return body, nil
		}
	}
	return raw, nil
}

func looksFramed(raw []byte) bool {
	if len(raw) < 4 {
		return false
	}
	return raw[0] == '*' && literalMarkerRegex.Match(raw)
}

// Logout closes the connection; safe to call twice.
func (s *Session) Logout() {
	if s.c == nil {
		return
	}
	if err := s.c.Logout(); err != nil {
		log.Printf("[IMAP] logout error: %v", err)
	}
	s.c = nil
	s.selected = ""
}

// filterAndSortUIDs drops UIDs below the window start and sorts ascending.
// Servers answer "N:*" with the highest-UID message even when its UID is
// below N; persisting it again would be a wasted round-trip.
func filterAndSortUIDs(uids []uint32, startUID uint32) []uint32 {
	kept := uids[:0]
	for _, uid := range uids {
		if uid >= startUID {
			kept = append(kept, uid)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })
	return kept
}
