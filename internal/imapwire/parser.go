package imapwire

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	appErrors "github.com/clientflow/mailsync/internal/errors"
)

const (
	// PlaceholderSubject is stored when the envelope carries no usable
	// subject.
	PlaceholderSubject = "(no subject)"
	// PlaceholderSender is stored when the sender fragment cannot be
	// parsed. Graceful degradation, never a dropped message.
	PlaceholderSender = "unknown@unknown"
)

// Selection is the result of selecting one folder.
type Selection struct {
	Exists uint32
	Recent uint32
}

// Message is one parsed message from a FETCH response.
type Message struct {
	UID          uint32
	Flags        []string
	InternalDate time.Time
	Subject      string
	FromName     string
	FromAddress  string
	BodyText     string
}

func (m *Message) HasFlag(flag string) bool {
	for _, f := range m.Flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

var (
	listLineRegex = regexp.MustCompile(`(?m)^\* LIST \([^)]*\) (?:"[^"]*"|NIL) (?:"(.+?)"|(\S+))\s*$`)
	existsRegex   = regexp.MustCompile(`(?m)^\* (\d+) EXISTS`)
	recentRegex   = regexp.MustCompile(`(?m)^\* (\d+) RECENT`)

	fetchBlockRegex   = regexp.MustCompile(`(?m)^\* \d+ FETCH `)
	uidRegex          = regexp.MustCompile(`\bUID (\d+)`)
	flagsRegex        = regexp.MustCompile(`FLAGS \(([^)]*)\)`)
	internalDateRegex = regexp.MustCompile(`INTERNALDATE "([^"]+)"`)
	bodyLiteralRegex  = regexp.MustCompile(`BODY\[TEXT\] \{(\d+)\}\r?\n`)

	// subject is the second envelope field, after the date
	envelopeSubjectRegex = regexp.MustCompile(`^\((?:"[^"]*"|NIL) (?:"((?:[^"\\]|\\.)*)"|NIL)`)
	// sender is matched only in its common (("name" NIL "mailbox" "host"))
	// shape; anything fancier degrades to the placeholder
	envelopeSenderRegex = regexp.MustCompile(`\(\((?:"((?:[^"\\]|\\.)*)"|NIL) NIL "([^"]*)" "([^"]*)"\)\)`)
)

// ParseListFolders extracts folder names from a LIST response. Lines that
// do not match the expected shape are skipped, not fatal.
func ParseListFolders(raw string) []string {
	var folders []string
	for _, m := range listLineRegex.FindAllStringSubmatch(raw, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if name != "" {
			folders = append(folders, name)
		}
	}
	return folders
}

// ParseSelect reads the EXISTS and RECENT counts from a SELECT response.
// A folder reporting neither is simply empty.
func ParseSelect(raw string) Selection {
	var sel Selection
	if m := existsRegex.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.ParseUint(m[1], 10, 32); err == nil {
			sel.Exists = uint32(n)
		}
	}
	if m := recentRegex.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.ParseUint(m[1], 10, 32); err == nil {
			sel.Recent = uint32(n)
		}
	}
	return sel
}

// SplitFetchBlocks cuts a raw FETCH response into per-message fragments
// using the untagged FETCH delimiter.
func SplitFetchBlocks(raw string) []string {
	locs := fetchBlockRegex.FindAllStringIndex(raw, -1)
	if len(locs) == 0 {
		return nil
	}
	blocks := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, raw[loc[0]:end])
	}
	return blocks
}

// ParseFetchBlock extracts one message from a FETCH fragment. A block
// without a UID cannot be cached safely and is rejected; a garbled
// envelope rejects the block too, while merely absent fields degrade to
// placeholders.
func ParseFetchBlock(block string) (*Message, error) {
	uidMatch := uidRegex.FindStringSubmatch(block)
	if uidMatch == nil {
		return nil, appErrors.ErrMissingUID
	}
	uid64, err := strconv.ParseUint(uidMatch[1], 10, 32)
	if err != nil {
		return nil, appErrors.ErrMissingUID
	}

	msg := &Message{
		UID:         uint32(uid64),
		Subject:     PlaceholderSubject,
		FromAddress: PlaceholderSender,
	}

	if m := flagsRegex.FindStringSubmatch(block); m != nil {
		msg.Flags = strings.Fields(m[1])
	}

	if m := internalDateRegex.FindStringSubmatch(block); m != nil {
		if t, err := parseInternalDate(m[1]); err == nil {
			msg.InternalDate = t
		}
	}

	if err := parseEnvelope(block, msg); err != nil {
		return nil, err
	}

	msg.BodyText = extractBodyLiteral(block)

	return msg, nil
}

// parseEnvelope locates the parenthesized ENVELOPE section and scans it
// for the subject and sender fragments. An envelope that never closes its
// parenthesis is malformed and fails the block.
func parseEnvelope(block string, msg *Message) error {
	start := strings.Index(block, "ENVELOPE (")
	if start < 0 {
		return nil
	}

	section, ok := balancedSection(block[start+len("ENVELOPE "):])
	if !ok {
		return errors.New("malformed envelope")
	}

	if m := envelopeSubjectRegex.FindStringSubmatch(section); m != nil && m[1] != "" {
		msg.Subject = unescapeQuoted(m[1])
	}

	if m := envelopeSenderRegex.FindStringSubmatch(section); m != nil {
		if m[2] != "" && m[3] != "" {
			msg.FromName = unescapeQuoted(m[1])
			msg.FromAddress = m[2] + "@" + m[3]
		}
	}

	return nil
}

// balancedSection returns the leading parenthesized group of s, tracking
// quoted strings so parentheses inside them do not count.
func balancedSection(s string) (string, bool) {
	if len(s) == 0 || s[0] != '(' {
		return "", false
	}
	depth := 0
	inQuote := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inQuote {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inQuote = false
			}
			continue
		}
		switch ch {
		case '"':
			inQuote = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// extractBodyLiteral slices the BODY[TEXT] literal by its declared byte
// length. Literals are length-prefixed, not delimiter-terminated, so the
// declared count is trusted over any line breaks inside the content.
func extractBodyLiteral(block string) string {
	loc := bodyLiteralRegex.FindStringSubmatchIndex(block)
	if loc == nil {
		return ""
	}
	n, err := strconv.Atoi(block[loc[2]:loc[3]])
	if err != nil || n <= 0 {
		return ""
	}
	start := loc[1]
	end := start + n
	if end > len(block) {
		end = len(block)
	}
	return block[start:end]
}

var internalDateLayouts = []string{
	"02-Jan-2006 15:04:05 -0700",
	"2-Jan-2006 15:04:05 -0700",
	"02-Jan-2006 15:04:05 MST",
}

func parseInternalDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range internalDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func unescapeQuoted(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}
