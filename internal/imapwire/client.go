package imapwire

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	appErrors "github.com/clientflow/mailsync/internal/errors"
)

// fetchItems is what every FETCH asks for: enough to cache the message
// without pulling the full raw source.
const fetchItems = "(UID FLAGS INTERNALDATE ENVELOPE BODY.PEEK[TEXT])"

// ServerError is a tagged NO or BAD completion for an issued command.
type ServerError struct {
	Tag    string
	Status string
	Line   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %s: %s", e.Status, e.Line)
}

// Client implements the tagged command/response discipline over one
// connection. One command at a time; tags are never reused.
type Client struct {
	conn   *Conn
	tagSeq int
}

func NewClient(conn *Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) nextTag() string {
	c.tagSeq++
	return fmt.Sprintf("A%04d", c.tagSeq)
}

// ReadGreeting consumes the single untagged line the server sends after
// the connection is established.
func (c *Client) ReadGreeting(timeout time.Duration) (string, error) {
	line, err := c.conn.ReadLine(timeout)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(line, "*") {
		return line, errors.Errorf("unexpected greeting: %q", strings.TrimSpace(line))
	}
	return line, nil
}

// Command sends one tagged command and accumulates the raw response until
// the completion line for that tag arrives. The raw text is returned even
// on NO/BAD so callers can inspect what the server said.
func (c *Client) Command(text string, timeout time.Duration) (string, error) {
	tag := c.nextTag()
	if err := c.conn.Write([]byte(tag + " " + text + "\r\n")); err != nil {
		return "", err
	}

	var status, statusLine string
	raw, err := c.conn.ReadUntil(func(line string) bool {
		if !strings.HasPrefix(line, tag+" ") {
			return false
		}
		fields := strings.Fields(strings.TrimPrefix(line, tag+" "))
		if len(fields) > 0 {
			status = fields[0]
		}
		statusLine = line
		return true
	}, 0, timeout)
	if err != nil {
		return raw, err
	}

	if status != "OK" {
		return raw, &ServerError{Tag: tag, Status: status, Line: statusLine}
	}
	return raw, nil
}

// Login authenticates with minimal quoting of the credentials. The
// password is never logged by this layer.
func (c *Client) Login(username, password string, timeout time.Duration) error {
	cmd := fmt.Sprintf("LOGIN %s %s", quoteString(username), quoteString(password))
	if _, err := c.Command(cmd, timeout); err != nil {
		var srvErr *ServerError
		if errors.As(err, &srvErr) {
			return errors.Wrap(appErrors.ErrAuthFailed, srvErr.Line)
		}
		return err
	}
	return nil
}

// ListFolders asks for every mailbox the server reports.
func (c *Client) ListFolders(timeout time.Duration) (string, error) {
	return c.Command(`LIST "" "*"`, timeout)
}

func (c *Client) Select(folder string, timeout time.Duration) (string, error) {
	raw, err := c.Command("SELECT "+quoteString(folder), timeout)
	if err != nil {
		var srvErr *ServerError
		if errors.As(err, &srvErr) {
			return raw, errors.Wrap(appErrors.ErrSelectFailed, srvErr.Line)
		}
		return raw, err
	}
	return raw, nil
}

// FetchSeqRange fetches metadata and text bodies for the message sequence
// numbers from..to inclusive.
func (c *Client) FetchSeqRange(from, to uint32, timeout time.Duration) (string, error) {
	raw, err := c.Command(fmt.Sprintf("FETCH %d:%d %s", from, to, fetchItems), timeout)
	if err != nil {
		var srvErr *ServerError
		if errors.As(err, &srvErr) {
			return raw, errors.Wrap(appErrors.ErrFetchFailed, srvErr.Line)
		}
		return raw, err
	}
	return raw, nil
}

// Logout is best-effort; a NO/BAD here is still a completed logout from
// our side.
func (c *Client) Logout(timeout time.Duration) error {
	_, err := c.Command("LOGOUT", timeout)
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return nil
	}
	return err
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// quoteString renders an IMAP quoted string, escaping backslash and quote.
func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
