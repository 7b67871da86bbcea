package imapwire

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	appErrors "github.com/clientflow/mailsync/internal/errors"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 30 * time.Second

	// DefaultMaxResponseBytes caps a single server response. Anything
	// larger is cut off and reported instead of buffered indefinitely.
	DefaultMaxResponseBytes = 10 * 1024 * 1024

	keepAlivePeriod = 30 * time.Second
)

// ConnectError reports at which stage establishing the connection failed:
// name resolution, the TCP dial, or the TLS handshake.
type ConnectError struct {
	Stage string
	Addr  string
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s failed during %s: %v", e.Addr, e.Stage, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Conn owns a single raw byte stream to one mail server. Every read
// carries an explicit deadline; there is no unbounded wait.
type Conn struct {
	nc               net.Conn
	reader           *bufio.Reader
	maxResponseBytes int
	closed           bool
}

func NewConn(nc net.Conn) *Conn {
	return &Conn{
		nc:               nc,
		reader:           bufio.NewReader(nc),
		maxResponseBytes: DefaultMaxResponseBytes,
	}
}

// Dial establishes a TCP or TLS connection to host:port with a bounded
// connect timeout. Retrying is the caller's decision.
func Dial(host string, port int, useTLS bool) (*Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{
		Timeout:   DefaultConnectTimeout,
		KeepAlive: keepAlivePeriod,
	}

	tcp, err := dialer.Dial("tcp", addr)
	if err != nil {
		stage := "dial"
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			stage = "resolve"
		}
		return nil, &ConnectError{Stage: stage, Addr: addr, Err: err}
	}

	if !useTLS {
		return NewConn(tcp), nil
	}

	tlsConn := tls.Client(tcp, &tls.Config{ServerName: host})
	tlsConn.SetDeadline(time.Now().Add(DefaultConnectTimeout))
	if err := tlsConn.Handshake(); err != nil {
		tcp.Close()
		return nil, &ConnectError{Stage: "tls", Addr: addr, Err: err}
	}
	tlsConn.SetDeadline(time.Time{})

	return NewConn(tlsConn), nil
}

func (c *Conn) SetMaxResponseBytes(n int) {
	if n > 0 {
		c.maxResponseBytes = n
	}
}

func (c *Conn) Write(p []byte) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout)); err != nil {
		return errors.Wrap(err, "setting write deadline")
	}
	if _, err := c.nc.Write(p); err != nil {
		return errors.Wrap(err, "writing to server")
	}
	return nil
}

// ReadLine reads one terminated line within the given timeout.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	if err := c.nc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", errors.Wrap(err, "setting read deadline")
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if isTimeout(err) {
			return line, errors.Wrap(appErrors.ErrConnectionTimeout, "reading line")
		}
		return line, errors.Wrap(err, "reading line")
	}
	return line, nil
}

var literalSuffixRegex = regexp.MustCompile(`\{(\d+)\}\r?\n$`)

// ReadUntil accumulates server output line by line until stop returns true
// for a line, the byte budget is exceeded, or the deadline trips. Lines
// announcing a literal ({n} suffix) are followed by exactly n raw bytes,
// which are consumed verbatim so literal content can never satisfy stop.
func (c *Conn) ReadUntil(stop func(line string) bool, maxBytes int, timeout time.Duration) (string, error) {
	if maxBytes <= 0 {
		maxBytes = c.maxResponseBytes
	}
	deadline := time.Now().Add(timeout)

	var buf strings.Builder
	for {
		if err := c.nc.SetReadDeadline(deadline); err != nil {
			return buf.String(), errors.Wrap(err, "setting read deadline")
		}

		line, err := c.reader.ReadString('\n')
		buf.WriteString(line)
		if err != nil {
			if isTimeout(err) {
				return buf.String(), errors.Wrap(appErrors.ErrConnectionTimeout, "reading response")
			}
			return buf.String(), errors.Wrap(err, "reading response")
		}

		if buf.Len() > maxBytes {
			return buf.String(), appErrors.ErrResponseTooLarge
		}

		if m := literalSuffixRegex.FindStringSubmatch(line); m != nil {
			n, convErr := strconv.Atoi(m[1])
			if convErr == nil && n > 0 {
				if buf.Len()+n > maxBytes {
					return buf.String(), appErrors.ErrResponseTooLarge
				}
				literal := make([]byte, n)
				nr, readErr := io.ReadFull(c.reader, literal)
				buf.Write(literal[:nr])
				if readErr != nil {
					if isTimeout(readErr) {
						return buf.String(), errors.Wrap(appErrors.ErrConnectionTimeout, "reading literal")
					}
					return buf.String(), errors.Wrap(readErr, "reading literal")
				}
			}
			continue
		}

		if stop(strings.TrimRight(line, "\r\n")) {
			return buf.String(), nil
		}
	}
}

func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.nc.Close()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
