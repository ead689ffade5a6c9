// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

// Package smtp implements the wire-level half of the ESMTP submission
// handshake as defined in RFC 5321 and RFC 4954: a command/reply session over
// net/textproto, EHLO capability parsing and the pluggable SASL
// authentication mechanisms.
package smtp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/velomail/go-submit/log"
)

// Frequently accepted SMTP reply codes.
const (
	// CodeReady is sent for the connection greeting and for an accepted
	// STARTTLS command.
	CodeReady = 220

	// CodeOK is the generic success reply.
	CodeOK = 250

	// CodeAuthSuccess concludes a successful authentication exchange.
	CodeAuthSuccess = 235

	// CodeAuthContinue carries a base64 server challenge during an
	// authentication exchange.
	CodeAuthContinue = 334

	// CodeClosing is sent in response to QUIT.
	CodeClosing = 221
)

var (
	// ErrNoConnection is returned when an operation requires an established
	// connection but none exists.
	ErrNoConnection = errors.New("connection is not established")

	// ErrAlreadyEncrypted is returned when a TLS upgrade is requested on a
	// channel that is already encrypted.
	ErrAlreadyEncrypted = errors.New("connection is already encrypted")
)

// Session is the transport collaborator driven by the negotiation layer. One
// session maps to one logical connection; every call blocks until the server
// reply is in. Timeouts and cancellation belong to the underlying transport
// and surface as errors from Execute.
type Session interface {
	// Execute sends a single command line and waits for the complete,
	// possibly multi-line reply. The raw reply text is returned with the
	// status prefix of every line preserved and lines joined by CRLF. If
	// accept codes are given and the reply status is not among them, or if
	// the exchange fails at the transport layer, an error is returned.
	Execute(line string, accept ...int) (string, error)

	// IsEncrypted reports whether the channel is currently encrypted.
	IsEncrypted() bool

	// StartTLSHandshake runs the TLS handshake on the established
	// connection. The caller is responsible for the preceding STARTTLS
	// command exchange.
	StartTLSHandshake() error

	// LocalName returns the greeting identifier used as EHLO/HELO argument.
	LocalName() string
}

// A Conn is a client connection to an SMTP server and the default Session
// implementation.
type Conn struct {
	// Text is the textproto.Conn used by the Conn. It is exported to allow
	// for clients to add extensions.
	Text *textproto.Conn

	// ReplyErrorRegistry manages custom reply-error handlers for SMTP
	// host-command pairs.
	ReplyErrorRegistry *ReplyErrorRegistry

	// conn is kept so the connection can be re-wrapped for TLS later
	conn net.Conn

	// encrypted indicates whether the channel currently runs over TLS
	encrypted bool

	// authActive indicates that an authentication exchange is in flight
	authActive bool

	// logAuthData allows authentication data to appear in debug logs
	logAuthData bool

	debug  bool
	logger log.Logger

	localName  string
	serverName string

	// tlsconfig is used for the STARTTLS handshake
	tlsconfig *tls.Config

	mutex sync.RWMutex
}

// Connect returns a new Conn using an existing connection and host as the
// server name. It consumes and validates the server greeting.
func Connect(conn net.Conn, host string) (*Conn, error) {
	c := &Conn{
		Text:               textproto.NewConn(conn),
		ReplyErrorRegistry: NewReplyErrorRegistry(),
		conn:               conn,
		serverName:         host,
		localName:          "localhost",
		tlsconfig:          &tls.Config{ServerName: host},
	}
	_, c.encrypted = conn.(*tls.Conn)
	if _, _, err := c.readReply(CodeReady); err != nil {
		if cerr := c.Text.Close(); cerr != nil {
			return nil, fmt.Errorf("%w, %s", err, cerr)
		}
		return nil, err
	}
	return c, nil
}

// Execute sends a single command line to the server and returns the raw,
// CRLF-joined reply text. It satisfies the Session interface.
func (c *Conn) Execute(line string, accept ...int) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.logAuthData && strings.HasPrefix(strings.ToUpper(line), "AUTH ") {
		c.authActive = true
	}
	logLine := line
	if c.authActive && !c.logAuthData {
		logLine = "<SMTP auth data redacted>"
	}
	c.debugLog(log.DirClientToServer, "%s", logLine)

	if err := c.Text.PrintfLine("%s", line); err != nil {
		return "", err
	}

	code, reply, err := c.readChecked(line, accept)
	if err != nil {
		// A registered handler may recover the session, for example by
		// consuming stray data a misbehaving server sent. If it does, the
		// reply is read again.
		verb := commandVerb(line)
		handler := c.ReplyErrorRegistry.Handler(c.serverName, verb)
		if herr := handler.HandleReplyError(c.serverName, verb, c.Text, err); herr != nil {
			c.authActive = false
			return "", herr
		}
		code, reply, err = c.readChecked(line, accept)
		if err != nil {
			c.authActive = false
			return "", err
		}
	}

	logReply := reply
	if c.authActive && !c.logAuthData && code == CodeAuthContinue {
		logReply = fmt.Sprintf("%d <SMTP auth data redacted>", code)
	}
	c.debugLog(log.DirServerToClient, "%s", logReply)

	if code != CodeAuthContinue {
		c.authActive = false
	}
	return reply, nil
}

// IsEncrypted reports whether the channel currently runs over TLS.
func (c *Conn) IsEncrypted() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.encrypted
}

// StartTLSHandshake wraps the established connection into a TLS client and
// runs the handshake. On success all further traffic is encrypted and any
// previously parsed capability set is stale; the caller must re-issue EHLO.
func (c *Conn) StartTLSHandshake() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.conn == nil {
		return ErrNoConnection
	}
	if c.encrypted {
		return ErrAlreadyEncrypted
	}
	tlsconn := tls.Client(c.conn, c.tlsconfig)
	if err := tlsconn.Handshake(); err != nil {
		return fmt.Errorf("TLS handshake failed: %w", err)
	}
	c.conn = tlsconn
	c.Text = textproto.NewConn(tlsconn)
	c.encrypted = true
	return nil
}

// LocalName returns the greeting identifier used as EHLO/HELO argument.
func (c *Conn) LocalName() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.localName
}

// SetLocalName overrides the default "localhost" greeting identifier.
func (c *Conn) SetLocalName(name string) error {
	if err := validateLine(name); err != nil {
		return err
	}
	c.mutex.Lock()
	c.localName = name
	c.mutex.Unlock()
	return nil
}

// TLSConnectionState returns the connection's TLS state, or ok == false when
// the channel is not encrypted.
func (c *Conn) TLSConnectionState() (state tls.ConnectionState, ok bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	tc, ok := c.conn.(*tls.Conn)
	if !ok {
		return
	}
	return tc.ConnectionState(), true
}

// SetTLSConfig overrides the tls.Config used for the STARTTLS handshake.
func (c *Conn) SetTLSConfig(config *tls.Config) error {
	if config == nil {
		return errors.New("invalid TLS config")
	}
	c.mutex.Lock()
	c.tlsconfig = config
	c.mutex.Unlock()
	return nil
}

// SetLogger overrides the default logger for debug logging with any
// implementation of the log.Logger interface.
func (c *Conn) SetLogger(l log.Logger) {
	if l == nil {
		return
	}
	c.mutex.Lock()
	c.logger = l
	c.mutex.Unlock()
}

// SetDebugLog enables debug logging of incoming and outgoing SMTP messages.
func (c *Conn) SetDebugLog(v bool, l log.Logger) {
	c.mutex.Lock()
	c.debug = v
	if v && c.logger == nil {
		c.logger = l
	}
	c.mutex.Unlock()
}

// SetLogAuthData allows SMTP authentication data to appear in debug logs.
// Credentials are redacted by default.
func (c *Conn) SetLogAuthData() {
	c.mutex.Lock()
	c.logAuthData = true
	c.mutex.Unlock()
}

// UpdateDeadline sets a new deadline on the underlying connection with the
// given timeout duration.
func (c *Conn) UpdateDeadline(timeout time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.conn == nil {
		return ErrNoConnection
	}
	if err := c.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("failed to update deadline: %w", err)
	}
	return nil
}

// Quit sends the QUIT command and closes the connection to the server.
func (c *Conn) Quit() error {
	if _, err := c.Execute("QUIT", CodeClosing); err != nil {
		return err
	}
	return c.Close()
}

// Close closes the connection.
func (c *Conn) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.Text.Close()
}

// readChecked reads one complete reply and validates its final status code
// against the accepted set. An empty accepted set admits any status.
func (c *Conn) readChecked(line string, accept []int) (int, string, error) {
	code, reply, err := c.readReply(accept...)
	if err != nil {
		var perr *ProtocolError
		if errors.As(err, &perr) && perr.Command == "" {
			perr.Command = commandVerb(line)
		}
		return code, reply, err
	}
	return code, reply, nil
}

// readReply consumes one SMTP reply: zero or more "NNN-text" continuation
// lines followed by a terminal "NNN text" line. It returns the final status
// code and the raw reply with all lines joined by CRLF.
func (c *Conn) readReply(accept ...int) (int, string, error) {
	var lines []string
	for {
		line, err := c.Text.ReadLine()
		if err != nil {
			return 0, "", err
		}
		lines = append(lines, line)
		if len(line) < 3 {
			return 0, "", &ProtocolError{Msg: fmt.Sprintf("short reply line %q", line)}
		}
		code, err := strconv.Atoi(line[:3])
		if err != nil {
			return 0, "", &ProtocolError{Msg: fmt.Sprintf("malformed reply line %q", line)}
		}
		if len(line) == 3 || line[3] == ' ' {
			reply := strings.Join(lines, "\r\n")
			for _, a := range accept {
				if code == a {
					return code, reply, nil
				}
			}
			if len(accept) == 0 {
				return code, reply, nil
			}
			return code, reply, &ProtocolError{Code: code, Msg: strings.TrimLeft(line[3:], " ")}
		}
		if line[3] != '-' {
			return 0, "", &ProtocolError{Msg: fmt.Sprintf("malformed reply line %q", line)}
		}
	}
}

// debugLog logs the given message to the log.Logger interface if debug
// logging is enabled.
func (c *Conn) debugLog(d log.Direction, f string, a ...interface{}) {
	if c.debug && c.logger != nil {
		c.logger.Debugf(log.Log{Direction: d, Format: f, Messages: a})
	}
}

// commandVerb extracts the lowercased command verb from a command line.
func commandVerb(line string) string {
	verb, _, _ := strings.Cut(line, " ")
	return strings.ToLower(verb)
}

// validateLine checks that a line has no CR or LF as per RFC 5321.
func validateLine(line string) error {
	if strings.ContainsAny(line, "\n\r") {
		return errors.New("smtp: a line must not contain CR or LF")
	}
	return nil
}
