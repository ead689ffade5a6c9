// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package submit

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/velomail/go-submit/log"
	"github.com/velomail/go-submit/smtp"
)

// Defaults
const (
	// DefaultTimeout is the default connection timeout
	DefaultTimeout = time.Second * 15

	// DefaultTLSMinVersion is the minimum TLS version required for the
	// connection. Nowadays TLS1.2 should be the sane default
	DefaultTLSMinVersion = tls.VersionTLS12
)

// DialContextFunc is a type to define custom DialContext function.
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Client negotiates an ESMTP submission session: it dials the server,
// settles transport security, runs the EHLO/STARTTLS handshake and
// authenticates with the first advertised mechanism from its priority-ordered
// registry.
type Client struct {
	// co is the net.Conn the session is based on
	co net.Conn

	// cto is the timeout for the server connection
	cto time.Duration

	// helo is the greeting name for the target SMTP server
	helo string

	// host is the hostname of the target SMTP server
	host string

	// port of the SMTP server to connect to; 0 means unset, letting the
	// transport security decision pick the default
	port int

	// user is the authentication username; an empty user disables
	// authentication entirely
	user string

	// pass is the corresponding authentication secret
	pass string

	// auths is the mechanism registry in priority order. It is fixed at
	// configuration time and read-only while sessions run.
	auths []smtp.Auth

	// sc is the smtp.Conn that is set up when using the Dial*() methods
	sc *smtp.Conn

	// tlspolicy is the tri-state transport security policy
	tlspolicy TLSPolicy

	// tlsconfig is used for both implicit TLS and the STARTTLS upgrade
	tlsconfig *tls.Config

	// dl enables debug logging of the wire dialogue
	dl bool

	// logAuthData lets authentication data through into the debug log
	logAuthData bool

	// l is a logger that implements the log.Logger interface
	l log.Logger

	// dialContextFunc is a custom DialContext function to dial the target
	// SMTP server
	dialContextFunc DialContextFunc
}

// Option returns a function that can be used for grouping Client options
type Option func(*Client) error

var (
	// ErrInvalidPort should be used if a port is specified that is not valid
	ErrInvalidPort = errors.New("invalid port number")

	// ErrInvalidTimeout should be used if a timeout is set that is zero or negative
	ErrInvalidTimeout = errors.New("timeout cannot be zero or negative")

	// ErrInvalidHELO should be used if an empty HELO string is provided
	ErrInvalidHELO = errors.New("invalid HELO/EHLO value - must not be empty")

	// ErrInvalidTLSConfig should be used if an empty tls.Config is provided
	ErrInvalidTLSConfig = errors.New("invalid TLS config")

	// ErrNoHostname should be used if a Client has no hostname set
	ErrNoHostname = errors.New("hostname for client cannot be empty")

	// ErrNoActiveConnection should be used when a method requires a server
	// connection but none is established yet
	ErrNoActiveConnection = errors.New("not connected to SMTP server")
)

// NewClient returns a new submission client for the given host. Unless
// overridden by options, the client decides transport security and port
// automatically, skips authentication and uses the default mechanism
// registry with the strongest mechanisms first.
func NewClient(host string, opts ...Option) (*Client, error) {
	c := &Client{
		cto:       DefaultTimeout,
		host:      host,
		tlspolicy: TLSAuto,
		tlsconfig: &tls.Config{ServerName: host, MinVersion: DefaultTLSMinVersion},
		auths:     defaultAuths(),
	}

	if err := c.setDefaultHelo(); err != nil {
		return c, err
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return c, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if c.host == "" {
		return c, ErrNoHostname
	}

	return c, nil
}

// defaultAuths returns the default mechanism registry. The slice order is the
// priority order: challenge-response mechanisms that never expose the
// password come before the plaintext ones, which refuse unencrypted channels
// on their own.
func defaultAuths() []smtp.Auth {
	return []smtp.Auth{
		smtp.ScramSHA256Auth(),
		smtp.ScramSHA1Auth(),
		smtp.CramMD5Auth(),
		smtp.PlainAuth("", false),
		smtp.LoginAuth(false),
	}
}

// WithPort overrides the automatic port selection
func WithPort(p int) Option {
	return func(c *Client) error {
		if p < 1 || p > 65535 {
			return ErrInvalidPort
		}
		c.port = p
		return nil
	}
}

// WithTimeout overrides the default connection timeout
func WithTimeout(t time.Duration) Option {
	return func(c *Client) error {
		if t <= 0 {
			return ErrInvalidTimeout
		}
		c.cto = t
		return nil
	}
}

// WithTLSPolicy tells the client to use the provided TLSPolicy
func WithTLSPolicy(p TLSPolicy) Option {
	return func(c *Client) error {
		c.tlspolicy = p
		return nil
	}
}

// WithTLSConfig tells the client to use the provided *tls.Config
func WithTLSConfig(co *tls.Config) Option {
	return func(c *Client) error {
		if co == nil {
			return ErrInvalidTLSConfig
		}
		c.tlsconfig = co
		return nil
	}
}

// WithHELO tells the client to use the provided string as HELO/EHLO greeting name
func WithHELO(h string) Option {
	return func(c *Client) error {
		if h == "" {
			return ErrInvalidHELO
		}
		c.helo = h
		return nil
	}
}

// WithUsername tells the client to use the provided string as username for
// authentication. An empty username keeps authentication disabled.
func WithUsername(u string) Option {
	return func(c *Client) error {
		c.user = u
		return nil
	}
}

// WithPassword tells the client to use the provided string as password/secret
// for authentication
func WithPassword(p string) Option {
	return func(c *Client) error {
		c.pass = p
		return nil
	}
}

// WithAuthenticators replaces the default mechanism registry with the given
// mechanisms. The argument order is the priority order and is fixed once
// sessions run.
func WithAuthenticators(auths ...smtp.Auth) Option {
	return func(c *Client) error {
		if len(auths) == 0 {
			return errors.New("at least one authentication mechanism is required")
		}
		c.auths = auths
		return nil
	}
}

// WithLogger overrides the default log.Logger that is used for debug logging
func WithLogger(l log.Logger) Option {
	return func(c *Client) error {
		c.l = l
		return nil
	}
}

// WithDebugLog tells the client to log the wire dialogue of the SMTP session
func WithDebugLog() Option {
	return func(c *Client) error {
		c.dl = true
		return nil
	}
}

// WithLogAuthData tells the client to include SMTP authentication data in the
// debug log. Authentication exchanges are redacted by default.
func WithLogAuthData() Option {
	return func(c *Client) error {
		c.logAuthData = true
		return nil
	}
}

// WithDialContextFunc overrides the default DialContext for connecting to the
// SMTP server
func WithDialContextFunc(f DialContextFunc) Option {
	return func(c *Client) error {
		c.dialContextFunc = f
		return nil
	}
}

// TLSPolicy returns the currently set TLSPolicy as string
func (c *Client) TLSPolicy() string {
	return c.tlspolicy.String()
}

// ServerAddr returns the combination of hostname and the port the transport
// security decision resolved to
func (c *Client) ServerAddr() string {
	_, port := decideTransportSecurity(c.tlspolicy, c.port, c.host, c.tlsconfig != nil)
	return fmt.Sprintf("%s:%d", c.host, port)
}

// SetTLSPolicy overrides the current TLSPolicy
func (c *Client) SetTLSPolicy(p TLSPolicy) {
	c.tlspolicy = p
}

// SetUsername overrides the current username string with the given value
func (c *Client) SetUsername(u string) {
	c.user = u
}

// SetPassword overrides the current password string with the given value
func (c *Client) SetPassword(p string) {
	c.pass = p
}

// SetTLSConfig overrides the current *tls.Config with the given value
func (c *Client) SetTLSConfig(co *tls.Config) error {
	if co == nil {
		return ErrInvalidTLSConfig
	}
	c.tlsconfig = co
	return nil
}

// setDefaultHelo retrieves the local hostname and sets it as HELO/EHLO greeting name
func (c *Client) setDefaultHelo() error {
	hn, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to read local hostname: %w", err)
	}
	c.helo = hn
	return nil
}

// DialWithContext establishes a connection to the server with the given
// context.Context, applying the initial transport security decision, and
// runs the full session negotiation on it.
func (c *Client) DialWithContext(pc context.Context) error {
	ctx, cancel := context.WithDeadline(pc, time.Now().Add(c.cto))
	defer cancel()

	useTLS, port := decideTransportSecurity(c.tlspolicy, c.port, c.host, c.tlsconfig != nil)
	if c.dialContextFunc == nil {
		// The plaintext dialer is selected explicitly, never left to a
		// default.
		nd := net.Dialer{}
		c.dialContextFunc = nd.DialContext
		if useTLS {
			td := tls.Dialer{NetDialer: &nd, Config: c.tlsconfig}
			c.dialContextFunc = td.DialContext
		}
	}

	var err error
	c.co, err = c.dialContextFunc(ctx, "tcp", fmt.Sprintf("%s:%d", c.host, port))
	if err != nil {
		return err
	}

	sc, err := smtp.Connect(c.co, c.host)
	if err != nil {
		return err
	}
	c.sc = sc

	if err := sc.SetLocalName(c.helo); err != nil {
		return err
	}
	if err := sc.SetTLSConfig(c.tlsconfig); err != nil {
		return err
	}
	if c.l != nil {
		sc.SetLogger(c.l)
	}
	if c.dl {
		sc.SetDebugLog(true, log.New(os.Stderr, log.LevelDebug))
	}
	if c.logAuthData {
		sc.SetLogAuthData()
	}

	return c.Negotiate(sc)
}

// Session returns the negotiated session once DialWithContext succeeded.
func (c *Client) Session() (*smtp.Conn, error) {
	if c.sc == nil {
		return nil, ErrNoActiveConnection
	}
	return c.sc, nil
}

// Close ends the session with QUIT and closes the connection
func (c *Client) Close() error {
	if c.sc == nil {
		return ErrNoActiveConnection
	}
	if err := c.sc.Quit(); err != nil {
		return fmt.Errorf("failed to close SMTP session: %w", err)
	}
	return nil
}
