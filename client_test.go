// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package submit

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/velomail/go-submit/smtp"
)

func TestNewClient_defaults(t *testing.T) {
	c, err := NewClient("mail.example.com")
	if err != nil {
		t.Fatalf("NewClient failed: %s", err)
	}
	if c.host != "mail.example.com" {
		t.Errorf("host = %q, want mail.example.com", c.host)
	}
	if c.cto != DefaultTimeout {
		t.Errorf("timeout = %s, want %s", c.cto, DefaultTimeout)
	}
	if c.TLSPolicy() != TLSAuto.String() {
		t.Errorf("policy = %s, want %s", c.TLSPolicy(), TLSAuto)
	}
	if c.tlsconfig == nil || c.tlsconfig.ServerName != "mail.example.com" {
		t.Error("default TLS config must carry the target host as ServerName")
	}
	if c.tlsconfig.MinVersion != tls.VersionTLS12 {
		t.Error("default TLS config must require at least TLS 1.2")
	}
	if c.helo == "" {
		t.Error("default HELO name must be the local hostname")
	}
	if c.user != "" {
		t.Error("authentication must be disabled by default")
	}
	if len(c.auths) == 0 {
		t.Fatal("default mechanism registry must not be empty")
	}
	if got := c.auths[0].Mechanism(); got != "SCRAM-SHA-256" {
		t.Errorf("strongest default mechanism = %q, want SCRAM-SHA-256", got)
	}
}

func TestNewClient_emptyHost(t *testing.T) {
	if _, err := NewClient(""); !errors.Is(err, ErrNoHostname) {
		t.Errorf("expected ErrNoHostname, got %v", err)
	}
}

func TestNewClient_optionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want error
	}{
		{"port too low", WithPort(0), ErrInvalidPort},
		{"port too high", WithPort(65536), ErrInvalidPort},
		{"zero timeout", WithTimeout(0), ErrInvalidTimeout},
		{"negative timeout", WithTimeout(-time.Second), ErrInvalidTimeout},
		{"empty HELO", WithHELO(""), ErrInvalidHELO},
		{"nil TLS config", WithTLSConfig(nil), ErrInvalidTLSConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient("mail.example.com", tt.opt); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewClient_options(t *testing.T) {
	c, err := NewClient("mail.example.com",
		WithPort(587),
		WithTimeout(time.Second*30),
		WithTLSPolicy(TLSAlways),
		WithHELO("client.example.com"),
		WithUsername("user"),
		WithPassword("secret"),
		WithAuthenticators(smtp.LoginAuth(false), smtp.PlainAuth("", false)),
		WithLogAuthData(),
		nil,
	)
	if err != nil {
		t.Fatalf("NewClient failed: %s", err)
	}
	if c.port != 587 {
		t.Errorf("port = %d, want 587", c.port)
	}
	if c.cto != time.Second*30 {
		t.Errorf("timeout = %s, want 30s", c.cto)
	}
	if c.TLSPolicy() != TLSAlways.String() {
		t.Errorf("policy = %s, want %s", c.TLSPolicy(), TLSAlways)
	}
	if c.helo != "client.example.com" {
		t.Errorf("helo = %q, want client.example.com", c.helo)
	}
	if c.user != "user" || c.pass != "secret" {
		t.Error("credentials not applied")
	}
	if len(c.auths) != 2 || c.auths[0].Mechanism() != "LOGIN" {
		t.Error("WithAuthenticators must replace the registry in the given order")
	}
	if !c.logAuthData {
		t.Error("WithLogAuthData not applied")
	}
}

func TestWithAuthenticators_empty(t *testing.T) {
	if _, err := NewClient("mail.example.com", WithAuthenticators()); err == nil {
		t.Error("an empty mechanism registry must be rejected")
	}
}

func TestClient_ServerAddr(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"automatic TLS", nil, "mail.example.com:465"},
		{"forced port", []Option{WithPort(587)}, "mail.example.com:587"},
		{"no TLS", []Option{WithTLSPolicy(NoTLS)}, "mail.example.com:25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient("mail.example.com", tt.opts...)
			if err != nil {
				t.Fatalf("NewClient failed: %s", err)
			}
			if got := c.ServerAddr(); got != tt.want {
				t.Errorf("ServerAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_setters(t *testing.T) {
	c, err := NewClient("mail.example.com")
	if err != nil {
		t.Fatalf("NewClient failed: %s", err)
	}
	c.SetTLSPolicy(NoTLS)
	if c.TLSPolicy() != NoTLS.String() {
		t.Errorf("policy = %s, want %s", c.TLSPolicy(), NoTLS)
	}
	c.SetUsername("user")
	c.SetPassword("secret")
	if c.user != "user" || c.pass != "secret" {
		t.Error("credential setters not applied")
	}
	if err := c.SetTLSConfig(nil); !errors.Is(err, ErrInvalidTLSConfig) {
		t.Errorf("expected ErrInvalidTLSConfig, got %v", err)
	}
	if err := c.SetTLSConfig(&tls.Config{ServerName: "other.example.com"}); err != nil {
		t.Errorf("SetTLSConfig failed: %s", err)
	}
}

func TestClient_noActiveConnection(t *testing.T) {
	c, err := NewClient("mail.example.com")
	if err != nil {
		t.Fatalf("NewClient failed: %s", err)
	}
	if _, err := c.Session(); !errors.Is(err, ErrNoActiveConnection) {
		t.Errorf("expected ErrNoActiveConnection, got %v", err)
	}
	if err := c.Close(); !errors.Is(err, ErrNoActiveConnection) {
		t.Errorf("expected ErrNoActiveConnection, got %v", err)
	}
}

// pipeServer answers the scripted submission dialogue on conn.
func pipeServer(conn net.Conn, done chan<- struct{}) {
	defer close(done)
	defer func() { _ = conn.Close() }()
	reader := bufio.NewReader(conn)
	write := func(s string) { _, _ = conn.Write([]byte(s)) }

	write("220 mail.example.com ESMTP ready\r\n")
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		switch {
		case strings.HasPrefix(line, "EHLO "):
			write("250-mail.example.com\r\n250 SMTPUTF8\r\n")
		case strings.HasPrefix(line, "QUIT"):
			write("221 2.0.0 bye\r\n")
			return
		default:
			write("500 unrecognized command\r\n")
		}
	}
}

func TestClient_DialWithContext(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	done := make(chan struct{})
	go pipeServer(serverConn, done)

	c, err := NewClient("mail.example.com",
		WithTLSPolicy(NoTLS),
		WithHELO("client.example.com"),
		WithDialContextFunc(func(_ context.Context, _, _ string) (net.Conn, error) {
			return clientConn, nil
		}),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %s", err)
	}
	if err := c.DialWithContext(context.Background()); err != nil {
		t.Fatalf("DialWithContext failed: %s", err)
	}
	session, err := c.Session()
	if err != nil {
		t.Fatalf("Session failed: %s", err)
	}
	if session.IsEncrypted() {
		t.Error("a NoTLS session must not report encryption")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %s", err)
	}
	<-done
}

func TestClient_DialWithContext_dialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	c, err := NewClient("mail.example.com",
		WithDialContextFunc(func(_ context.Context, _, _ string) (net.Conn, error) {
			return nil, dialErr
		}),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %s", err)
	}
	if err := c.DialWithContext(context.Background()); !errors.Is(err, dialErr) {
		t.Errorf("expected the dial error to surface, got %v", err)
	}
}
