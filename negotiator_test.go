// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package submit

import (
	"crypto/tls"
	"errors"
	"strings"
	"testing"

	"github.com/velomail/go-submit/smtp"
)

// sessionStep is one expected command/reply pair of a scripted negotiation.
type sessionStep struct {
	wantPrefix string
	reply      string
	err        error
}

// fakeSession satisfies the smtp.Session interface with a fixed transcript.
// A successful StartTLSHandshake flips the encryption state, mirroring the
// real in-band upgrade.
type fakeSession struct {
	t            *testing.T
	encrypted    bool
	handshakeErr error
	steps        []sessionStep
	pos          int
	commands     []string
	handshakes   int
}

func (s *fakeSession) Execute(line string, _ ...int) (string, error) {
	s.t.Helper()
	s.commands = append(s.commands, line)
	if s.pos >= len(s.steps) {
		s.t.Fatalf("unexpected command %q after end of script", line)
	}
	step := s.steps[s.pos]
	s.pos++
	if !strings.HasPrefix(line, step.wantPrefix) {
		s.t.Fatalf("command %q does not match expected prefix %q", line, step.wantPrefix)
	}
	return step.reply, step.err
}

func (s *fakeSession) IsEncrypted() bool { return s.encrypted }

func (s *fakeSession) StartTLSHandshake() error {
	s.handshakes++
	if s.handshakeErr != nil {
		return s.handshakeErr
	}
	s.encrypted = true
	return nil
}

func (s *fakeSession) LocalName() string { return "client.example.com" }

// negotiationClient returns a Client wired for scripted negotiation tests,
// bypassing NewClient so no local hostname lookup happens.
func negotiationClient(user string, auths ...smtp.Auth) *Client {
	return &Client{
		host:      "mail.example.com",
		user:      user,
		pass:      "secret",
		auths:     auths,
		tlsconfig: &tls.Config{ServerName: "mail.example.com", MinVersion: tls.VersionTLS12},
	}
}

func TestNegotiate_fullFlow(t *testing.T) {
	s := &fakeSession{t: t, steps: []sessionStep{
		{wantPrefix: "EHLO client.example.com", reply: "250-mail.example.com\r\n250-STARTTLS\r\n250 AUTH PLAIN LOGIN"},
		{wantPrefix: "STARTTLS", reply: "220 ready to start TLS"},
		{wantPrefix: "EHLO client.example.com", reply: "250-mail.example.com\r\n250 AUTH PLAIN LOGIN"},
		{wantPrefix: "AUTH PLAIN ", reply: "235 2.7.0 accepted"},
	}}
	c := negotiationClient("user", smtp.PlainAuth("", false))
	if err := c.Negotiate(s); err != nil {
		t.Fatalf("negotiation failed: %s", err)
	}
	if s.handshakes != 1 {
		t.Errorf("expected exactly one TLS handshake, got %d", s.handshakes)
	}
	if !s.encrypted {
		t.Error("session should be encrypted after the upgrade")
	}
	if s.pos != len(s.steps) {
		t.Errorf("only %d of %d scripted exchanges ran", s.pos, len(s.steps))
	}
}

func TestNegotiate_alreadyEncrypted(t *testing.T) {
	s := &fakeSession{t: t, encrypted: true, steps: []sessionStep{
		{wantPrefix: "EHLO client.example.com", reply: "250-mail.example.com\r\n250-STARTTLS\r\n250 AUTH PLAIN"},
		{wantPrefix: "AUTH PLAIN ", reply: "235 2.7.0 accepted"},
	}}
	c := negotiationClient("user", smtp.PlainAuth("", false))
	if err := c.Negotiate(s); err != nil {
		t.Fatalf("negotiation failed: %s", err)
	}
	if s.handshakes != 0 {
		t.Error("an implicit-TLS session must never be upgraded again")
	}
	for _, cmd := range s.commands {
		if cmd == "STARTTLS" {
			t.Error("STARTTLS must not be sent on an encrypted session")
		}
	}
}

func TestNegotiate_withoutTLSConfig(t *testing.T) {
	s := &fakeSession{t: t, steps: []sessionStep{
		{wantPrefix: "EHLO client.example.com", reply: "250-mail.example.com\r\n250 STARTTLS"},
	}}
	c := negotiationClient("")
	c.tlsconfig = nil
	if err := c.Negotiate(s); err != nil {
		t.Fatalf("negotiation failed: %s", err)
	}
	if s.handshakes != 0 {
		t.Error("without a TLS config no upgrade must be attempted")
	}
	if len(s.commands) != 1 {
		t.Errorf("expected a single EHLO, got %v", s.commands)
	}
}

func TestNegotiate_serverWithoutStartTLS(t *testing.T) {
	s := &fakeSession{t: t, steps: []sessionStep{
		{wantPrefix: "EHLO client.example.com", reply: "250-mail.example.com\r\n250 SMTPUTF8"},
	}}
	c := negotiationClient("")
	if err := c.Negotiate(s); err != nil {
		t.Fatalf("negotiation failed: %s", err)
	}
	if s.handshakes != 0 {
		t.Error("no upgrade must be attempted when the server does not offer STARTTLS")
	}
}

func TestNegotiate_startTLSRefused(t *testing.T) {
	refusal := errors.New("454 TLS not available due to temporary reason")
	s := &fakeSession{t: t, steps: []sessionStep{
		{wantPrefix: "EHLO client.example.com", reply: "250-mail.example.com\r\n250 STARTTLS"},
		{wantPrefix: "STARTTLS", reply: "454 TLS not available due to temporary reason", err: refusal},
	}}
	c := negotiationClient("")
	if err := c.Negotiate(s); !errors.Is(err, refusal) {
		t.Errorf("expected the STARTTLS refusal to surface, got %v", err)
	}
	if s.handshakes != 0 {
		t.Error("no handshake must run when the server refused the upgrade")
	}
}

func TestNegotiate_handshakeFailure(t *testing.T) {
	cause := errors.New("tls: handshake failure")
	s := &fakeSession{t: t, handshakeErr: cause, steps: []sessionStep{
		{wantPrefix: "EHLO client.example.com", reply: "250-mail.example.com\r\n250 STARTTLS"},
		{wantPrefix: "STARTTLS", reply: "220 ready to start TLS"},
	}}
	c := negotiationClient("")
	err := c.Negotiate(s)
	var hserr *TLSHandshakeError
	if !errors.As(err, &hserr) {
		t.Fatalf("expected a *TLSHandshakeError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected the handshake cause to be wrapped, got %v", hserr.Err)
	}
	if s.pos != len(s.steps) {
		t.Error("negotiation must abort right after the failed handshake")
	}
}

func TestNegotiate_heloDowngrade(t *testing.T) {
	s := &fakeSession{t: t, steps: []sessionStep{
		{wantPrefix: "EHLO client.example.com", reply: "500 unrecognized command", err: errors.New("500 unrecognized command")},
		{wantPrefix: "HELO client.example.com", reply: "250 mail.example.com"},
	}}
	c := negotiationClient("user", smtp.PlainAuth("", false))
	if err := c.Negotiate(s); err != nil {
		t.Fatalf("HELO downgrade must end the negotiation successfully, got %s", err)
	}
	if len(s.commands) != 2 {
		t.Errorf("no commands beyond EHLO and HELO expected, got %v", s.commands)
	}
}

func TestNegotiate_heloFailure(t *testing.T) {
	herr := errors.New("502 command not implemented")
	s := &fakeSession{t: t, steps: []sessionStep{
		{wantPrefix: "EHLO client.example.com", reply: "500 unrecognized command", err: errors.New("500 unrecognized command")},
		{wantPrefix: "HELO client.example.com", reply: "502 command not implemented", err: herr},
	}}
	c := negotiationClient("")
	if err := c.Negotiate(s); !errors.Is(err, herr) {
		t.Errorf("expected the HELO failure to be terminal, got %v", err)
	}
}

func TestNegotiate_postUpgradeDowngrade(t *testing.T) {
	s := &fakeSession{t: t, steps: []sessionStep{
		{wantPrefix: "EHLO client.example.com", reply: "250-mail.example.com\r\n250 STARTTLS"},
		{wantPrefix: "STARTTLS", reply: "220 ready to start TLS"},
		{wantPrefix: "EHLO client.example.com", reply: "500 unrecognized command", err: errors.New("500 unrecognized command")},
		{wantPrefix: "HELO client.example.com", reply: "250 mail.example.com"},
	}}
	c := negotiationClient("user", smtp.PlainAuth("", false))
	if err := c.Negotiate(s); err != nil {
		t.Fatalf("post-upgrade HELO downgrade must end successfully, got %s", err)
	}
	if s.pos != len(s.steps) {
		t.Errorf("only %d of %d scripted exchanges ran", s.pos, len(s.steps))
	}
}

// The pre-upgrade capability set advertises only LOGIN, the post-upgrade set
// only PLAIN. Authentication has to follow the post-upgrade set.
func TestNegotiate_postUpgradeCapabilitiesWin(t *testing.T) {
	s := &fakeSession{t: t, steps: []sessionStep{
		{wantPrefix: "EHLO client.example.com", reply: "250-mail.example.com\r\n250-STARTTLS\r\n250 AUTH LOGIN"},
		{wantPrefix: "STARTTLS", reply: "220 ready to start TLS"},
		{wantPrefix: "EHLO client.example.com", reply: "250-mail.example.com\r\n250 AUTH PLAIN"},
		{wantPrefix: "AUTH PLAIN ", reply: "235 2.7.0 accepted"},
	}}
	c := negotiationClient("user", smtp.PlainAuth("", false), smtp.LoginAuth(false))
	if err := c.Negotiate(s); err != nil {
		t.Fatalf("negotiation failed: %s", err)
	}
}
