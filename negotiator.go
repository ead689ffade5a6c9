// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package submit

import (
	"fmt"

	"github.com/velomail/go-submit/smtp"
)

// Negotiate runs the ESMTP session negotiation on an established session:
// EHLO, capability parsing, an opportunistic STARTTLS upgrade with a second
// EHLO on success, and authentication when credentials are configured.
//
// A server that rejects EHLO is greeted with a plain HELO instead; in that
// case the negotiation ends successfully but without capabilities, transport
// security upgrade or authentication. A failed STARTTLS handshake aborts the
// negotiation, it never degrades to plaintext continuation.
func (c *Client) Negotiate(session smtp.Session) error {
	capabilities, downgraded, err := c.hello(session)
	if err != nil {
		return err
	}
	if downgraded {
		return nil
	}

	upgraded, err := c.upgradeTLS(session, capabilities)
	if err != nil {
		return err
	}
	if upgraded {
		// The pre-upgrade capability set is stale now. Only the reply to the
		// post-upgrade EHLO is authoritative.
		capabilities, downgraded, err = c.hello(session)
		if err != nil {
			return err
		}
		if downgraded {
			return nil
		}
	}

	return c.authenticate(session, capabilities)
}

// hello sends the EHLO greeting and parses the advertised capability set.
// When the EHLO exchange itself fails, extended negotiation is abandoned and
// a plain HELO is sent instead; downgraded reports that path. A failing HELO
// is returned as the terminal error.
func (c *Client) hello(session smtp.Session) (capabilities smtp.Capabilities, downgraded bool, err error) {
	reply, err := session.Execute("EHLO "+session.LocalName(), smtp.CodeOK)
	if err != nil {
		if _, herr := session.Execute("HELO "+session.LocalName(), smtp.CodeOK); herr != nil {
			return nil, false, fmt.Errorf("HELO fallback failed: %w", herr)
		}
		return nil, true, nil
	}
	return smtp.ParseCapabilities(reply), false, nil
}

// needsStartTLS reports whether the session must be upgraded in-band before
// anything sensitive flows: the channel is currently unencrypted, a TLS
// implementation is at hand and the server advertised STARTTLS. The check is
// against the current encryption state, not the initial decision, so an
// implicit-TLS session is never upgraded twice.
func (c *Client) needsStartTLS(session smtp.Session, capabilities smtp.Capabilities) bool {
	return !session.IsEncrypted() && c.tlsconfig != nil && capabilities.Has("STARTTLS")
}

// upgradeTLS performs the in-session STARTTLS upgrade when needed. The
// server must accept the upgrade command with status 220 before the
// handshake runs.
func (c *Client) upgradeTLS(session smtp.Session, capabilities smtp.Capabilities) (bool, error) {
	if !c.needsStartTLS(session, capabilities) {
		return false, nil
	}
	if _, err := session.Execute("STARTTLS", smtp.CodeReady); err != nil {
		return false, err
	}
	if err := session.StartTLSHandshake(); err != nil {
		return false, &TLSHandshakeError{Err: err}
	}
	return true, nil
}
