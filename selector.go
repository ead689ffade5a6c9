// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package submit

import (
	"strings"

	"github.com/velomail/go-submit/smtp"
)

// authenticate drives the fallback loop over the configured authentication
// mechanisms. The registry order is the priority order: the first registered
// mechanism the server advertises is tried first, and on failure the next
// matching one, until one succeeds or the candidates are exhausted.
//
// An empty username means authentication is deliberately skipped; that is
// not an error. A failed attempt is followed by a best-effort RSET whose
// outcome is discarded, because the server's state after a rejected
// authentication is unreliable anyway.
func (c *Client) authenticate(session smtp.Session, capabilities smtp.Capabilities) error {
	if c.user == "" {
		return nil
	}

	advertised := capabilities.Params("AUTH")
	offered := make(map[string]bool, len(advertised))
	for _, mechanism := range advertised {
		offered[strings.ToLower(mechanism)] = true
	}

	var attempts []Attempt
	for _, auth := range c.auths {
		if !offered[strings.ToLower(auth.Mechanism())] {
			continue
		}
		err := auth.Authenticate(session, c.user, c.pass)
		if err == nil {
			return nil
		}
		_, _ = session.Execute("RSET", smtp.CodeOK)
		attempts = append(attempts, Attempt{Mechanism: auth.Mechanism(), Err: err})
	}

	if len(attempts) == 0 {
		return &NoMatchingMechanismsError{Advertised: advertised}
	}
	return &AuthFailedError{Attempts: attempts}
}
