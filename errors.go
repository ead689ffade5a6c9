// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package submit

import (
	"strings"
)

// TLSHandshakeError is returned when the STARTTLS handshake fails after the
// server accepted the upgrade command. Handshake failure is fatal for the
// whole connection attempt; the session never falls back to plaintext.
type TLSHandshakeError struct {
	Err error
}

// Error satisfies the error interface for the TLSHandshakeError type.
func (e *TLSHandshakeError) Error() string {
	return "STARTTLS upgrade failed: " + e.Err.Error()
}

// Unwrap returns the underlying handshake error.
func (e *TLSHandshakeError) Unwrap() error {
	return e.Err
}

// Attempt records the outcome of one tried authentication mechanism during
// an authentication run.
type Attempt struct {
	// Mechanism is the SASL keyword of the tried mechanism.
	Mechanism string

	// Err is the failure the mechanism reported.
	Err error
}

// NoMatchingMechanismsError is returned when none of the registered
// authentication mechanisms is among those the server advertised. No
// authentication attempt has been made in that case.
type NoMatchingMechanismsError struct {
	// Advertised lists every mechanism the server offered.
	Advertised []string
}

// Error satisfies the error interface for the NoMatchingMechanismsError type.
func (e *NoMatchingMechanismsError) Error() string {
	if len(e.Advertised) == 0 {
		return "no authentication mechanism available: server advertised none"
	}
	return "no supported authentication mechanism found, server offers: " +
		strings.Join(e.Advertised, ", ")
}

// AuthFailedError is returned when every attempted authentication mechanism
// was rejected by the server. It preserves each mechanism's failure detail in
// attempt order.
type AuthFailedError struct {
	// Attempts holds the tried mechanisms and their failures, in the order
	// they were attempted.
	Attempts []Attempt
}

// Error satisfies the error interface for the AuthFailedError type.
func (e *AuthFailedError) Error() string {
	var msg strings.Builder
	msg.WriteString("authentication failed")
	for i := range e.Attempts {
		msg.WriteString("; ")
		msg.WriteString(e.Attempts[i].Mechanism)
		msg.WriteString(": ")
		msg.WriteString(e.Attempts[i].Err.Error())
	}
	return msg.String()
}
