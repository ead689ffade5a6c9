// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package smtp

import (
	"errors"
	"fmt"
)

// ProtocolError describes a command exchange that failed at the protocol
// layer: the server replied with a status outside the accepted set or the
// reply did not have the RFC 5321 shape. A ProtocolError is fatal for the
// negotiation step that caused it.
type ProtocolError struct {
	// Command is the lowercased verb of the command that failed, if known.
	Command string

	// Code is the status code of the offending reply, or 0 when the reply
	// was malformed or never arrived.
	Code int

	// Msg is the text of the offending reply line or a parse diagnostic.
	Msg string
}

// Error satisfies the error interface for the ProtocolError type.
func (e *ProtocolError) Error() string {
	if e.Command == "" {
		if e.Code == 0 {
			return fmt.Sprintf("smtp: %s", e.Msg)
		}
		return fmt.Sprintf("smtp: unexpected status %d: %s", e.Code, e.Msg)
	}
	if e.Code == 0 {
		return fmt.Sprintf("smtp: %s failed: %s", e.Command, e.Msg)
	}
	return fmt.Sprintf("smtp: %s failed with status %d: %s", e.Command, e.Code, e.Msg)
}

// IsTemp reports whether the server signalled a transient condition, meaning
// the status code is in the 4xx range.
func (e *ProtocolError) IsTemp() bool {
	return e.Code >= 400 && e.Code < 500
}

// Is implements errors.Is support, comparing command verb and status code.
func (e *ProtocolError) Is(target error) bool {
	var t *ProtocolError
	if errors.As(target, &t) && t != nil {
		return e.Command == t.Command && e.Code == t.Code
	}
	return false
}
