// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package smtp

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Auth is one pluggable credential-exchange mechanism, identified by its
// SASL mechanism keyword. An Auth implementation must be stateless with
// regard to credentials: they are handed in per authentication run, so one
// instance can serve many sessions.
type Auth interface {
	// Mechanism returns the SASL keyword of the mechanism, e.g. "PLAIN".
	Mechanism() string

	// Authenticate runs the complete credential exchange on the given
	// session. It returns an error when the server rejects any exchange
	// step; the session's transaction state is unreliable afterwards.
	Authenticate(s Session, username, password string) error
}

var (
	// ErrUnencrypted is returned when a mechanism refuses to send plaintext
	// credentials over an unencrypted channel.
	ErrUnencrypted = errors.New("refusing to send credentials over unencrypted connection")

	// ErrUnexpectedServerChallenge is returned when the server challenge
	// does not fit the mechanism's exchange.
	ErrUnexpectedServerChallenge = errors.New("unexpected server challenge")
)

// encodeBase64 returns the standard base64 encoding of in, the transport
// encoding for all AUTH exchange payloads per RFC 4954.
func encodeBase64(in []byte) string {
	return base64.StdEncoding.EncodeToString(in)
}

// decodeChallenge extracts and decodes the base64 challenge payload from the
// final line of an AUTH continuation reply.
func decodeChallenge(reply string) ([]byte, error) {
	lines := strings.Split(reply, "\r\n")
	last := lines[len(lines)-1]
	if len(last) < 4 {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedServerChallenge, last)
	}
	challenge, err := base64.StdEncoding.DecodeString(last[4:])
	if err != nil {
		return nil, fmt.Errorf("malformed server challenge: %w", err)
	}
	return challenge, nil
}

// replyCode returns the status code of the final reply line, or 0 when the
// reply does not carry one.
func replyCode(reply string) int {
	lines := strings.Split(reply, "\r\n")
	last := lines[len(lines)-1]
	if len(last) < 3 {
		return 0
	}
	code, err := strconv.Atoi(last[:3])
	if err != nil {
		return 0
	}
	return code
}
