// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package smtp

// plainAuth is the type that satisfies the Auth interface for the "PLAIN"
// mechanism.
type plainAuth struct {
	identity             string
	allowUnencryptedAuth bool
}

// PlainAuth returns an Auth that implements the PLAIN authentication
// mechanism as defined in RFC 4616, acting as the given identity. Usually
// identity should be the empty string, to act as the authenticated username.
//
// PLAIN sends the credentials in a single, merely base64-encoded response.
// Unless allowUnenc is set, the mechanism therefore refuses to run on an
// unencrypted channel. Note that on an unencrypted channel nothing the
// server advertised can be trusted either; that it offered PLAIN might just
// be an attacker asking for the password.
func PlainAuth(identity string, allowUnenc bool) Auth {
	return plainAuth{identity: identity, allowUnencryptedAuth: allowUnenc}
}

// Mechanism satisfies the Auth interface for the plainAuth type.
func (plainAuth) Mechanism() string {
	return "PLAIN"
}

// Authenticate satisfies the Auth interface for the plainAuth type.
func (a plainAuth) Authenticate(s Session, username, password string) error {
	if !a.allowUnencryptedAuth && !s.IsEncrypted() {
		return ErrUnencrypted
	}
	initial := encodeBase64([]byte(a.identity + "\x00" + username + "\x00" + password))
	_, err := s.Execute("AUTH PLAIN "+initial, CodeAuthSuccess)
	return err
}
