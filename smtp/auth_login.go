// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package smtp

import "fmt"

// loginAuth is the type that satisfies the Auth interface for the "LOGIN"
// mechanism.
type loginAuth struct {
	allowUnencryptedAuth bool
}

const (
	// loginUsernameChallenge is the username challenge sent by servers
	// implementing the MS-XLOGIN flavor of AUTH LOGIN.
	//
	// See: https://learn.microsoft.com/en-us/openspecs/exchange_server_protocols/ms-xlogin/.
	loginUsernameChallenge = "Username:"

	// loginPasswordChallenge is the password challenge sent by servers
	// implementing the MS-XLOGIN flavor of AUTH LOGIN.
	loginPasswordChallenge = "Password:"

	// loginDraftUsernameChallenge is the username challenge per the expired
	// IETF draft AUTH LOGIN extension, which some servers still emit.
	//
	// See: https://datatracker.ietf.org/doc/html/draft-murchison-sasl-login-00.
	loginDraftUsernameChallenge = "User Name\x00"

	// loginDraftPasswordChallenge is the password challenge per the expired
	// IETF draft AUTH LOGIN extension.
	loginDraftPasswordChallenge = "Password\x00"
)

// LoginAuth returns an Auth that implements the LOGIN authentication
// mechanism as used by MS Outlook. It works like PLAIN but spreads the
// credentials over three steps:
//   - Sending AUTH LOGIN (server responds with "Username:")
//   - Sending the username (server responds with "Password:")
//   - Sending the password (server authenticates)
//
// Unless allowUnenc is set, LOGIN refuses to send credentials over an
// unencrypted channel.
func LoginAuth(allowUnenc bool) Auth {
	return loginAuth{allowUnencryptedAuth: allowUnenc}
}

// Mechanism satisfies the Auth interface for the loginAuth type.
func (loginAuth) Mechanism() string {
	return "LOGIN"
}

// Authenticate satisfies the Auth interface for the loginAuth type.
func (a loginAuth) Authenticate(s Session, username, password string) error {
	if !a.allowUnencryptedAuth && !s.IsEncrypted() {
		return ErrUnencrypted
	}

	reply, err := s.Execute("AUTH LOGIN", CodeAuthContinue)
	if err != nil {
		return err
	}
	challenge, err := decodeChallenge(reply)
	if err != nil {
		return err
	}
	switch string(challenge) {
	case loginUsernameChallenge, loginDraftUsernameChallenge:
	default:
		return fmt.Errorf("%w: %q", ErrUnexpectedServerChallenge, challenge)
	}

	reply, err = s.Execute(encodeBase64([]byte(username)), CodeAuthContinue)
	if err != nil {
		return err
	}
	challenge, err = decodeChallenge(reply)
	if err != nil {
		return err
	}
	switch string(challenge) {
	case loginPasswordChallenge, loginDraftPasswordChallenge:
	default:
		return fmt.Errorf("%w: %q", ErrUnexpectedServerChallenge, challenge)
	}

	_, err = s.Execute(encodeBase64([]byte(password)), CodeAuthSuccess)
	return err
}
