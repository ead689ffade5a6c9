// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package smtp

import "fmt"

// xoauth2Auth is the type that satisfies the Auth interface for the
// "XOAUTH2" mechanism.
type xoauth2Auth struct{}

// XOAuth2Auth returns an Auth that implements the XOAUTH2 authentication
// mechanism as defined by the following specs. The password handed to
// Authenticate is the OAuth2 bearer token.
//
// https://developers.google.com/gmail/imap/xoauth2-protocol
// https://learn.microsoft.com/en-us/exchange/client-developer/legacy-protocols/how-to-authenticate-an-imap-pop-smtp-application-by-using-oauth
func XOAuth2Auth() Auth {
	return xoauth2Auth{}
}

// Mechanism satisfies the Auth interface for the xoauth2Auth type.
func (xoauth2Auth) Mechanism() string {
	return "XOAUTH2"
}

// Authenticate satisfies the Auth interface for the xoauth2Auth type.
func (xoauth2Auth) Authenticate(s Session, username, token string) error {
	initial := []byte("user=" + username + "\x01" + "auth=Bearer " + token + "\x01\x01")
	reply, err := s.Execute("AUTH XOAUTH2 "+encodeBase64(initial), CodeAuthSuccess, CodeAuthContinue)
	if err != nil {
		return err
	}
	if replyCode(reply) == CodeAuthSuccess {
		return nil
	}
	// A continuation reply carries a base64 JSON error blob. The exchange is
	// completed with an empty response before failing, as the protocol
	// requires.
	detail, derr := decodeChallenge(reply)
	if derr != nil {
		detail = []byte(reply)
	}
	_, _ = s.Execute("")
	return fmt.Errorf("xoauth2 authentication failed: %s", detail)
}
