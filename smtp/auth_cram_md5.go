// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package smtp

import (
	"crypto/hmac"
	"crypto/md5"
	"fmt"
)

// cramMD5Auth is the type that satisfies the Auth interface for the
// "CRAM-MD5" mechanism.
type cramMD5Auth struct{}

// CramMD5Auth returns an Auth that implements the CRAM-MD5 authentication
// mechanism as defined in RFC 2195. The password is never sent over the
// wire; the client answers the server's one-time challenge with an HMAC-MD5
// digest keyed with the password, so the mechanism is usable on unencrypted
// channels as well.
func CramMD5Auth() Auth {
	return cramMD5Auth{}
}

// Mechanism satisfies the Auth interface for the cramMD5Auth type.
func (cramMD5Auth) Mechanism() string {
	return "CRAM-MD5"
}

// Authenticate satisfies the Auth interface for the cramMD5Auth type.
func (cramMD5Auth) Authenticate(s Session, username, password string) error {
	reply, err := s.Execute("AUTH CRAM-MD5", CodeAuthContinue)
	if err != nil {
		return err
	}
	challenge, err := decodeChallenge(reply)
	if err != nil {
		return err
	}
	digest := hmac.New(md5.New, []byte(password))
	digest.Write(challenge)
	response := fmt.Sprintf("%s %x", username, digest.Sum(nil))
	_, err = s.Execute(encodeBase64([]byte(response)), CodeAuthSuccess)
	return err
}
