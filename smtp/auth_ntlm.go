// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package smtp

import (
	"errors"
	"fmt"

	"github.com/Azure/go-ntlmssp"
)

// ErrNTLMChallengeEmpty is returned when the NTLMv2 ChallengeMessage received
// from the server is empty.
var ErrNTLMChallengeEmpty = errors.New("NTLMv2 ChallengeMessage is empty")

// ntlmAuth is the type that satisfies the Auth interface for the "NTLM"
// mechanism.
type ntlmAuth struct {
	workstation string
}

// NTLMv2Auth returns an Auth that implements the NTLMv2 authentication
// mechanism for the given workstation name. The domain is derived from the
// username ("DOMAIN\user" or "user@domain") during the exchange.
func NTLMv2Auth(workstation string) Auth {
	return ntlmAuth{workstation: workstation}
}

// Mechanism satisfies the Auth interface for the ntlmAuth type.
func (ntlmAuth) Mechanism() string {
	return "NTLM"
}

// Authenticate satisfies the Auth interface for the ntlmAuth type.
func (a ntlmAuth) Authenticate(s Session, username, password string) error {
	user, domain, domainNeeded := ntlmssp.GetDomain(username)
	negotiate, err := ntlmssp.NewNegotiateMessage(domain, a.workstation)
	if err != nil {
		return fmt.Errorf("failed to create NTLM negotiate message: %w", err)
	}
	reply, err := s.Execute("AUTH NTLM "+encodeBase64(negotiate), CodeAuthContinue)
	if err != nil {
		return err
	}
	challenge, err := decodeChallenge(reply)
	if err != nil {
		return err
	}
	if len(challenge) == 0 {
		return ErrNTLMChallengeEmpty
	}
	authenticate, err := ntlmssp.ProcessChallenge(challenge, user, password, domainNeeded)
	if err != nil {
		return fmt.Errorf("failed to process NTLM challenge: %w", err)
	}
	_, err = s.Execute(encodeBase64(authenticate), CodeAuthSuccess)
	return err
}
