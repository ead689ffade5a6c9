// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package smtp

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/secure/precis"
)

// scramAuth is the type that satisfies the Auth interface for the SCRAM
// (Salted Challenge Response Authentication Mechanism) family as defined in
// RFC 5802.
type scramAuth struct {
	algorithm string
	h         func() hash.Hash
}

// scramExchange carries the state of one SCRAM authentication run. A fresh
// exchange is created per run, keeping the scramAuth mechanism itself free of
// credentials and safe for reuse across sessions.
type scramExchange struct {
	scramAuth
	nonce        []byte
	firstBareMsg []byte
	saltedPwd    []byte
	authMessage  []byte
}

// ScramSHA1Auth returns an Auth that implements the SCRAM-SHA-1
// authentication mechanism.
func ScramSHA1Auth() Auth {
	return scramAuth{algorithm: "SCRAM-SHA-1", h: sha1.New}
}

// ScramSHA256Auth returns an Auth that implements the SCRAM-SHA-256
// authentication mechanism.
func ScramSHA256Auth() Auth {
	return scramAuth{algorithm: "SCRAM-SHA-256", h: sha256.New}
}

// Mechanism satisfies the Auth interface for the scramAuth type.
func (a scramAuth) Mechanism() string {
	return a.algorithm
}

// Authenticate satisfies the Auth interface for the scramAuth type.
func (a scramAuth) Authenticate(s Session, username, password string) error {
	e := &scramExchange{scramAuth: a}

	clientFirst, err := e.clientFirstMessage(username)
	if err != nil {
		return err
	}
	reply, err := s.Execute("AUTH "+a.algorithm+" "+encodeBase64(clientFirst), CodeAuthContinue)
	if err != nil {
		return err
	}
	serverFirst, err := decodeChallenge(reply)
	if err != nil {
		return err
	}

	clientFinal, err := e.clientFinalMessage(serverFirst, password)
	if err != nil {
		return err
	}
	reply, err = s.Execute(encodeBase64(clientFinal), CodeAuthContinue)
	if err != nil {
		return err
	}
	serverFinal, err := decodeChallenge(reply)
	if err != nil {
		return err
	}
	if err := e.verifyServerSignature(serverFinal); err != nil {
		return err
	}

	// The exchange concludes with an empty client response.
	_, err = s.Execute("", CodeAuthSuccess)
	return err
}

// clientFirstMessage builds the gs2-prefixed client-first message with a
// fresh nonce.
func (e *scramExchange) clientFirstMessage(username string) ([]byte, error) {
	username, err := e.normalizeUsername(username)
	if err != nil {
		return nil, fmt.Errorf("username normalization failed: %w", err)
	}

	nonceBuffer := make([]byte, 24)
	if _, err := io.ReadFull(rand.Reader, nonceBuffer); err != nil {
		return nil, fmt.Errorf("unable to generate client nonce: %w", err)
	}
	e.nonce = make([]byte, base64.StdEncoding.EncodedLen(len(nonceBuffer)))
	base64.StdEncoding.Encode(e.nonce, nonceBuffer)

	e.firstBareMsg = []byte("n=" + username + ",r=" + string(e.nonce))
	return []byte("n,," + string(e.firstBareMsg)), nil
}

// clientFinalMessage parses the server-first message, derives the salted
// password and returns the client-final message including the client proof.
func (e *scramExchange) clientFinalMessage(serverFirst []byte, password string) ([]byte, error) {
	parts := bytes.Split(serverFirst, []byte(","))
	if len(parts) < 3 {
		return nil, errors.New("not enough fields in the server-first message")
	}
	if !bytes.HasPrefix(parts[0], []byte("r=")) {
		return nil, errors.New("first part of the server-first message does not start with r=")
	}
	if !bytes.HasPrefix(parts[1], []byte("s=")) {
		return nil, errors.New("second part of the server-first message does not start with s=")
	}
	if !bytes.HasPrefix(parts[2], []byte("i=")) {
		return nil, errors.New("third part of the server-first message does not start with i=")
	}

	combinedNonce := parts[0][2:]
	if len(e.nonce) == 0 || !bytes.HasPrefix(combinedNonce, e.nonce) {
		return nil, errors.New("server nonce does not start with our nonce")
	}
	e.nonce = combinedNonce

	encodedSalt := parts[1][2:]
	salt := make([]byte, base64.StdEncoding.DecodedLen(len(encodedSalt)))
	n, err := base64.StdEncoding.Decode(salt, encodedSalt)
	if err != nil {
		return nil, fmt.Errorf("invalid encoded salt: %w", err)
	}
	salt = salt[:n]

	iterations, err := strconv.Atoi(string(parts[2][2:]))
	if err != nil {
		return nil, fmt.Errorf("invalid iteration count: %w", err)
	}

	password, err = e.normalizeString(password)
	if err != nil {
		return nil, fmt.Errorf("unable to normalize password: %w", err)
	}
	e.saltedPwd = pbkdf2.Key([]byte(password), salt, iterations, e.h().Size(), e.h)

	msgWithoutProof := []byte("c=biws,r=" + string(e.nonce))
	e.authMessage = []byte(string(e.firstBareMsg) + "," + string(serverFirst) + "," + string(msgWithoutProof))

	return []byte(string(msgWithoutProof) + ",p=" + string(e.clientProof())), nil
}

// verifyServerSignature checks the server-final message against the signature
// derived from the salted password, proving the server knew the credentials.
func (e *scramExchange) verifyServerSignature(serverFinal []byte) error {
	if !bytes.HasPrefix(serverFinal, []byte("v=")) {
		return fmt.Errorf("%w: %s", ErrUnexpectedServerChallenge, serverFinal)
	}
	serverKey := e.computeHMAC(e.saltedPwd, []byte("Server Key"))
	serverSignature := e.computeHMAC(serverKey, e.authMessage)
	expected := make([]byte, base64.StdEncoding.EncodedLen(len(serverSignature)))
	base64.StdEncoding.Encode(expected, serverSignature)

	if !hmac.Equal(serverFinal[2:], expected) {
		return errors.New("invalid server signature")
	}
	return nil
}

// clientProof computes the base64-encoded client proof for the current
// authentication message.
func (e *scramExchange) clientProof() []byte {
	clientKey := e.computeHMAC(e.saltedPwd, []byte("Client Key"))
	storedKey := e.computeHash(clientKey)
	clientSignature := e.computeHMAC(storedKey, e.authMessage)
	clientProof := make([]byte, len(clientSignature))
	for i := range clientSignature {
		clientProof[i] = clientKey[i] ^ clientSignature[i]
	}
	buf := make([]byte, base64.StdEncoding.EncodedLen(len(clientProof)))
	base64.StdEncoding.Encode(buf, clientProof)
	return buf
}

// computeHMAC generates an HMAC of msg using the configured hash and key.
func (e *scramExchange) computeHMAC(key, msg []byte) []byte {
	mac := hmac.New(e.h, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// computeHash generates a digest of key using the configured hash.
func (e *scramExchange) computeHash(key []byte) []byte {
	hasher := e.h()
	hasher.Write(key)
	return hasher.Sum(nil)
}

// normalizeUsername escapes the characters reserved by RFC 5802 section 5.1
// and prepares the username with the SASLprep successor profile.
func (e *scramExchange) normalizeUsername(username string) (string, error) {
	// RFC 5802 section 5.1: the characters ',' or '=' in usernames are
	// sent as '=2C' and '=3D' respectively.
	username = strings.NewReplacer("=", "=3D", ",", "=2C").Replace(username)
	// RFC 5802 wants the username prepared with the SASLprep profile of
	// RFC 4013. RFC 8265 obsoletes RFC 4013, so its OpaqueString profile is
	// used instead.
	return e.normalizeString(username)
}

// normalizeString normalizes s according to the OpaqueString profile of the
// precis framework. Normalization failing or producing an empty string aborts
// the exchange.
func (e *scramExchange) normalizeString(s string) (string, error) {
	s, err := precis.OpaqueString.String(s)
	if err != nil {
		return "", fmt.Errorf("failed to normalize string: %w", err)
	}
	return s, nil
}
