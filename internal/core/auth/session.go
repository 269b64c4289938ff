package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// SessionTokenBytes is the amount of randomness in a session token.
const SessionTokenBytes = 32

// NewSessionToken returns a random hex session token for the cookie.
func NewSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashSessionToken returns the value stored in the sessions table for token.
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
