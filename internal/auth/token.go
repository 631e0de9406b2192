// Package auth checks the single shared editor secret presented as a bearer
// token on mutating requests.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrNotConfigured = errors.New("no write secret configured")
)

// Verifier accepts a token equal to the configured secret, or one matching
// the configured bcrypt hash. With neither configured every token is refused.
type Verifier struct {
	secret []byte
	hash   []byte
}

// NewVerifier builds a verifier. bcryptHash, when set, must be a valid
// bcrypt hash.
func NewVerifier(secret, bcryptHash string) (*Verifier, error) {
	v := &Verifier{}
	if secret != "" {
		v.secret = digest(secret)
	}
	if bcryptHash != "" {
		if _, err := bcrypt.Cost([]byte(bcryptHash)); err != nil {
			return nil, fmt.Errorf("parse write token hash: %w", err)
		}
		v.hash = []byte(bcryptHash)
	}
	return v, nil
}

// Configured reports whether any secret is set.
func (v *Verifier) Configured() bool {
	return v != nil && (v.secret != nil || v.hash != nil)
}

// Verify returns nil when token is accepted.
func (v *Verifier) Verify(token string) error {
	if !v.Configured() {
		return ErrNotConfigured
	}
	if token == "" {
		return ErrInvalidToken
	}
	if v.secret != nil && hmac.Equal(digest(token), v.secret) {
		return nil
	}
	if v.hash != nil && bcrypt.CompareHashAndPassword(v.hash, []byte(token)) == nil {
		return nil
	}
	return ErrInvalidToken
}

// digest maps both sides of the comparison to the same length.
func digest(value string) []byte {
	sum := sha256.Sum256([]byte(value))
	return sum[:]
}

// HashToken returns a bcrypt hash suitable for REGISTRY_WRITE_TOKEN_BCRYPT.
func HashToken(value string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}
