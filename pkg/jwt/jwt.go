// Package jwt signs and verifies short-lived HS256 tokens.
//
// The engine uses it for exactly one thing: the OAuth state value placed in
// the client cookie during an OIDC authorization flow.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSigningKey is returned when the key is too short for HMAC-SHA256.
	ErrInvalidSigningKey = errors.New("signing key must be at least 32 bytes")
	// ErrInvalidToken is returned for any parse or signature failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token's exp claim is in the past.
	ErrExpiredToken = errors.New("token has expired")
)

// Signer issues and verifies HS256 tokens with a process-scoped symmetric key.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer. The key must be at least 32 bytes.
func NewSigner(key []byte) (*Signer, error) {
	if len(key) < 32 {
		return nil, ErrInvalidSigningKey
	}
	return &Signer{key: key}, nil
}

// Sign returns a token whose subject is the given value, expiring after ttl.
func (s *Signer) Sign(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify parses the token, checks the signature and temporal claims, and
// returns the subject.
func (s *Signer) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", errors.Join(ErrInvalidToken, err)
	}
	return claims.Subject, nil
}
