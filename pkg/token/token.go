// Package token mints cryptographically secure random strings for session
// tokens, single-use verification tokens, and MFA recovery codes.
package token

import (
	"crypto/rand"
	"errors"
	"strings"
)

// ErrTokenGeneration is returned when the system entropy source fails.
var ErrTokenGeneration = errors.New("failed to generate token")

// urlSafeAlphabet matches the URL-safe base64 alphabet (RFC 4648 §5).
// Exactly 64 characters, so a random byte masked to 6 bits maps uniformly.
const urlSafeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// recoveryAlphabet is the 32-character set used for recovery codes.
// Ambiguous characters (i, l, o, u) are excluded to keep codes typeable.
const recoveryAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Secure returns a random string of n characters drawn from the URL-safe
// base64 alphabet using a cryptographically secure source.
func Secure(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	out := make([]byte, n)
	for i, c := range b {
		out[i] = urlSafeAlphabet[c&0x3f]
	}
	return string(out), nil
}

// MustSecure is Secure for call sites that cannot recover from an entropy
// failure; it panics instead of returning an error.
func MustSecure(n int) string {
	s, err := Secure(n)
	if err != nil {
		panic(err)
	}
	return s
}

// Recovery returns a single recovery code of the shape XXXXX-XXXXX where each
// block is drawn from the 32-character recovery alphabet.
func Recovery() (string, error) {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	var sb strings.Builder
	sb.Grow(11)
	for i, c := range b {
		if i == 5 {
			sb.WriteByte('-')
		}
		sb.WriteByte(recoveryAlphabet[c&0x1f])
	}
	return sb.String(), nil
}
