// Package totp implements RFC 6238 time-based one-time passwords as used for
// multi-factor authentication: SHA-1, 6 digits, 30-second step, no drift
// window. Secrets are RFC 4648 base32 without padding.
package totp

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrSecretGeneration is returned when the entropy source fails.
	ErrSecretGeneration = errors.New("failed to generate totp secret")
	// ErrCodeGeneration is returned when a code cannot be derived from the secret.
	ErrCodeGeneration = errors.New("failed to generate totp code")
)

// b32 encodes without padding per RFC 4648 §6 as used by authenticator apps.
var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// validateOpts pins the algorithm parameters. Skew is deliberately zero: only
// the current 30-second step is accepted.
var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      0,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateSecret returns a fresh base32-encoded secret from 10 random bytes.
func GenerateSecret() (string, error) {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrSecretGeneration, err)
	}
	return b32.EncodeToString(b), nil
}

// GenerateCode returns the code for the current time step.
func GenerateCode(secret string) (string, error) {
	return GenerateCodeAt(secret, time.Now())
}

// GenerateCodeAt returns the code for the step containing t. Useful in tests.
func GenerateCodeAt(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, t, validateOpts)
	if err != nil {
		return "", errors.Join(ErrCodeGeneration, err)
	}
	return code, nil
}

// Validate reports whether code is the correct value for the current step.
func Validate(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), validateOpts)
	return err == nil && ok
}

// ProvisioningURI builds the otpauth:// URI consumed by authenticator apps.
func ProvisioningURI(secret, accountName, issuer string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", "6")
	v.Set("period", "30")
	return fmt.Sprintf("otpauth://totp/%s:%s?%s",
		url.PathEscape(issuer), url.PathEscape(accountName), v.Encode())
}

// QRCodePNG renders a provisioning URI as a PNG for enrollment screens.
func QRCodePNG(uri string, size int) ([]byte, error) {
	return qrcode.Encode(uri, qrcode.Medium, size)
}
