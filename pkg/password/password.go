// Package password provides Argon2id password hashing with PHC-encoded output.
//
// Hashes are self-describing: the encoded string carries the algorithm
// parameters and salt, so parameter upgrades only affect new hashes.
package password

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/authifier/authifier/pkg/token"
)

var (
	// ErrInvalidCredentials is returned for any verification failure,
	// including malformed hashes. Callers must not be able to distinguish a
	// wrong password from a corrupt record.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrHashFailed is returned when a new hash cannot be produced.
	ErrHashFailed = errors.New("failed to hash password")
)

// Argon2id parameters. 19 MiB memory, 2 passes, 1 lane.
const (
	memory     = 19 * 1024
	iterations = 2
	threads    = 1
	keyLength  = 32
	saltLength = 24
)

// Hash derives an Argon2id hash of the password with a fresh 24-character
// salt and returns the PHC-encoded string:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
func Hash(password string) (string, error) {
	salt, err := token.Secure(saltLength)
	if err != nil {
		return "", errors.Join(ErrHashFailed, err)
	}

	key := argon2.IDKey([]byte(password), []byte(salt), iterations, memory, threads, keyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, iterations, threads,
		base64.RawStdEncoding.EncodeToString([]byte(salt)),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks the password against a PHC-encoded Argon2id hash in constant
// time. Any decode or parameter error collapses into ErrInvalidCredentials.
func Verify(encoded, password string) error {
	salt, key, params, err := decode(encoded)
	if err != nil {
		return ErrInvalidCredentials
	}

	derived := argon2.IDKey([]byte(password), salt, params.iterations, params.memory, params.threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, derived) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

type hashParams struct {
	memory     uint32
	iterations uint32
	threads    uint8
}

func decode(encoded string) ([]byte, []byte, hashParams, error) {
	var params hashParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, params, ErrInvalidCredentials
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, params, ErrInvalidCredentials
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.iterations, &params.threads); err != nil {
		return nil, nil, params, ErrInvalidCredentials
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, ErrInvalidCredentials
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, ErrInvalidCredentials
	}

	return salt, key, params, nil
}
