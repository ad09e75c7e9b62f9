package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authifier/authifier/pkg/jwt"
)

func newSigner(t *testing.T) *jwt.Signer {
	t.Helper()
	s, err := jwt.NewSigner([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return s
}

func TestNewSigner(t *testing.T) {
	t.Parallel()

	t.Run("rejects short keys", func(t *testing.T) {
		t.Parallel()

		_, err := jwt.NewSigner([]byte("too short"))
		assert.ErrorIs(t, err, jwt.ErrInvalidSigningKey)
	})
}

func TestSignVerify(t *testing.T) {
	t.Parallel()

	t.Run("round trips the subject", func(t *testing.T) {
		t.Parallel()

		s := newSigner(t)
		tok, err := s.Sign("01J9ZK3V6PXW2Q4R5T6Y7U8I9O", 5*time.Minute)
		require.NoError(t, err)

		subject, err := s.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "01J9ZK3V6PXW2Q4R5T6Y7U8I9O", subject)
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		t.Parallel()

		s := newSigner(t)
		tok, err := s.Sign("state", -time.Minute)
		require.NoError(t, err)

		_, err = s.Verify(tok)
		assert.ErrorIs(t, err, jwt.ErrExpiredToken)
	})

	t.Run("rejects tokens signed with another key", func(t *testing.T) {
		t.Parallel()

		s := newSigner(t)
		other, err := jwt.NewSigner([]byte("ffffffffffffffffffffffffffffffff"))
		require.NoError(t, err)

		tok, err := other.Sign("state", time.Minute)
		require.NoError(t, err)

		_, err = s.Verify(tok)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		t.Parallel()

		s := newSigner(t)
		_, err := s.Verify("not.a.token")
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})
}
