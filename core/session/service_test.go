package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authifier/authifier/core/autherr"
	"github.com/authifier/authifier/core/session"
	"github.com/authifier/authifier/integration/database/memory"
)

func TestCreate(t *testing.T) {
	t.Parallel()

	st := memory.New()
	svc := session.New(st)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-1", "Firefox on Linux")
	require.NoError(t, err)

	assert.Len(t, sess.ID, 26)
	assert.Len(t, sess.Token, 64)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "Firefox on Linux", sess.Name)
	assert.WithinDuration(t, time.Now(), sess.LastSeen, 5*time.Second)

	found, err := st.FindSessionByToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, found.ID)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	st := memory.New()
	svc := session.New(st)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-1", "a")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, sess))
	_, err = st.FindSession(ctx, sess.ID)
	assert.Error(t, err)
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	t.Run("own session of another device", func(t *testing.T) {
		t.Parallel()

		st := memory.New()
		svc := session.New(st)
		ctx := context.Background()

		mine, err := svc.Create(ctx, "user-1", "laptop")
		require.NoError(t, err)
		other, err := svc.Create(ctx, "user-1", "phone")
		require.NoError(t, err)

		require.NoError(t, svc.Revoke(ctx, mine, other.ID))
		_, err = st.FindSession(ctx, other.ID)
		assert.Error(t, err)
	})

	t.Run("foreign and missing targets fail identically", func(t *testing.T) {
		t.Parallel()

		svc := session.New(memory.New())
		ctx := context.Background()

		mine, err := svc.Create(ctx, "user-1", "laptop")
		require.NoError(t, err)
		theirs, err := svc.Create(ctx, "user-2", "laptop")
		require.NoError(t, err)

		assert.ErrorIs(t, svc.Revoke(ctx, mine, theirs.ID), autherr.ErrInvalidToken)
		assert.ErrorIs(t, svc.Revoke(ctx, mine, "no-such-session"), autherr.ErrInvalidToken)
	})
}

func TestRevokeAll(t *testing.T) {
	t.Parallel()

	st := memory.New()
	svc := session.New(st)
	ctx := context.Background()

	keep, err := svc.Create(ctx, "user-1", "keep")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, "user-1", "drop")
		require.NoError(t, err)
	}
	foreign, err := svc.Create(ctx, "user-2", "untouched")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, "user-1", keep.ID))

	mine, err := st.FindSessions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, keep.ID, mine[0].ID)

	_, err = st.FindSession(ctx, foreign.ID)
	assert.NoError(t, err)
}

func TestEdit(t *testing.T) {
	t.Parallel()

	st := memory.New()
	svc := session.New(st)
	ctx := context.Background()

	mine, err := svc.Create(ctx, "user-1", "old name")
	require.NoError(t, err)
	theirs, err := svc.Create(ctx, "user-2", "foreign")
	require.NoError(t, err)

	renamed, err := svc.Edit(ctx, mine, mine.ID, "new name")
	require.NoError(t, err)
	assert.Equal(t, "new name", renamed.Name)

	_, err = svc.Edit(ctx, mine, theirs.ID, "hijack")
	assert.ErrorIs(t, err, autherr.ErrInvalidSession)

	_, err = svc.Edit(ctx, mine, "no-such-session", "x")
	assert.ErrorIs(t, err, autherr.ErrInvalidSession)
}

func TestTouchLastSeen(t *testing.T) {
	t.Parallel()

	st := memory.New()
	svc := session.New(st)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-1", "a")
	require.NoError(t, err)
	sess.LastSeen = time.Now().Add(-time.Hour)
	require.NoError(t, st.SaveSession(ctx, sess))

	require.NoError(t, svc.TouchLastSeen(ctx, sess))

	fresh, err := st.FindSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), fresh.LastSeen, 5*time.Second)
}
