package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/maintenance-cmms/internal/persistence"
	"github.com/example/maintenance-cmms/internal/testfixtures"
)

func newSession(user persistence.User, token string, expiresAt time.Time) persistence.Session {
	created := testfixtures.ReferenceTime()
	return persistence.Session{
		ID:        "session-" + token,
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := seedUser(t, h)

	expires := testfixtures.ReferenceTime().Add(24 * time.Hour)
	created, err := h.Sessions.CreateSession(ctx, newSession(user, "token-a", expires))
	require.NoError(t, err)
	assert.Equal(t, user.ID, created.UserID)

	retrieved, err := h.Sessions.GetSession(ctx, "token-a")
	require.NoError(t, err)
	assert.Equal(t, created.ID, retrieved.ID)
	assert.True(t, retrieved.ExpiresAt.Equal(expires))
	assert.Nil(t, retrieved.RevokedAt)
}

func TestSessionRepository_DuplicateTokenIsRejected(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := seedUser(t, h)

	expires := testfixtures.ReferenceTime().Add(time.Hour)
	_, err := h.Sessions.CreateSession(ctx, newSession(user, "token-a", expires))
	require.NoError(t, err)

	dup := newSession(user, "token-a", expires)
	dup.ID = "session-other"
	_, err = h.Sessions.CreateSession(ctx, dup)
	require.ErrorIs(t, err, persistence.ErrDuplicate)
}

func TestSessionRepository_UpdateSessionRotatesToken(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := seedUser(t, h)

	expires := testfixtures.ReferenceTime().Add(time.Hour)
	session, err := h.Sessions.CreateSession(ctx, newSession(user, "token-a", expires))
	require.NoError(t, err)

	session.Token = "token-b"
	session.ExpiresAt = expires.Add(time.Hour)
	updated, err := h.Sessions.UpdateSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "token-b", updated.Token)

	_, err = h.Sessions.GetSession(ctx, "token-a")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSessionRepository_RevokeSession(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := seedUser(t, h)

	expires := testfixtures.ReferenceTime().Add(time.Hour)
	_, err := h.Sessions.CreateSession(ctx, newSession(user, "token-a", expires))
	require.NoError(t, err)

	revokedAt := testfixtures.ReferenceTime().Add(30 * time.Minute)
	revoked, err := h.Sessions.RevokeSession(ctx, "token-a", revokedAt)
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)
	assert.True(t, revoked.RevokedAt.Equal(revokedAt))

	_, err = h.Sessions.RevokeSession(ctx, "token-ghost", revokedAt)
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestSessionRepository_DeleteExpiredSessions(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := seedUser(t, h)

	reference := testfixtures.ReferenceTime()
	_, err := h.Sessions.CreateSession(ctx, newSession(user, "token-old", reference.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = h.Sessions.CreateSession(ctx, newSession(user, "token-live", reference.Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, h.Sessions.DeleteExpiredSessions(ctx, reference))

	_, err = h.Sessions.GetSession(ctx, "token-old")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = h.Sessions.GetSession(ctx, "token-live")
	require.NoError(t, err)
}

func TestSessionRepository_UserDeleteCascades(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := seedUser(t, h)

	_, err := h.Sessions.CreateSession(ctx, newSession(user, "token-a", testfixtures.ReferenceTime().Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, h.Users.DeleteUser(ctx, user.ID))

	_, err = h.Sessions.GetSession(ctx, "token-a")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}
