package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/peladahub/peladahub/internal/database/testutil"
	"github.com/peladahub/peladahub/internal/models"
)

func newSessionTestService(t *testing.T, cfg SessionConfig) (*SessionService, *gorm.DB, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)

	user := &models.User{
		Email:      "carlos@example.com",
		Name:       "Carlos",
		Password:   "hashed",
		Membership: models.MembershipMonthly,
		Role:       models.RolePlayer,
	}
	require.NoError(t, db.Create(user).Error)

	jwtService, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "peladahub"})
	require.NoError(t, err)

	svc, err := NewSessionService(db, jwtService, cfg)
	require.NoError(t, err)

	return svc, db, user
}

func TestCreateSessionIssuesTokenPair(t *testing.T) {
	svc, db, user := newSessionTestService(t, SessionConfig{})

	pair, session, err := svc.CreateSession(user, SessionMetadata{ClientIP: "10.0.0.1", UserAgent: "ios-app"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, user.ID, session.UserID)
	require.Equal(t, "10.0.0.1", session.ClientIP)

	var stored models.Session
	require.NoError(t, db.Take(&stored, "id = ?", session.ID).Error)
	require.NotEqual(t, pair.RefreshToken, stored.RefreshTokenHash)
}

func TestRefreshSessionRotatesToken(t *testing.T) {
	svc, _, user := newSessionTestService(t, SessionConfig{})

	pair, _, err := svc.CreateSession(user, SessionMetadata{})
	require.NoError(t, err)

	rotated, session, err := svc.RefreshSession(pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.AccessToken)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	require.Equal(t, user.ID, session.UserID)

	// The previous refresh token must stop working after rotation.
	_, _, err = svc.RefreshSession(pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRefreshSessionRejectsExpired(t *testing.T) {
	current := time.Now()
	clock := func() time.Time { return current }

	svc, _, user := newSessionTestService(t, SessionConfig{
		RefreshTokenTTL: time.Hour,
		Clock:           clock,
	})

	pair, _, err := svc.CreateSession(user, SessionMetadata{})
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)

	_, _, err = svc.RefreshSession(pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestRevokeSessionBlocksRefresh(t *testing.T) {
	svc, _, user := newSessionTestService(t, SessionConfig{})

	pair, session, err := svc.CreateSession(user, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeSession(session.ID))
	require.ErrorIs(t, svc.RevokeSession(session.ID), ErrSessionNotFound)

	_, _, err = svc.RefreshSession(pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestRevokeUserSessions(t *testing.T) {
	svc, db, user := newSessionTestService(t, SessionConfig{})

	_, _, err := svc.CreateSession(user, SessionMetadata{})
	require.NoError(t, err)
	_, _, err = svc.CreateSession(user, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeUserSessions(user.ID))

	var remaining int64
	require.NoError(t, db.Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", user.ID).
		Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestCleanupExpiredRemovesStaleSessions(t *testing.T) {
	current := time.Now()
	clock := func() time.Time { return current }

	svc, db, user := newSessionTestService(t, SessionConfig{
		RefreshTokenTTL: time.Hour,
		Clock:           clock,
	})

	_, _, err := svc.CreateSession(user, SessionMetadata{})
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)

	deleted, err := svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.Session{}).Count(&remaining).Error)
	require.Zero(t, remaining)
}
