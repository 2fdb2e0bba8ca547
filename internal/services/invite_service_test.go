package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/peladahub/peladahub/internal/database/testutil"
	"github.com/peladahub/peladahub/internal/models"
)

func newInviteTestService(t *testing.T, opts ...InviteOption) (*InviteService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := NewInviteService(db, nil, opts...)
	require.NoError(t, err)
	return svc, db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:      email,
		Name:       "Player",
		Password:   "hashed",
		Membership: models.MembershipNone,
		Role:       models.RolePlayer,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCreateInvitePersistsBeforeReturningURL(t *testing.T) {
	svc, db := newInviteTestService(t, WithInviteBaseURL("https://pelada.example.com"))

	result, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "Novo@Example.com",
		Membership: models.MembershipMonthly,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(result.Token), 32)
	require.Contains(t, result.URL, "https://pelada.example.com/invite/accept?token=")
	require.Contains(t, result.URL, result.Token)

	var stored models.Invite
	require.NoError(t, db.Take(&stored, "token = ?", result.Token).Error)
	require.Equal(t, "novo@example.com", stored.Email)
	require.Equal(t, models.InviteStatusSent, stored.Status)
	require.Zero(t, stored.UsedCount)
}

func TestCreateInviteRejectsInvalidMembership(t *testing.T) {
	svc, _ := newInviteTestService(t)

	_, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "novo@example.com",
		Membership: "weekly",
	})
	require.Error(t, err)
}

func TestAcceptInviteGrantsMonthlyRoutes(t *testing.T) {
	svc, db := newInviteTestService(t)
	user := createTestUser(t, db, "x@y.com")

	created, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "x@y.com",
		Membership: models.MembershipMonthly,
	})
	require.NoError(t, err)

	result, err := svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    user.ID,
		CallerEmail: "x@y.com",
	})
	require.NoError(t, err)
	require.Equal(t, models.MembershipMonthly, result.Membership)
	require.Equal(t, []string{"Matches", "Match", "Financial", "Ranking", "Profile"}, result.Routes)

	var invite models.Invite
	require.NoError(t, db.Take(&invite, "token = ?", created.Token).Error)
	require.Equal(t, models.InviteStatusAccepted, invite.Status)
	require.Equal(t, 1, invite.UsedCount)
	require.NotNil(t, invite.ConsumedBy)
	require.Equal(t, user.ID, *invite.ConsumedBy)
	require.NotNil(t, invite.ConsumedAt)

	var profile models.User
	require.NoError(t, db.Take(&profile, "id = ?", user.ID).Error)
	require.Equal(t, models.MembershipMonthly, profile.Membership)
	require.Equal(t, models.RolePlayer, profile.Role)
}

func TestAcceptInviteCasualRoutes(t *testing.T) {
	svc, db := newInviteTestService(t)
	user := createTestUser(t, db, "casual@y.com")

	created, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "casual@y.com",
		Membership: models.MembershipCasual,
	})
	require.NoError(t, err)

	result, err := svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    user.ID,
		CallerEmail: "casual@y.com",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Matches", "Profile"}, result.Routes)
}

func TestAcceptInviteEmailComparisonIsCaseInsensitive(t *testing.T) {
	svc, db := newInviteTestService(t)
	user := createTestUser(t, db, "a@b.com")

	created, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "A@B.com",
		Membership: models.MembershipMonthly,
	})
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    user.ID,
		CallerEmail: "a@b.com",
	})
	require.NoError(t, err)
}

func TestAcceptInviteUnknownToken(t *testing.T) {
	svc, _ := newInviteTestService(t)

	_, err := svc.Accept(context.Background(), AcceptInviteInput{
		Token:       "does-not-exist",
		CallerID:    "caller",
		CallerEmail: "x@y.com",
	})
	require.ErrorIs(t, err, ErrInviteNotFound)
}

func TestAcceptInviteSecondUseFails(t *testing.T) {
	svc, db := newInviteTestService(t)
	user := createTestUser(t, db, "x@y.com")

	created, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "x@y.com",
		Membership: models.MembershipMonthly,
	})
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    user.ID,
		CallerEmail: "x@y.com",
	})
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    user.ID,
		CallerEmail: "x@y.com",
	})
	require.ErrorIs(t, err, ErrInviteAlreadyUsed)

	var invite models.Invite
	require.NoError(t, db.Take(&invite, "token = ?", created.Token).Error)
	require.Equal(t, 1, invite.UsedCount)
}

func TestAcceptInviteExhausted(t *testing.T) {
	svc, db := newInviteTestService(t)
	user := createTestUser(t, db, "x@y.com")

	maxUses := 2
	created, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "x@y.com",
		Membership: models.MembershipMonthly,
		MaxUses:    &maxUses,
	})
	require.NoError(t, err)

	// Simulate a fully used invite that is still in sent status.
	require.NoError(t, db.Model(&models.Invite{}).
		Where("token = ?", created.Token).
		Update("used_count", maxUses).Error)

	_, err = svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    user.ID,
		CallerEmail: "x@y.com",
	})
	require.ErrorIs(t, err, ErrInviteExhausted)
}

func TestAcceptInviteExpired(t *testing.T) {
	current := time.Now()
	svc, db := newInviteTestService(t, WithInviteClock(func() time.Time { return current }))
	user := createTestUser(t, db, "x@y.com")

	expiry := current.Add(time.Hour)
	created, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "x@y.com",
		Membership: models.MembershipMonthly,
		ExpiresAt:  &expiry,
	})
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)

	_, err = svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    user.ID,
		CallerEmail: "x@y.com",
	})
	require.ErrorIs(t, err, ErrInviteExpired)

	var invite models.Invite
	require.NoError(t, db.Take(&invite, "token = ?", created.Token).Error)
	require.Zero(t, invite.UsedCount)
}

func TestAcceptInviteEmailMismatch(t *testing.T) {
	svc, db := newInviteTestService(t)
	user := createTestUser(t, db, "intruso@y.com")

	created, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "convidado@y.com",
		Membership: models.MembershipCasual,
	})
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    user.ID,
		CallerEmail: "intruso@y.com",
	})
	require.ErrorIs(t, err, ErrInviteEmailMismatch)
}

func TestAcceptInviteLostRaceReportsConflict(t *testing.T) {
	svc, db := newInviteTestService(t)
	user := createTestUser(t, db, "x@y.com")

	created, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "x@y.com",
		Membership: models.MembershipMonthly,
	})
	require.NoError(t, err)

	// Simulate a concurrent acceptance that committed between this caller's
	// precondition read and its conditional update: flip the row under it.
	require.NoError(t, db.Model(&models.Invite{}).
		Where("token = ?", created.Token).
		Updates(map[string]any{
			"status":     models.InviteStatusAccepted,
			"used_count": 1,
		}).Error)

	// Re-run only the consumption path by injecting the stale view: the
	// conditional update must match zero rows and report a conflict.
	result := db.Model(&models.Invite{}).
		Where("token = ? AND status = ?", created.Token, models.InviteStatusSent).
		Where("max_uses IS NULL OR used_count < max_uses").
		Updates(map[string]any{"used_count": gorm.Expr("used_count + 1")})
	require.NoError(t, result.Error)
	require.Zero(t, result.RowsAffected)

	_, err = svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    user.ID,
		CallerEmail: "x@y.com",
	})
	require.ErrorIs(t, err, ErrInviteAlreadyUsed)

	var invite models.Invite
	require.NoError(t, db.Take(&invite, "token = ?", created.Token).Error)
	require.Equal(t, 1, invite.UsedCount)
}

func TestAcceptInvitePreconditionOrder(t *testing.T) {
	// An invite that is both accepted and expired must report the status
	// failure first.
	current := time.Now()
	svc, db := newInviteTestService(t, WithInviteClock(func() time.Time { return current }))
	user := createTestUser(t, db, "x@y.com")

	expiry := current.Add(-time.Hour)
	invite := models.Invite{
		Token:      "ordered-check-token-0123456789abcdef",
		Email:      "x@y.com",
		Membership: models.MembershipMonthly,
		Status:     models.InviteStatusAccepted,
		ExpiresAt:  &expiry,
	}
	require.NoError(t, db.Create(&invite).Error)

	_, err := svc.Accept(context.Background(), AcceptInviteInput{
		Token:       invite.Token,
		CallerID:    user.ID,
		CallerEmail: "x@y.com",
	})
	require.ErrorIs(t, err, ErrInviteAlreadyUsed)
}

func TestAcceptInviteUpsertsNewProfile(t *testing.T) {
	// The authenticated identity may not have a profile row yet; acceptance
	// creates one keyed by the caller id.
	svc, db := newInviteTestService(t)

	created, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "novato@y.com",
		Membership: models.MembershipCasual,
	})
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    "7f9c2b5e-0000-4000-8000-000000000001",
		CallerEmail: "novato@y.com",
	})
	require.NoError(t, err)

	var profile models.User
	require.NoError(t, db.Take(&profile, "id = ?", "7f9c2b5e-0000-4000-8000-000000000001").Error)
	require.Equal(t, models.MembershipCasual, profile.Membership)
	require.Equal(t, "novato@y.com", profile.Email)
}

func TestAcceptInviteProfileUpsertFailureKeepsConsumption(t *testing.T) {
	// Consumption and the profile write are separate statements. A failed
	// profile write surfaces as an error but does not resurrect the invite.
	svc, db := newInviteTestService(t)

	created, err := svc.Create(context.Background(), CreateInviteInput{
		Email:      "novato@y.com",
		Membership: models.MembershipCasual,
	})
	require.NoError(t, err)

	require.NoError(t, db.Migrator().DropTable(&models.User{}))

	_, err = svc.Accept(context.Background(), AcceptInviteInput{
		Token:       created.Token,
		CallerID:    "7f9c2b5e-0000-4000-8000-000000000002",
		CallerEmail: "novato@y.com",
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInviteAlreadyUsed)

	var invite models.Invite
	require.NoError(t, db.Take(&invite, "token = ?", created.Token).Error)
	require.Equal(t, models.InviteStatusAccepted, invite.Status)
	require.Equal(t, 1, invite.UsedCount)
}
