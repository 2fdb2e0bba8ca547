package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peladahub/peladahub/internal/database/testutil"
	"github.com/peladahub/peladahub/internal/models"
	"github.com/peladahub/peladahub/pkg/crypto"
)

func TestEnsureOrganizerAccountCreatesSeed(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	t.Setenv(bootstrapEmailEnv, "Dono@Example.com")
	t.Setenv(bootstrapPasswordEnv, "segredo123")
	t.Setenv(bootstrapNameEnv, "Dono da Pelada")

	require.NoError(t, ensureOrganizerAccount(context.Background(), db, zap.NewNop()))

	var organizer models.User
	require.NoError(t, db.Take(&organizer, "role = ?", models.RoleOrganizer).Error)
	require.Equal(t, "dono@example.com", organizer.Email)
	require.Equal(t, "Dono da Pelada", organizer.Name)
	require.True(t, organizer.IsActive)
	require.True(t, crypto.VerifyPassword(organizer.Password, "segredo123"))
}

func TestEnsureOrganizerAccountIsIdempotent(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	t.Setenv(bootstrapEmailEnv, "dono@example.com")
	t.Setenv(bootstrapPasswordEnv, "segredo123")

	require.NoError(t, ensureOrganizerAccount(context.Background(), db, zap.NewNop()))
	require.NoError(t, ensureOrganizerAccount(context.Background(), db, zap.NewNop()))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleOrganizer).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestEnsureOrganizerAccountSkipsWithoutCredentials(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	t.Setenv(bootstrapEmailEnv, "")
	t.Setenv(bootstrapPasswordEnv, "")

	require.NoError(t, ensureOrganizerAccount(context.Background(), db, zap.NewNop()))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}
