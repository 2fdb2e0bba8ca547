package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/peladahub/peladahub/internal/models"
	"github.com/peladahub/peladahub/pkg/crypto"
)

const (
	bootstrapEmailEnv    = "PELADAHUB_BOOTSTRAP_EMAIL"
	bootstrapPasswordEnv = "PELADAHUB_BOOTSTRAP_PASSWORD"
	bootstrapNameEnv     = "PELADAHUB_BOOTSTRAP_NAME"
)

// ensureOrganizerAccount creates the first organizer when the database has
// none. Every other account enters through an invite, so without this seed
// nobody could issue invites at all.
func ensureOrganizerAccount(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleOrganizer).
		Count(&count).Error; err != nil {
		return fmt.Errorf("count organizers: %w", err)
	}
	if count > 0 {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(os.Getenv(bootstrapEmailEnv)))
	password := os.Getenv(bootstrapPasswordEnv)
	if email == "" || password == "" {
		log.Warn("no organizer account exists and bootstrap credentials are unset",
			zap.String("email_env", bootstrapEmailEnv),
			zap.String("password_env", bootstrapPasswordEnv))
		return nil
	}

	name := strings.TrimSpace(os.Getenv(bootstrapNameEnv))
	if name == "" {
		name = "Organizer"
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	organizer := &models.User{
		Email:      email,
		Name:       name,
		Password:   hashed,
		Membership: models.MembershipMonthly,
		Role:       models.RoleOrganizer,
		IsActive:   true,
	}
	if err := db.WithContext(ctx).Create(organizer).Error; err != nil {
		return fmt.Errorf("create bootstrap organizer: %w", err)
	}

	log.Info("created bootstrap organizer", zap.String("email", email))
	return nil
}
