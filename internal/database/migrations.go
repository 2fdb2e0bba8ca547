package database

import (
	"gorm.io/gorm"

	"github.com/peladahub/peladahub/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Invite{},
		&models.Match{},
		&models.MatchPlayer{},
		&models.MatchTeam{},
		&models.ScoreEvent{},
		&models.DiaristRequest{},
		&models.Charge{},
		&models.CacheEntry{},
	)
}
