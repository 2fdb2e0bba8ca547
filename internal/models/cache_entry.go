package models

import "time"

// CacheEntry backs the database cache store used when Redis is not
// configured.
type CacheEntry struct {
	Key       string     `gorm:"primaryKey;size:255" json:"key"`
	Value     string     `json:"value"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
