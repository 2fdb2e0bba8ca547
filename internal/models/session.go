package models

import "time"

// Session stores a refresh-token session for an authenticated device.
type Session struct {
	BaseModel

	UserID           string     `gorm:"type:uuid;index;not null" json:"user_id"`
	RefreshTokenHash string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt        time.Time  `gorm:"index" json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`

	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Active reports whether the session can still mint access tokens.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
