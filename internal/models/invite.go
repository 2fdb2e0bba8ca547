package models

import "time"

// Invite statuses. Only sent and accepted are exercised by the acceptance
// flow; declined and expired exist for reporting.
const (
	InviteStatusSent     = "sent"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
	InviteStatusExpired  = "expired"
)

// Invite grants a specific email the right to join with a specific
// membership kind. The token is the single source of truth for lookup.
type Invite struct {
	BaseModel

	Token      string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	Email      string     `gorm:"index;not null" json:"email"`
	Membership Membership `gorm:"not null" json:"membership"`
	Status     string     `gorm:"not null;default:sent" json:"status"`

	// MaxUses nil means single-use by default, enforced by the sent->accepted
	// transition rather than the counter.
	MaxUses   *int       `json:"max_uses,omitempty"`
	UsedCount int        `gorm:"not null;default:0" json:"used_count"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`

	InvitedBy  string     `gorm:"type:uuid" json:"invited_by,omitempty"`
	ConsumedBy *string    `gorm:"type:uuid" json:"consumed_by,omitempty"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// Exhausted reports whether the usage cap has been reached.
func (i *Invite) Exhausted() bool {
	return i.MaxUses != nil && i.UsedCount >= *i.MaxUses
}

// Expired reports whether the invite lapsed before now.
func (i *Invite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}
