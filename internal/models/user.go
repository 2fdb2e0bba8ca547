package models

import "time"

// Membership describes how a player participates in the group.
type Membership string

const (
	// MembershipMonthly is a full-access recurring member ("mensalista").
	MembershipMonthly Membership = "monthly"
	// MembershipCasual is a per-match participant ("diarista").
	MembershipCasual Membership = "casual"
	// MembershipNone marks accounts that have not joined through an invite yet.
	MembershipNone Membership = "none"
)

// Valid reports whether the membership is one of the two joinable kinds.
func (m Membership) Valid() bool {
	return m == MembershipMonthly || m == MembershipCasual
}

// Routes returns the ordered list of app routes the membership unlocks.
func (m Membership) Routes() []string {
	switch m {
	case MembershipMonthly:
		return []string{"Matches", "Match", "Financial", "Ranking", "Profile"}
	case MembershipCasual:
		return []string{"Matches", "Profile"}
	default:
		return nil
	}
}

// User roles. Organizers manage invites, draws and finances.
const (
	RoleOrganizer = "organizer"
	RolePlayer    = "player"
)

// User describes a registered player profile.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Name     string `json:"name"`
	Password string `gorm:"not null" json:"-"`

	Membership Membership `gorm:"not null;default:none" json:"membership"`
	Role       string     `gorm:"not null;default:player" json:"role"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`
}
