package models

import "time"

// Match statuses.
const (
	MatchStatusScheduled = "scheduled"
	MatchStatusLive      = "live"
	MatchStatusFinished  = "finished"
)

// Team sides for score events.
const (
	SideHome = "home"
	SideAway = "away"
)

// Match is a single pelada session with a roster, an optional draw and a
// live score.
type Match struct {
	BaseModel

	Title       string    `gorm:"not null" json:"title"`
	Location    string    `json:"location"`
	ScheduledAt time.Time `gorm:"index;not null" json:"scheduled_at"`
	Capacity    int       `gorm:"not null" json:"capacity"`

	Status    string `gorm:"not null;default:scheduled;index" json:"status"`
	HomeGoals int    `gorm:"not null;default:0" json:"home_goals"`
	AwayGoals int    `gorm:"not null;default:0" json:"away_goals"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	CreatedBy string `gorm:"type:uuid" json:"created_by"`

	Players []MatchPlayer `gorm:"foreignKey:MatchID" json:"players,omitempty"`
	Teams   []MatchTeam   `gorm:"foreignKey:MatchID" json:"teams,omitempty"`
}

// Roster origins: regular members join directly, casual players enter
// through a paid diarist request.
const (
	RosterSourceMember  = "member"
	RosterSourceDiarist = "diarist"
)

// MatchPlayer is a roster entry.
type MatchPlayer struct {
	BaseModel

	MatchID string `gorm:"type:uuid;index:idx_match_user,unique;not null" json:"match_id"`
	UserID  string `gorm:"type:uuid;index:idx_match_user,unique;not null" json:"user_id"`
	Source  string `gorm:"not null;default:member" json:"source"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// ScoreEvent records a goal during a live match.
type ScoreEvent struct {
	BaseModel

	MatchID  string  `gorm:"type:uuid;index;not null" json:"match_id"`
	Side     string  `gorm:"not null" json:"side"`
	ScorerID string  `gorm:"type:uuid;index;not null" json:"scorer_id"`
	AssistID *string `gorm:"type:uuid" json:"assist_id,omitempty"`
	Minute   int     `json:"minute"`
}
