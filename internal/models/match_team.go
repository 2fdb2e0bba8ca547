package models

import "gorm.io/datatypes"

// MatchTeam is one side produced by a team draw. PlayerIDs keeps the drawn
// order as a JSON array so the mobile client can render the full lineup
// without a join.
type MatchTeam struct {
	BaseModel

	MatchID   string         `gorm:"type:uuid;index;not null" json:"match_id"`
	Name      string         `gorm:"not null" json:"name"`
	Position  int            `gorm:"not null" json:"position"`
	PlayerIDs datatypes.JSON `json:"player_ids"`
}
