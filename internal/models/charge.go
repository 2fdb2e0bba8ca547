package models

import "time"

// Charge statuses.
const (
	ChargeStatusOpen = "open"
	ChargeStatusPaid = "paid"
)

// Charge is a monthly fee owed by a mensalista for a billing period
// (formatted "2006-01"). Settlement happens outside the system; only the
// local paid/open state is tracked.
type Charge struct {
	BaseModel

	UserID      string `gorm:"type:uuid;index:idx_charge_user_period,unique;not null" json:"user_id"`
	Period      string `gorm:"index:idx_charge_user_period,unique;size:7;not null" json:"period"`
	AmountCents int64  `gorm:"not null" json:"amount_cents"`

	Status string     `gorm:"not null;default:open" json:"status"`
	PaidAt *time.Time `json:"paid_at,omitempty"`
}
