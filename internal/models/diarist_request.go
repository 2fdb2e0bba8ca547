package models

import "time"

// Diarist request states. approved -> paying -> {paid | credited}, with the
// side branch approved -> full when capacity is reached before payment
// starts. paid, credited and full are terminal.
const (
	DiaristStateApproved = "approved"
	DiaristStatePaying   = "paying"
	DiaristStatePaid     = "paid"
	DiaristStateFull     = "full"
	DiaristStateCredited = "credited"
)

// PaymentWindow is how long an approved casual player has to pay once the
// window opens. Exactly 1,800,000 milliseconds.
const PaymentWindow = 30 * time.Minute

// DiaristRequest is a casual player's paid claim on a match slot.
type DiaristRequest struct {
	BaseModel

	MatchID string `gorm:"type:uuid;index:idx_diarist_match_user,unique;not null" json:"match_id"`
	UserID  string `gorm:"type:uuid;index:idx_diarist_match_user,unique;not null" json:"user_id"`

	State       string `gorm:"not null;default:approved;index" json:"state"`
	AmountCents int64  `gorm:"not null;default:0" json:"amount_cents"`

	PaymentStartedAt *time.Time `json:"payment_started_at,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CreditedAt       *time.Time `json:"credited_at,omitempty"`
}

// The transitions below are pure: they return the updated request and leave
// the receiver untouched. Calls outside the allowed source state return the
// input unchanged instead of erroring, so callers can apply them
// unconditionally. Persistence-level guards live in the diarist service.

// StartPaymentWindow opens the 30-minute payment window. Allowed only from
// approved.
func (r DiaristRequest) StartPaymentWindow(now time.Time) DiaristRequest {
	if r.State != DiaristStateApproved {
		return r
	}
	r.State = DiaristStatePaying
	r.PaymentStartedAt = &now
	return r
}

// MarkPaid settles the request. Allowed only from paying.
func (r DiaristRequest) MarkPaid(now time.Time) DiaristRequest {
	if r.State != DiaristStatePaying {
		return r
	}
	r.State = DiaristStatePaid
	r.PaidAt = &now
	return r
}

// MarkFull closes the request because the match filled before payment
// started. Allowed only from approved; an open payment window is never
// preempted by capacity.
func (r DiaristRequest) MarkFull() DiaristRequest {
	if r.State != DiaristStateApproved {
		return r
	}
	r.State = DiaristStateFull
	return r
}

// CreditIfLate converts a lapsed payment window into credit. Allowed only
// from paying, and only once the window has elapsed.
func (r DiaristRequest) CreditIfLate(now time.Time) DiaristRequest {
	if r.State != DiaristStatePaying || r.PaymentStartedAt == nil {
		return r
	}
	if now.Sub(*r.PaymentStartedAt) < PaymentWindow {
		return r
	}
	r.State = DiaristStateCredited
	r.CreditedAt = &now
	return r
}

// PaymentWindowActive reports whether the window is open at now. Strict
// less-than: the window is closed at exactly start+30m.
func (r DiaristRequest) PaymentWindowActive(now time.Time) bool {
	if r.State != DiaristStatePaying || r.PaymentStartedAt == nil {
		return false
	}
	return now.Sub(*r.PaymentStartedAt) < PaymentWindow
}

// Terminal reports whether no further transition can apply.
func (r DiaristRequest) Terminal() bool {
	switch r.State {
	case DiaristStatePaid, DiaristStateFull, DiaristStateCredited:
		return true
	}
	return false
}
