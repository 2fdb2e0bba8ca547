package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/peladahub/peladahub/internal/models"
)

var (
	// ErrChargeNotFound indicates no charge matches the identifier.
	ErrChargeNotFound = errors.New("finance: charge not found")
	// ErrChargeAlreadyPaid signals a double settlement attempt.
	ErrChargeAlreadyPaid = errors.New("finance: charge already paid")
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// FinanceOption customises FinanceService behaviour.
type FinanceOption func(*FinanceService)

// WithFinanceClock injects a custom clock primarily for testing.
func WithFinanceClock(clock func() time.Time) FinanceOption {
	return func(s *FinanceService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// FinanceService tracks monthly member charges and diarist credits. Actual
// settlement happens outside the system; only local state is kept.
type FinanceService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewFinanceService constructs a FinanceService.
func NewFinanceService(db *gorm.DB, opts ...FinanceOption) (*FinanceService, error) {
	if db == nil {
		return nil, errors.New("finance service: db is required")
	}

	service := &FinanceService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// OpenMonthlyCharges creates an open charge for every active monthly member
// for the given period ("2006-01"). Idempotent: members already charged for
// the period are skipped. Returns the number of charges created.
func (s *FinanceService) OpenMonthlyCharges(ctx context.Context, period string, amountCents int64) (int64, error) {
	ctx = ensureContext(ctx)

	period = strings.TrimSpace(period)
	if !periodPattern.MatchString(period) {
		return 0, fmt.Errorf("finance service: invalid period %q", period)
	}
	if amountCents <= 0 {
		return 0, errors.New("finance service: amount must be positive")
	}

	var members []models.User
	if err := s.db.WithContext(ctx).
		Where("membership = ? AND is_active = ?", models.MembershipMonthly, true).
		Find(&members).Error; err != nil {
		return 0, fmt.Errorf("finance service: list members: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	charges := make([]models.Charge, 0, len(members))
	for _, member := range members {
		charges = append(charges, models.Charge{
			UserID:      member.ID,
			Period:      period,
			AmountCents: amountCents,
			Status:      models.ChargeStatusOpen,
		})
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "period"}},
			DoNothing: true,
		}).Create(&charges)
	if result.Error != nil {
		return 0, fmt.Errorf("finance service: open charges: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// MarkPaid settles an open charge.
func (s *FinanceService) MarkPaid(ctx context.Context, chargeID string) (*models.Charge, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	result := s.db.WithContext(ctx).Model(&models.Charge{}).
		Where("id = ? AND status = ?", chargeID, models.ChargeStatusOpen).
		Updates(map[string]any{
			"status":  models.ChargeStatusPaid,
			"paid_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("finance service: mark paid: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var charge models.Charge
		err := s.db.WithContext(ctx).Take(&charge, "id = ?", chargeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChargeNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("finance service: find charge: %w", err)
		}
		return nil, ErrChargeAlreadyPaid
	}

	var charge models.Charge
	if err := s.db.WithContext(ctx).Take(&charge, "id = ?", chargeID).Error; err != nil {
		return nil, fmt.Errorf("finance service: reload charge: %w", err)
	}
	return &charge, nil
}

// ListByUser returns a member's charges, newest period first.
func (s *FinanceService) ListByUser(ctx context.Context, userID string) ([]models.Charge, error) {
	ctx = ensureContext(ctx)

	var charges []models.Charge
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("period DESC").
		Find(&charges).Error; err != nil {
		return nil, fmt.Errorf("finance service: list charges: %w", err)
	}
	return charges, nil
}

// Balance summarises a user's financial standing.
type Balance struct {
	UserID           string `json:"user_id"`
	OpenCents        int64  `json:"open_cents"`
	PaidCents        int64  `json:"paid_cents"`
	CreditCents      int64  `json:"credit_cents"`
	CreditedRequests int64  `json:"credited_requests"`
}

// BalanceFor computes open and paid charge totals plus credit accumulated
// from lapsed diarist payment windows.
func (s *FinanceService) BalanceFor(ctx context.Context, userID string) (*Balance, error) {
	ctx = ensureContext(ctx)

	balance := &Balance{UserID: userID}

	row := s.db.WithContext(ctx).Model(&models.Charge{}).
		Select("COALESCE(SUM(CASE WHEN status = ? THEN amount_cents ELSE 0 END), 0) AS open_cents, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN amount_cents ELSE 0 END), 0) AS paid_cents",
			models.ChargeStatusOpen, models.ChargeStatusPaid).
		Where("user_id = ?", userID).
		Row()
	if err := row.Scan(&balance.OpenCents, &balance.PaidCents); err != nil {
		return nil, fmt.Errorf("finance service: sum charges: %w", err)
	}

	creditRow := s.db.WithContext(ctx).Model(&models.DiaristRequest{}).
		Select("COALESCE(SUM(amount_cents), 0), COUNT(*)").
		Where("user_id = ? AND state = ?", userID, models.DiaristStateCredited).
		Row()
	if err := creditRow.Scan(&balance.CreditCents, &balance.CreditedRequests); err != nil {
		return nil, fmt.Errorf("finance service: sum credits: %w", err)
	}

	return balance, nil
}
