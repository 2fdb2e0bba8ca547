package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/peladahub/peladahub/internal/models"
	"github.com/peladahub/peladahub/pkg/metrics"
)

var (
	// ErrDiaristNotFound indicates no request matches the identifier.
	ErrDiaristNotFound = errors.New("diarist: request not found")
	// ErrDiaristInvalidState signals a transition attempted outside its
	// allowed source state, or one lost to a concurrent writer.
	ErrDiaristInvalidState = errors.New("diarist: invalid state for transition")
	// ErrDiaristDuplicate is returned when the user already has a request
	// for the match.
	ErrDiaristDuplicate = errors.New("diarist: request already exists for match")
)

// DiaristOption customises DiaristService behaviour.
type DiaristOption func(*DiaristService)

// WithDiaristClock injects a custom clock primarily for testing.
func WithDiaristClock(clock func() time.Time) DiaristOption {
	return func(s *DiaristService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// DiaristService drives a casual player's payment request through approval,
// the timed payment window, completion or conversion to credit.
//
// The transition arithmetic lives on models.DiaristRequest; this service adds
// the persistence guard: every write re-asserts the source state in its WHERE
// clause, so a transition raced by another writer affects zero rows and is
// reported as ErrDiaristInvalidState instead of clobbering the row.
type DiaristService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDiaristService constructs a DiaristService.
func NewDiaristService(db *gorm.DB, opts ...DiaristOption) (*DiaristService, error) {
	if db == nil {
		return nil, errors.New("diarist service: db is required")
	}

	service := &DiaristService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Request creates an approved payment request for a casual player on a match.
// Rejected when the match is unknown, already full, or the user already holds
// a request for it.
func (s *DiaristService) Request(ctx context.Context, matchID, userID string, amountCents int64) (*models.DiaristRequest, error) {
	ctx = ensureContext(ctx)

	matchID = strings.TrimSpace(matchID)
	userID = strings.TrimSpace(userID)
	if matchID == "" || userID == "" {
		return nil, errors.New("diarist service: match id and user id are required")
	}
	if amountCents < 0 {
		return nil, errors.New("diarist service: amount must not be negative")
	}

	var match models.Match
	if err := s.db.WithContext(ctx).Take(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("diarist service: find match: %w", err)
	}

	var rostered int64
	if err := s.db.WithContext(ctx).Model(&models.MatchPlayer{}).
		Where("match_id = ?", matchID).
		Count(&rostered).Error; err != nil {
		return nil, fmt.Errorf("diarist service: count roster: %w", err)
	}
	if match.Capacity > 0 && rostered >= int64(match.Capacity) {
		return nil, ErrMatchFull
	}

	request := models.DiaristRequest{
		MatchID:     matchID,
		UserID:      userID,
		State:       models.DiaristStateApproved,
		AmountCents: amountCents,
	}

	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDiaristDuplicate
		}
		return nil, fmt.Errorf("diarist service: create request: %w", err)
	}

	return &request, nil
}

// Get loads a request by id.
func (s *DiaristService) Get(ctx context.Context, requestID string) (*models.DiaristRequest, error) {
	ctx = ensureContext(ctx)

	var request models.DiaristRequest
	if err := s.db.WithContext(ctx).Take(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiaristNotFound
		}
		return nil, fmt.Errorf("diarist service: find request: %w", err)
	}
	return &request, nil
}

// ListByMatch returns every request on a match, newest first.
func (s *DiaristService) ListByMatch(ctx context.Context, matchID string) ([]models.DiaristRequest, error) {
	ctx = ensureContext(ctx)

	var requests []models.DiaristRequest
	if err := s.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("diarist service: list requests: %w", err)
	}
	return requests, nil
}

// StartPayment opens the 30-minute payment window. Allowed only from
// approved.
func (s *DiaristService) StartPayment(ctx context.Context, requestID string) (*models.DiaristRequest, error) {
	ctx = ensureContext(ctx)

	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated := request.StartPaymentWindow(now)
	if updated.State == request.State {
		return nil, ErrDiaristInvalidState
	}

	result := s.db.WithContext(ctx).Model(&models.DiaristRequest{}).
		Where("id = ? AND state = ?", requestID, models.DiaristStateApproved).
		Updates(map[string]any{
			"state":              updated.State,
			"payment_started_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("diarist service: start payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrDiaristInvalidState
	}

	return &updated, nil
}

// MarkPaid settles the request. Allowed only from paying. A successful
// payment also puts the player on the match roster.
func (s *DiaristService) MarkPaid(ctx context.Context, requestID string) (*models.DiaristRequest, error) {
	ctx = ensureContext(ctx)

	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated := request.MarkPaid(now)
	if updated.State == request.State {
		return nil, ErrDiaristInvalidState
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.DiaristRequest{}).
			Where("id = ? AND state = ?", requestID, models.DiaristStatePaying).
			Updates(map[string]any{
				"state":   updated.State,
				"paid_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrDiaristInvalidState
		}

		entry := models.MatchPlayer{
			MatchID: request.MatchID,
			UserID:  request.UserID,
			Source:  models.RosterSourceDiarist,
		}
		if err := tx.Create(&entry).Error; err != nil && !isUniqueConstraintError(err) {
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDiaristInvalidState) {
			return nil, ErrDiaristInvalidState
		}
		return nil, fmt.Errorf("diarist service: mark paid: %w", err)
	}

	metrics.PaymentWindowOutcomes.WithLabelValues("paid").Inc()
	return &updated, nil
}

// MarkFull closes a request because the match filled before its payment
// window opened. Allowed only from approved; an open window is never
// preempted.
func (s *DiaristService) MarkFull(ctx context.Context, requestID string) (*models.DiaristRequest, error) {
	ctx = ensureContext(ctx)

	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	updated := request.MarkFull()
	if updated.State == request.State {
		return nil, ErrDiaristInvalidState
	}

	result := s.db.WithContext(ctx).Model(&models.DiaristRequest{}).
		Where("id = ? AND state = ?", requestID, models.DiaristStateApproved).
		Update("state", updated.State)
	if result.Error != nil {
		return nil, fmt.Errorf("diarist service: mark full: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrDiaristInvalidState
	}

	metrics.PaymentWindowOutcomes.WithLabelValues("full").Inc()
	return &updated, nil
}

// MarkMatchFull closes every still-approved request on a match. Requests in
// paying keep their window. Returns the number of requests closed.
func (s *DiaristService) MarkMatchFull(ctx context.Context, matchID string) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.DiaristRequest{}).
		Where("match_id = ? AND state = ?", matchID, models.DiaristStateApproved).
		Update("state", models.DiaristStateFull)
	if result.Error != nil {
		return 0, fmt.Errorf("diarist service: mark match full: %w", result.Error)
	}

	for i := int64(0); i < result.RowsAffected; i++ {
		metrics.PaymentWindowOutcomes.WithLabelValues("full").Inc()
	}
	return result.RowsAffected, nil
}

// CreditIfLate converts a lapsed payment window into credit. A still-active
// window is left untouched and the current request is returned.
func (s *DiaristService) CreditIfLate(ctx context.Context, requestID string) (*models.DiaristRequest, error) {
	ctx = ensureContext(ctx)

	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated := request.CreditIfLate(now)
	if updated.State == request.State {
		return request, nil
	}

	result := s.db.WithContext(ctx).Model(&models.DiaristRequest{}).
		Where("id = ? AND state = ?", requestID, models.DiaristStatePaying).
		Updates(map[string]any{
			"state":       updated.State,
			"credited_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("diarist service: credit late: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost to a concurrent MarkPaid or sweep; report current state.
		return s.Get(ctx, requestID)
	}

	metrics.PaymentWindowOutcomes.WithLabelValues("credited").Inc()
	return &updated, nil
}

// CreditOverdue sweeps every request whose payment window has lapsed into
// credited. Invoked by the maintenance scheduler; the window itself stays
// pull-based for request-path callers.
func (s *DiaristService) CreditOverdue(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	cutoff := now.Add(-models.PaymentWindow)

	result := s.db.WithContext(ctx).Model(&models.DiaristRequest{}).
		Where("state = ? AND payment_started_at <= ?", models.DiaristStatePaying, cutoff).
		Updates(map[string]any{
			"state":       models.DiaristStateCredited,
			"credited_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("diarist service: credit overdue: %w", result.Error)
	}

	for i := int64(0); i < result.RowsAffected; i++ {
		metrics.PaymentWindowOutcomes.WithLabelValues("credited").Inc()
	}
	return result.RowsAffected, nil
}

// WindowActive reports whether the request's payment window is open at the
// service clock's now.
func (s *DiaristService) WindowActive(ctx context.Context, requestID string) (bool, error) {
	request, err := s.Get(ensureContext(ctx), requestID)
	if err != nil {
		return false, err
	}
	return request.PaymentWindowActive(s.now()), nil
}
