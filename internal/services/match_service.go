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
	// ErrMatchNotFound indicates no match with the given id exists.
	ErrMatchNotFound = errors.New("match: not found")
	// ErrMatchFull signals the roster already reached capacity.
	ErrMatchFull = errors.New("match: roster is full")
	// ErrMatchInvalidState signals a lifecycle operation attempted outside
	// its allowed source status.
	ErrMatchInvalidState = errors.New("match: invalid status for operation")
	// ErrAlreadyRostered is returned when a player joins a match twice.
	ErrAlreadyRostered = errors.New("match: player already on roster")
	// ErrNotRostered is returned when leaving a match the player never joined.
	ErrNotRostered = errors.New("match: player not on roster")
)

// ScoreUpdate is the payload pushed to live score subscribers after a goal.
type ScoreUpdate struct {
	MatchID   string  `json:"match_id"`
	Side      string  `json:"side"`
	ScorerID  string  `json:"scorer_id"`
	AssistID  *string `json:"assist_id,omitempty"`
	Minute    int     `json:"minute"`
	HomeGoals int     `json:"home_goals"`
	AwayGoals int     `json:"away_goals"`
}

// Broadcaster pushes live score updates to connected clients.
type Broadcaster interface {
	BroadcastScore(matchID string, update ScoreUpdate)
}

// MatchOption customises MatchService behaviour.
type MatchOption func(*MatchService)

// WithMatchClock injects a custom clock primarily for testing.
func WithMatchClock(clock func() time.Time) MatchOption {
	return func(s *MatchService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithMatchBroadcaster wires a live score broadcaster.
func WithMatchBroadcaster(b Broadcaster) MatchOption {
	return func(s *MatchService) {
		s.broadcaster = b
	}
}

// MatchService manages match scheduling, rosters and the live score.
type MatchService struct {
	db          *gorm.DB
	now         func() time.Time
	broadcaster Broadcaster
}

// NewMatchService constructs a MatchService.
func NewMatchService(db *gorm.DB, opts ...MatchOption) (*MatchService, error) {
	if db == nil {
		return nil, errors.New("match service: db is required")
	}

	service := &MatchService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateMatchInput describes a new match.
type CreateMatchInput struct {
	Title       string
	Location    string
	ScheduledAt time.Time
	Capacity    int
	CreatedBy   string
}

// Create schedules a new match.
func (s *MatchService) Create(ctx context.Context, input CreateMatchInput) (*models.Match, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.New("match service: title is required")
	}
	if input.Capacity <= 0 {
		return nil, errors.New("match service: capacity must be positive")
	}
	if input.ScheduledAt.IsZero() {
		return nil, errors.New("match service: scheduled time is required")
	}

	match := models.Match{
		Title:       title,
		Location:    strings.TrimSpace(input.Location),
		ScheduledAt: input.ScheduledAt,
		Capacity:    input.Capacity,
		Status:      models.MatchStatusScheduled,
		CreatedBy:   strings.TrimSpace(input.CreatedBy),
	}

	if err := s.db.WithContext(ctx).Create(&match).Error; err != nil {
		return nil, fmt.Errorf("match service: create match: %w", err)
	}

	return &match, nil
}

// Get loads a match with its roster and teams.
func (s *MatchService) Get(ctx context.Context, matchID string) (*models.Match, error) {
	ctx = ensureContext(ctx)

	var match models.Match
	err := s.db.WithContext(ctx).
		Preload("Players").
		Preload("Teams").
		Take(&match, "id = ?", matchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("match service: find match: %w", err)
	}
	return &match, nil
}

// List returns matches ordered by schedule, soonest first.
func (s *MatchService) List(ctx context.Context) ([]models.Match, error) {
	ctx = ensureContext(ctx)

	var matches []models.Match
	if err := s.db.WithContext(ctx).
		Order("scheduled_at ASC").
		Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("match service: list matches: %w", err)
	}
	return matches, nil
}

// Join adds a member to the roster. When the roster reaches capacity, every
// still-approved diarist request on the match is closed as full.
func (s *MatchService) Join(ctx context.Context, matchID, userID string) (*models.MatchPlayer, error) {
	ctx = ensureContext(ctx)

	matchID = strings.TrimSpace(matchID)
	userID = strings.TrimSpace(userID)
	if matchID == "" || userID == "" {
		return nil, errors.New("match service: match id and user id are required")
	}

	var entry *models.MatchPlayer

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var match models.Match
		if err := tx.Take(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if match.Status != models.MatchStatusScheduled {
			return ErrMatchInvalidState
		}

		var rostered int64
		if err := tx.Model(&models.MatchPlayer{}).
			Where("match_id = ?", matchID).
			Count(&rostered).Error; err != nil {
			return err
		}
		if rostered >= int64(match.Capacity) {
			return ErrMatchFull
		}

		entry = &models.MatchPlayer{
			MatchID: matchID,
			UserID:  userID,
			Source:  models.RosterSourceMember,
		}
		if err := tx.Create(entry).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrAlreadyRostered
			}
			return err
		}

		// Roster just filled: close pending diarist requests. Requests in
		// paying keep their window.
		if rostered+1 >= int64(match.Capacity) {
			if err := tx.Model(&models.DiaristRequest{}).
				Where("match_id = ? AND state = ?", matchID, models.DiaristStateApproved).
				Update("state", models.DiaristStateFull).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrMatchNotFound),
			errors.Is(err, ErrMatchFull),
			errors.Is(err, ErrMatchInvalidState),
			errors.Is(err, ErrAlreadyRostered):
			return nil, err
		}
		return nil, fmt.Errorf("match service: join match: %w", err)
	}

	return entry, nil
}

// Leave removes a player from the roster of a scheduled match.
func (s *MatchService) Leave(ctx context.Context, matchID, userID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("match_id = ? AND user_id = ?", matchID, userID).
		Delete(&models.MatchPlayer{})
	if result.Error != nil {
		return fmt.Errorf("match service: leave match: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotRostered
	}
	return nil
}

// Start moves a scheduled match to live.
func (s *MatchService) Start(ctx context.Context, matchID string) (*models.Match, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	result := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, models.MatchStatusScheduled).
		Updates(map[string]any{
			"status":     models.MatchStatusLive,
			"started_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("match service: start match: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.lifecycleFailure(ctx, matchID)
	}

	metrics.LiveMatches.Inc()
	return s.Get(ctx, matchID)
}

// Finish moves a live match to finished.
func (s *MatchService) Finish(ctx context.Context, matchID string) (*models.Match, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	result := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ?", matchID, models.MatchStatusLive).
		Updates(map[string]any{
			"status":      models.MatchStatusFinished,
			"finished_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("match service: finish match: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.lifecycleFailure(ctx, matchID)
	}

	metrics.LiveMatches.Dec()
	return s.Get(ctx, matchID)
}

// ScoreEventInput describes a goal during a live match.
type ScoreEventInput struct {
	MatchID  string
	Side     string
	ScorerID string
	AssistID *string
	Minute   int
}

// RecordGoal appends a score event, bumps the matching side's goal count and
// notifies live subscribers.
func (s *MatchService) RecordGoal(ctx context.Context, input ScoreEventInput) (*models.ScoreEvent, error) {
	ctx = ensureContext(ctx)

	if input.Side != models.SideHome && input.Side != models.SideAway {
		return nil, fmt.Errorf("match service: invalid side %q", input.Side)
	}
	if strings.TrimSpace(input.ScorerID) == "" {
		return nil, errors.New("match service: scorer id is required")
	}

	column := "home_goals"
	if input.Side == models.SideAway {
		column = "away_goals"
	}

	event := models.ScoreEvent{
		MatchID:  input.MatchID,
		Side:     input.Side,
		ScorerID: input.ScorerID,
		AssistID: input.AssistID,
		Minute:   input.Minute,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Match{}).
			Where("id = ? AND status = ?", input.MatchID, models.MatchStatusLive).
			Update(column, gorm.Expr(column+" + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrMatchInvalidState
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		if errors.Is(err, ErrMatchInvalidState) {
			return nil, s.lifecycleFailure(ctx, input.MatchID)
		}
		return nil, fmt.Errorf("match service: record goal: %w", err)
	}

	if s.broadcaster != nil {
		var match models.Match
		if err := s.db.WithContext(ctx).
			Select("home_goals", "away_goals").
			Take(&match, "id = ?", input.MatchID).Error; err == nil {
			s.broadcaster.BroadcastScore(input.MatchID, ScoreUpdate{
				MatchID:   input.MatchID,
				Side:      input.Side,
				ScorerID:  input.ScorerID,
				AssistID:  input.AssistID,
				Minute:    input.Minute,
				HomeGoals: match.HomeGoals,
				AwayGoals: match.AwayGoals,
			})
		}
	}

	return &event, nil
}

// lifecycleFailure distinguishes a missing match from a wrong-status one
// after a guarded update matched zero rows.
func (s *MatchService) lifecycleFailure(ctx context.Context, matchID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ?", matchID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("match service: inspect match: %w", err)
	}
	if count == 0 {
		return ErrMatchNotFound
	}
	return ErrMatchInvalidState
}
