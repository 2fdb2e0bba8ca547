package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/peladahub/peladahub/internal/cache"
	"github.com/peladahub/peladahub/internal/models"
)

// Scoring weights for the monthly ranking.
const (
	pointsPerGoal   = 3
	pointsPerAssist = 1
)

const defaultRankingCacheTTL = 5 * time.Minute

var rankingPeriodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// RankingEntry is one row of the monthly ranking.
type RankingEntry struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Goals   int    `json:"goals"`
	Assists int    `json:"assists"`
	Points  int    `json:"points"`
}

// RankingOption customises RankingService behaviour.
type RankingOption func(*RankingService)

// WithRankingCache enables snapshot caching of computed rankings.
func WithRankingCache(store cache.Store, ttl time.Duration) RankingOption {
	return func(s *RankingService) {
		s.cache = store
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// RankingService computes monthly player rankings from score events. Goals
// weigh 3 points, assists 1; ties break by goals, then name.
type RankingService struct {
	db       *gorm.DB
	cache    cache.Store
	cacheTTL time.Duration
}

// NewRankingService constructs a RankingService.
func NewRankingService(db *gorm.DB, opts ...RankingOption) (*RankingService, error) {
	if db == nil {
		return nil, errors.New("ranking service: db is required")
	}

	service := &RankingService{db: db, cacheTTL: defaultRankingCacheTTL}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Monthly returns the ranking for a period ("2006-01"), counting score events
// from matches scheduled in that month. Results are served from the cache
// snapshot when available.
func (s *RankingService) Monthly(ctx context.Context, period string) ([]RankingEntry, error) {
	ctx = ensureContext(ctx)

	period = strings.TrimSpace(period)
	if !rankingPeriodPattern.MatchString(period) {
		return nil, fmt.Errorf("ranking service: invalid period %q", period)
	}

	cacheKey := "rankings:" + period
	if s.cache != nil {
		if raw, found, err := s.cache.Get(ctx, cacheKey); err == nil && found {
			var entries []RankingEntry
			if err := json.Unmarshal([]byte(raw), &entries); err == nil {
				return entries, nil
			}
		}
	}

	entries, err := s.compute(ctx, period)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(entries); err == nil {
			_ = s.cache.Set(ctx, cacheKey, string(payload), s.cacheTTL)
		}
	}

	return entries, nil
}

// Invalidate drops the cached snapshot for a period, forcing the next read
// to recompute. Called after a match in the period finishes.
func (s *RankingService) Invalidate(ctx context.Context, period string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ensureContext(ctx), "rankings:"+period)
}

func (s *RankingService) compute(ctx context.Context, period string) ([]RankingEntry, error) {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		return nil, fmt.Errorf("ranking service: parse period: %w", err)
	}
	end := start.AddDate(0, 1, 0)

	var events []models.ScoreEvent
	err = s.db.WithContext(ctx).
		Joins("JOIN matches ON matches.id = score_events.match_id").
		Where("matches.scheduled_at >= ? AND matches.scheduled_at < ?", start, end).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("ranking service: load events: %w", err)
	}

	byUser := make(map[string]*RankingEntry)
	entryFor := func(userID string) *RankingEntry {
		entry, ok := byUser[userID]
		if !ok {
			entry = &RankingEntry{UserID: userID}
			byUser[userID] = entry
		}
		return entry
	}

	for _, event := range events {
		entryFor(event.ScorerID).Goals++
		if event.AssistID != nil && *event.AssistID != "" {
			entryFor(*event.AssistID).Assists++
		}
	}

	if len(byUser) == 0 {
		return []RankingEntry{}, nil
	}

	ids := make([]string, 0, len(byUser))
	for id := range byUser {
		ids = append(ids, id)
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("ranking service: load players: %w", err)
	}
	for _, user := range users {
		if entry, ok := byUser[user.ID]; ok {
			entry.Name = user.Name
		}
	}

	entries := make([]RankingEntry, 0, len(byUser))
	for _, entry := range byUser {
		entry.Points = entry.Goals*pointsPerGoal + entry.Assists*pointsPerAssist
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		if entries[i].Goals != entries[j].Goals {
			return entries[i].Goals > entries[j].Goals
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}
