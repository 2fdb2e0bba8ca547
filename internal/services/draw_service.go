package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/peladahub/peladahub/internal/models"
)

// ErrDrawTooFewPlayers signals the roster cannot fill the requested teams.
var ErrDrawTooFewPlayers = errors.New("draw: not enough players on roster")

var defaultTeamNames = []string{"Time Preto", "Time Branco", "Time Azul", "Time Vermelho", "Time Verde", "Time Amarelo"}

// DrawOption customises DrawService behaviour.
type DrawOption func(*DrawService)

// WithDrawSeed fixes the shuffle seed, making draws reproducible in tests.
func WithDrawSeed(seed int64) DrawOption {
	return func(s *DrawService) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// DrawService shuffles a match roster into balanced teams.
type DrawService struct {
	db  *gorm.DB
	rng *rand.Rand
}

// NewDrawService constructs a DrawService.
func NewDrawService(db *gorm.DB, opts ...DrawOption) (*DrawService, error) {
	if db == nil {
		return nil, errors.New("draw service: db is required")
	}

	service := &DrawService{
		db:  db,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Draw shuffles the roster into teamCount teams and persists them, replacing
// any previous draw for the match. Team sizes differ by at most one player.
func (s *DrawService) Draw(ctx context.Context, matchID string, teamCount int) ([]models.MatchTeam, error) {
	ctx = ensureContext(ctx)

	if teamCount < 2 {
		return nil, errors.New("draw service: at least two teams are required")
	}

	var match models.Match
	if err := s.db.WithContext(ctx).Take(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("draw service: find match: %w", err)
	}

	var roster []models.MatchPlayer
	if err := s.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC").
		Find(&roster).Error; err != nil {
		return nil, fmt.Errorf("draw service: load roster: %w", err)
	}
	if len(roster) < teamCount {
		return nil, ErrDrawTooFewPlayers
	}

	playerIDs := make([]string, len(roster))
	for i, entry := range roster {
		playerIDs[i] = entry.UserID
	}
	s.rng.Shuffle(len(playerIDs), func(i, j int) {
		playerIDs[i], playerIDs[j] = playerIDs[j], playerIDs[i]
	})

	teams := make([]models.MatchTeam, teamCount)
	for i := range teams {
		name := fmt.Sprintf("Time %d", i+1)
		if i < len(defaultTeamNames) {
			name = defaultTeamNames[i]
		}
		teams[i] = models.MatchTeam{
			MatchID:  matchID,
			Name:     name,
			Position: i + 1,
		}
	}

	// Deal round-robin so sizes stay within one of each other.
	buckets := make([][]string, teamCount)
	for i, id := range playerIDs {
		buckets[i%teamCount] = append(buckets[i%teamCount], id)
	}
	for i := range teams {
		encoded, err := json.Marshal(buckets[i])
		if err != nil {
			return nil, fmt.Errorf("draw service: encode lineup: %w", err)
		}
		teams[i].PlayerIDs = encoded
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_id = ?", matchID).Delete(&models.MatchTeam{}).Error; err != nil {
			return err
		}
		return tx.Create(&teams).Error
	})
	if err != nil {
		return nil, fmt.Errorf("draw service: persist draw: %w", err)
	}

	return teams, nil
}

// Teams returns the current draw for a match in position order.
func (s *DrawService) Teams(ctx context.Context, matchID string) ([]models.MatchTeam, error) {
	ctx = ensureContext(ctx)

	var teams []models.MatchTeam
	if err := s.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("position ASC").
		Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("draw service: load teams: %w", err)
	}
	return teams, nil
}
