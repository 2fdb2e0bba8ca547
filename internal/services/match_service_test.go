package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/peladahub/peladahub/internal/database/testutil"
	"github.com/peladahub/peladahub/internal/models"
)

type recordingBroadcaster struct {
	mu      sync.Mutex
	updates []ScoreUpdate
}

func (b *recordingBroadcaster) BroadcastScore(_ string, update ScoreUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, update)
}

func newMatchTestService(t *testing.T, opts ...MatchOption) (*MatchService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := NewMatchService(db, opts...)
	require.NoError(t, err)
	return svc, db
}

func createTestMatch(t *testing.T, svc *MatchService, capacity int) *models.Match {
	t.Helper()

	match, err := svc.Create(context.Background(), CreateMatchInput{
		Title:       "Pelada de domingo",
		Location:    "Quadra do bairro",
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Capacity:    capacity,
	})
	require.NoError(t, err)
	return match
}

func TestCreateMatchValidatesInput(t *testing.T) {
	svc, _ := newMatchTestService(t)

	_, err := svc.Create(context.Background(), CreateMatchInput{
		Title:       "",
		ScheduledAt: time.Now(),
		Capacity:    10,
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateMatchInput{
		Title:       "Sem vagas",
		ScheduledAt: time.Now(),
		Capacity:    0,
	})
	require.Error(t, err)
}

func TestJoinMatchEnforcesCapacity(t *testing.T) {
	svc, db := newMatchTestService(t)
	match := createTestMatch(t, svc, 2)

	first := createTestUser(t, db, "um@example.com")
	second := createTestUser(t, db, "dois@example.com")
	third := createTestUser(t, db, "tres@example.com")

	_, err := svc.Join(context.Background(), match.ID, first.ID)
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), match.ID, second.ID)
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), match.ID, third.ID)
	require.ErrorIs(t, err, ErrMatchFull)
}

func TestJoinMatchRejectsDuplicates(t *testing.T) {
	svc, db := newMatchTestService(t)
	match := createTestMatch(t, svc, 10)
	user := createTestUser(t, db, "um@example.com")

	_, err := svc.Join(context.Background(), match.ID, user.ID)
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), match.ID, user.ID)
	require.ErrorIs(t, err, ErrAlreadyRostered)
}

func TestJoinFillingRosterClosesApprovedDiaristRequests(t *testing.T) {
	svc, db := newMatchTestService(t)
	match := createTestMatch(t, svc, 1)

	diarist := createTestUser(t, db, "diarista@example.com")
	request := models.DiaristRequest{
		MatchID: match.ID,
		UserID:  diarist.ID,
		State:   models.DiaristStateApproved,
	}
	require.NoError(t, db.Create(&request).Error)

	member := createTestUser(t, db, "mensalista@example.com")
	_, err := svc.Join(context.Background(), match.ID, member.ID)
	require.NoError(t, err)

	var stored models.DiaristRequest
	require.NoError(t, db.Take(&stored, "id = ?", request.ID).Error)
	require.Equal(t, models.DiaristStateFull, stored.State)
}

func TestLeaveMatch(t *testing.T) {
	svc, db := newMatchTestService(t)
	match := createTestMatch(t, svc, 10)
	user := createTestUser(t, db, "um@example.com")

	_, err := svc.Join(context.Background(), match.ID, user.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Leave(context.Background(), match.ID, user.ID))
	require.ErrorIs(t, svc.Leave(context.Background(), match.ID, user.ID), ErrNotRostered)
}

func TestMatchLifecycle(t *testing.T) {
	svc, _ := newMatchTestService(t)
	match := createTestMatch(t, svc, 10)

	live, err := svc.Start(context.Background(), match.ID)
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusLive, live.Status)
	require.NotNil(t, live.StartedAt)

	// Starting a live match is invalid.
	_, err = svc.Start(context.Background(), match.ID)
	require.ErrorIs(t, err, ErrMatchInvalidState)

	finished, err := svc.Finish(context.Background(), match.ID)
	require.NoError(t, err)
	require.Equal(t, models.MatchStatusFinished, finished.Status)
	require.NotNil(t, finished.FinishedAt)

	_, err = svc.Finish(context.Background(), match.ID)
	require.ErrorIs(t, err, ErrMatchInvalidState)
}

func TestStartUnknownMatch(t *testing.T) {
	svc, _ := newMatchTestService(t)

	_, err := svc.Start(context.Background(), "1e7cbd2c-0000-4000-8000-000000000009")
	require.ErrorIs(t, err, ErrMatchNotFound)
}

func TestRecordGoalUpdatesScoreAndBroadcasts(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	svc, db := newMatchTestService(t, WithMatchBroadcaster(broadcaster))
	match := createTestMatch(t, svc, 10)
	scorer := createTestUser(t, db, "artilheiro@example.com")

	_, err := svc.Start(context.Background(), match.ID)
	require.NoError(t, err)

	_, err = svc.RecordGoal(context.Background(), ScoreEventInput{
		MatchID:  match.ID,
		Side:     models.SideHome,
		ScorerID: scorer.ID,
		Minute:   12,
	})
	require.NoError(t, err)

	_, err = svc.RecordGoal(context.Background(), ScoreEventInput{
		MatchID:  match.ID,
		Side:     models.SideAway,
		ScorerID: scorer.ID,
		Minute:   31,
	})
	require.NoError(t, err)

	stored, err := svc.Get(context.Background(), match.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.HomeGoals)
	require.Equal(t, 1, stored.AwayGoals)

	require.Len(t, broadcaster.updates, 2)
	require.Equal(t, 1, broadcaster.updates[1].HomeGoals)
	require.Equal(t, 1, broadcaster.updates[1].AwayGoals)
}

func TestRecordGoalRequiresLiveMatch(t *testing.T) {
	svc, db := newMatchTestService(t)
	match := createTestMatch(t, svc, 10)
	scorer := createTestUser(t, db, "artilheiro@example.com")

	_, err := svc.RecordGoal(context.Background(), ScoreEventInput{
		MatchID:  match.ID,
		Side:     models.SideHome,
		ScorerID: scorer.ID,
	})
	require.ErrorIs(t, err, ErrMatchInvalidState)
}
