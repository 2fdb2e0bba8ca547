package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peladahub/peladahub/internal/database/testutil"
)

func TestDrawSplitsRosterEvenly(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	matchSvc, err := NewMatchService(db)
	require.NoError(t, err)
	match := createTestMatch(t, matchSvc, 12)

	for i := 0; i < 11; i++ {
		user := createTestUser(t, db, fmt.Sprintf("player%d@example.com", i))
		_, err := matchSvc.Join(context.Background(), match.ID, user.ID)
		require.NoError(t, err)
	}

	svc, err := NewDrawService(db, WithDrawSeed(7))
	require.NoError(t, err)

	teams, err := svc.Draw(context.Background(), match.ID, 2)
	require.NoError(t, err)
	require.Len(t, teams, 2)

	var sizes []int
	seen := map[string]bool{}
	for _, team := range teams {
		var ids []string
		require.NoError(t, json.Unmarshal(team.PlayerIDs, &ids))
		sizes = append(sizes, len(ids))
		for _, id := range ids {
			require.False(t, seen[id], "player drawn twice")
			seen[id] = true
		}
	}
	require.Len(t, seen, 11)
	require.LessOrEqual(t, sizes[0]-sizes[1], 1)
	require.GreaterOrEqual(t, sizes[0]-sizes[1], -1)
}

func TestDrawReplacesPreviousDraw(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	matchSvc, err := NewMatchService(db)
	require.NoError(t, err)
	match := createTestMatch(t, matchSvc, 10)

	for i := 0; i < 4; i++ {
		user := createTestUser(t, db, fmt.Sprintf("player%d@example.com", i))
		_, err := matchSvc.Join(context.Background(), match.ID, user.ID)
		require.NoError(t, err)
	}

	svc, err := NewDrawService(db, WithDrawSeed(1))
	require.NoError(t, err)

	_, err = svc.Draw(context.Background(), match.ID, 2)
	require.NoError(t, err)
	_, err = svc.Draw(context.Background(), match.ID, 2)
	require.NoError(t, err)

	teams, err := svc.Teams(context.Background(), match.ID)
	require.NoError(t, err)
	require.Len(t, teams, 2)
}

func TestDrawRequiresEnoughPlayers(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	matchSvc, err := NewMatchService(db)
	require.NoError(t, err)
	match := createTestMatch(t, matchSvc, 10)

	user := createTestUser(t, db, "sozinho@example.com")
	_, err = matchSvc.Join(context.Background(), match.ID, user.ID)
	require.NoError(t, err)

	svc, err := NewDrawService(db)
	require.NoError(t, err)

	_, err = svc.Draw(context.Background(), match.ID, 2)
	require.ErrorIs(t, err, ErrDrawTooFewPlayers)
}

func TestDrawUnknownMatch(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewDrawService(db)
	require.NoError(t, err)

	_, err = svc.Draw(context.Background(), "52f2adf1-0000-4000-8000-00000000000a", 2)
	require.ErrorIs(t, err, ErrMatchNotFound)
}
