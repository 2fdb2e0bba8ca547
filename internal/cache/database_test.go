package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peladahub/peladahub/internal/database/testutil"
)

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	value, found, err := store.Get(ctx, "rankings:2026-08")
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, value)

	require.NoError(t, store.Set(ctx, "rankings:2026-08", `{"entries":[]}`, time.Minute))

	value, found, err = store.Get(ctx, "rankings:2026-08")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"entries":[]}`, value)

	require.NoError(t, store.Delete(ctx, "rankings:2026-08"))

	_, found, err = store.Get(ctx, "rankings:2026-08")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreGetExpired(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short-lived", "v", time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, "short-lived")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store := NewDatabaseStore(testutil.MustOpenTestDB(t))
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rate:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "rate:login:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestNormalizeKeyCollapsesColons(t *testing.T) {
	require.Equal(t, "peladahub:rate:login", normalizeKey("peladahub::rate::login"))
	require.Equal(t, "", normalizeKey(""))
}
