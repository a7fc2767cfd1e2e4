package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arialabs/aria-backend/internal/models"
	"github.com/arialabs/aria-backend/internal/storage"
)

func newUser(t *testing.T, store storage.Storage, id string, tr models.Tier) *models.User {
	t.Helper()
	ctx := context.Background()
	user, err := store.GetOrCreateUser(ctx, id)
	require.NoError(t, err)
	if tr != models.TierFree {
		user.Tier = tr
		require.NoError(t, store.UpdateUser(ctx, user))
	}
	return user
}

func TestQuotaMonotonicity(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	gate := NewGate(store, zap.NewNop())
	user := newUser(t, store, "u-free", models.TierFree)

	for i := 0; i < 50; i++ {
		d, err := gate.Check(ctx, user, models.ChannelText)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 50-(i+1), d.Remaining)
	}

	d, err := gate.Check(ctx, user, models.ChannelText)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 50, d.Limit)

	// Combined counters never exceed the quota.
	fresh, err := store.GetOrCreateUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, fresh.TextCount+fresh.VoiceCount)
}

func TestFreeTierSharedPool(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	gate := NewGate(store, zap.NewNop())
	user := newUser(t, store, "u-pool", models.TierFree)

	for i := 0; i < 25; i++ {
		d, err := gate.Check(ctx, user, models.ChannelText)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		d, err = gate.Check(ctx, user, models.ChannelVoice)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// Pool of 50 is gone regardless of which channel asks.
	d, err := gate.Check(ctx, user, models.ChannelVoice)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestPaidTierPerChannelPools(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	gate := NewGate(store, zap.NewNop())
	user := newUser(t, store, "u-basic", models.TierBasic)

	// Exhaust the voice pool.
	for i := 0; i < 100; i++ {
		d, err := gate.Check(ctx, user, models.ChannelVoice)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := gate.Check(ctx, user, models.ChannelVoice)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// Text pool is untouched.
	d, err = gate.Check(ctx, user, models.ChannelText)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 499, d.Remaining)
}

func TestAtomicGateUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	gate := NewGate(store, zap.NewNop())
	user := newUser(t, store, "u-race", models.TierFree)

	// Burn the pool down to one remaining unit.
	for i := 0; i < 49; i++ {
		d, err := gate.Check(ctx, user, models.ChannelText)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := gate.Check(ctx, user, models.ChannelText)
			assert.NoError(t, err)
			results[i] = d.Allowed
		}(i)
	}
	wg.Wait()

	allows := 0
	for _, ok := range results {
		if ok {
			allows++
		}
	}
	assert.Equal(t, 1, allows, "exactly one of two concurrent requests may take the last unit")
}

func TestReleaseReturnsUnit(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	gate := NewGate(store, zap.NewNop())
	user := newUser(t, store, "u-release", models.TierFree)

	d, err := gate.Check(ctx, user, models.ChannelText)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.NoError(t, gate.Release(ctx, user.ID, models.ChannelText))

	fresh, err := store.GetOrCreateUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.TextCount)
}

func TestMonthlyResetIdempotence(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	user := newUser(t, store, "u-reset", models.TierFree)

	base := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	gate := NewGate(store, zap.NewNop()).WithClock(func() time.Time { return base })

	for i := 0; i < 3; i++ {
		d, err := gate.Check(ctx, user, models.ChannelText)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// New month: counters reset exactly once, then accumulate again.
	nextMonth := base.AddDate(0, 1, 0)
	gate = NewGate(store, zap.NewNop()).WithClock(func() time.Time { return nextMonth })

	d, err := gate.Check(ctx, user, models.ChannelText)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	assert.Equal(t, 49, d.Remaining, "first check of the month sees a fresh pool")

	d, err = gate.Check(ctx, user, models.ChannelText)
	require.NoError(t, err)
	assert.Equal(t, 48, d.Remaining, "second check in the same month must not reset again")
}

func TestMonthlyResetConcurrentExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	user := newUser(t, store, "u-reset-race", models.TierFree)

	base := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	gate := NewGate(store, zap.NewNop()).WithClock(func() time.Time { return base })
	for i := 0; i < 10; i++ {
		_, err := gate.Check(ctx, user, models.ChannelText)
		require.NoError(t, err)
	}

	nextMonth := base.AddDate(0, 1, 0)
	gate = NewGate(store, zap.NewNop()).WithClock(func() time.Time { return nextMonth })

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gate.Check(ctx, user, models.ChannelText)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// One reset, then two reservations: the counter reads exactly 2.
	fresh, err := store.GetOrCreateUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.TextCount)
}
