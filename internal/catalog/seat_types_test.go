package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

func TestSeatTypeCacheReadThrough(t *testing.T) {
	loads := 0
	cache := NewSeatTypeCache(func(ctx context.Context) ([]model.SeatType, error) {
		loads++
		return []model.SeatType{{ID: 1, Name: "STANDARD"}, {ID: 2, Name: "VIP"}}, nil
	}, time.Minute)

	ctx := context.Background()
	st, ok, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "STANDARD", st.Name)

	_, ok, err = cache.Get(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = cache.Get(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, loads, "repeated lookups within TTL must not reload")
}

func TestSeatTypeCacheTTLExpiry(t *testing.T) {
	loads := 0
	cache := NewSeatTypeCache(func(ctx context.Context) ([]model.SeatType, error) {
		loads++
		return []model.SeatType{{ID: 1, Name: "STANDARD"}}, nil
	}, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	cache.SetClock(func() time.Time { return now })

	ctx := context.Background()
	_, _, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, loads)

	now = now.Add(2 * time.Minute)
	_, _, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, loads, "expired cache must reload")
}

func TestSeatTypeCacheInvalidate(t *testing.T) {
	name := "STANDARD"
	cache := NewSeatTypeCache(func(ctx context.Context) ([]model.SeatType, error) {
		return []model.SeatType{{ID: 1, Name: name}}, nil
	}, 0)

	ctx := context.Background()
	st, _, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "STANDARD", st.Name)

	name = "PREMIUM"
	st, _, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "STANDARD", st.Name, "without invalidation the old value is served")

	cache.Invalidate()
	st, _, err = cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "PREMIUM", st.Name)
}

func TestSeatTypeCacheLoaderError(t *testing.T) {
	boom := errors.New("db down")
	cache := NewSeatTypeCache(func(ctx context.Context) ([]model.SeatType, error) {
		return nil, boom
	}, time.Minute)

	_, _, err := cache.Get(context.Background(), 1)
	require.ErrorIs(t, err, boom)
}
