package flags

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	require.NoError(t, client.FlushDB(ctx).Err())
	return client
}

func cleanupTestRedis(_ *testing.T, client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.FlushDB(ctx).Err()
	_ = client.Close()
}

// exercise runs the shared PauseSwitch contract against sw.
func exercise(t *testing.T, sw PauseSwitch) {
	ctx := context.Background()

	paused, err := sw.Paused(ctx)
	require.NoError(t, err)
	assert.False(t, paused, "a switch never set is running")

	st, err := sw.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.UpdatedBy)

	require.NoError(t, sw.SetPaused(ctx, true, "oncall"))
	paused, err = sw.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	require.NoError(t, sw.SetPaused(ctx, false, "ops"))
	st, err = sw.State(ctx)
	require.NoError(t, err)
	assert.False(t, st.Paused)
	assert.Equal(t, "ops", st.UpdatedBy)
	assert.False(t, st.UpdatedAt.IsZero())

	hist, err := sw.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "ops", hist[0].UpdatedBy, "newest first")
	assert.True(t, hist[1].Paused)

	hist, err = sw.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestMemorySwitch(t *testing.T) {
	exercise(t, &MemorySwitch{})
}

func TestRedisSwitch(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	sw, err := NewRedisSwitch(client)
	require.NoError(t, err)
	exercise(t, sw)
}

func TestNewRedisSwitch_NilClient(t *testing.T) {
	_, err := NewRedisSwitch(nil)
	assert.Error(t, err)
}

func TestSwitch_HistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	var sw MemorySwitch
	for i := 0; i < HistoryLimit+10; i++ {
		require.NoError(t, sw.SetPaused(ctx, i%2 == 0, "ops"))
	}
	hist, err := sw.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, hist, HistoryLimit)
}

func TestRedisSwitch_ConcurrentToggles(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	sw, err := NewRedisSwitch(client)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, sw.SetPaused(ctx, (id+j)%2 == 0, "ops"))
			}
		}(i)
	}
	wg.Wait()

	hist, err := sw.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, hist, HistoryLimit)
}
