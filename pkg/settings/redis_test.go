package settings

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// redisSettings points at CHATWIDGET_TEST_REDIS_ADDR (default localhost:6379)
// with a fresh key, and skips the test when no server answers.
func redisSettings(t *testing.T) RedisSettings {
	t.Helper()
	addr := os.Getenv("CHATWIDGET_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	key := "chatwidget:test:" + uuid.NewString()
	t.Cleanup(func() {
		c := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = c.Close() }()
		_ = c.Del(context.Background(), key).Err()
	})
	return RedisSettings{Addr: addr, Key: key}
}

func TestRedisWatcher_ReadWrite(t *testing.T) {
	s := redisSettings(t)
	w := NewRedisWatcher(s)
	defer func() { _ = w.Close() }()
	ctx := context.Background()

	_, found, err := w.Read(ctx)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, w.Write(ctx, AppSetting{URL: VisionEndpoint, ImageInput: boolPtr(false)}))
	got, found, err := w.Read(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, VisionEndpoint, got.URL)
	require.False(t, got.ImageModeEnabled())
}

func TestRedisWatcher_RunNotifiesOtherProcesses(t *testing.T) {
	s := redisSettings(t)
	w := NewRedisWatcher(s)
	defer func() { _ = w.Close() }()

	var mu sync.Mutex
	var got []AppSetting
	w.Subscribe(func(s AppSetting) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	received := func(pred func(AppSetting) bool) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) > 0 && pred(got[len(got)-1])
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	other := NewRedisWatcher(s)
	defer func() { _ = other.Close() }()

	// publishes before the subscription is active are lost, keep writing
	require.Eventually(t, func() bool {
		if err := other.Write(context.Background(), AppSetting{URL: VisionEndpoint}); err != nil {
			return false
		}
		return received(func(s AppSetting) bool { return s.ImageModeEnabled() })()
	}, 3*time.Second, 50*time.Millisecond)

	// a bare notification makes the watcher re-read the key
	raw := redis.NewClient(&redis.Options{Addr: s.Addr})
	defer func() { _ = raw.Close() }()
	require.NoError(t, raw.Set(context.Background(), s.Key, `{"url":"http://other"}`, 0).Err())
	require.NoError(t, raw.Publish(context.Background(), s.Key+":changed", "").Err())
	require.Eventually(t, received(func(s AppSetting) bool { return s.URL == "http://other" }),
		3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRedisWatcher_DefaultKeyAndChannel(t *testing.T) {
	w := NewRedisWatcher(RedisSettings{Addr: "localhost:0"})
	defer func() { _ = w.Close() }()
	require.Equal(t, Key, w.key)
	require.Equal(t, Key+":changed", w.channel)
}
