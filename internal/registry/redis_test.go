package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/koopa0/virtualspace/internal/registry"
)

// setupRedis 啟動 Redis 測試容器
func setupRedis(t *testing.T) *goredis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("short 模式跳過容器測試")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("無法啟動 redis 容器: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{
		Addr:        endpoint,
		DialTimeout: 5 * time.Second,
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(pingCtx).Err())

	return client
}

// TestRedis_ReserveRelease 測試 Redis 目錄的預約生命週期
func TestRedis_ReserveRelease(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	reg := registry.NewRedis(client)

	meta := testMetadata("ch1", "room1")
	require.NoError(t, reg.Reserve(ctx, meta))

	// 重複預約失敗
	err := reg.Reserve(ctx, testMetadata("ch1", "room2"))
	assert.ErrorIs(t, err, registry.ErrDuplicateRoom)

	// 查詢返回預約時的元資料
	got, exists, err := reg.Get(ctx, "ch1")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, meta, got)

	// 非持有者無法釋放
	require.NoError(t, reg.Release(ctx, "ch1", "room-other"))
	_, exists, err = reg.Get(ctx, "ch1")
	require.NoError(t, err)
	assert.True(t, exists)

	// 持有者釋放後頻道可再預約
	require.NoError(t, reg.Release(ctx, "ch1", "room1"))
	require.NoError(t, reg.Reserve(ctx, testMetadata("ch1", "room3")))
}

// TestRedis_ConcurrentReserve 併發預約同一頻道，恰好一個成功
func TestRedis_ConcurrentReserve(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	reg := registry.NewRedis(client)

	const attempts = 16

	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = reg.Reserve(ctx, testMetadata("C1", fmt.Sprintf("room-%d", i)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

// TestRedis_List 測試列出房間
func TestRedis_List(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	reg := registry.NewRedis(client)

	require.NoError(t, reg.Reserve(ctx, testMetadata("list-a", "room1")))
	require.NoError(t, reg.Reserve(ctx, testMetadata("list-b", "room2")))

	rooms, err := reg.List(ctx)
	require.NoError(t, err)

	channels := make(map[string]bool, len(rooms))
	for _, meta := range rooms {
		channels[meta.ChannelID] = true
	}
	assert.True(t, channels["list-a"])
	assert.True(t, channels["list-b"])
}
