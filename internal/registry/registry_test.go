package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/virtualspace/internal/registry"
)

func testMetadata(channelID, roomID string) registry.Metadata {
	return registry.Metadata{
		RoomID:      roomID,
		ChannelID:   channelID,
		MapID:       "office",
		ChannelName: "測試頻道",
		MaxClients:  30,
	}
}

// TestMemory_Reserve 測試預約與重複預約
func TestMemory_Reserve(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()

	require.NoError(t, reg.Reserve(ctx, testMetadata("ch1", "room1")))

	// 同頻道再預約必須失敗
	err := reg.Reserve(ctx, testMetadata("ch1", "room2"))
	assert.ErrorIs(t, err, registry.ErrDuplicateRoom)

	// 不同頻道不受影響
	require.NoError(t, reg.Reserve(ctx, testMetadata("ch2", "room3")))
}

// TestMemory_Release 測試釋放
func TestMemory_Release(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()

	require.NoError(t, reg.Reserve(ctx, testMetadata("ch1", "room1")))

	t.Run("wrong room id does not release", func(t *testing.T) {
		require.NoError(t, reg.Release(ctx, "ch1", "room-other"))
		_, exists, err := reg.Get(ctx, "ch1")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("owner releases and channel becomes free", func(t *testing.T) {
		require.NoError(t, reg.Release(ctx, "ch1", "room1"))
		_, exists, err := reg.Get(ctx, "ch1")
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, reg.Reserve(ctx, testMetadata("ch1", "room2")))
	})
}

// TestMemory_ConcurrentReserve 併發預約同一頻道，恰好一個成功
func TestMemory_ConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()

	const attempts = 64

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
		} else {
			assert.ErrorIs(t, err, registry.ErrDuplicateRoom)
		}
	}
	assert.Equal(t, 1, succeeded)
}

// TestMemory_List 測試列出房間
func TestMemory_List(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()

	require.NoError(t, reg.Reserve(ctx, testMetadata("ch-b", "room1")))
	require.NoError(t, reg.Reserve(ctx, testMetadata("ch-a", "room2")))

	rooms, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "ch-a", rooms[0].ChannelID)
	assert.Equal(t, "ch-b", rooms[1].ChannelID)
}
