package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/virtualspace/internal/registry"
	"github.com/koopa0/virtualspace/internal/tilemap"
)

type fakeChannelStore struct {
	channels map[string]Channel
	err      error
}

func (s *fakeChannelStore) FindChannel(_ context.Context, id string) (Channel, bool, error) {
	if s.err != nil {
		return Channel{}, false, s.err
	}
	ch, found := s.channels[id]
	return ch, found, nil
}

func newTestFactory(reg registry.Registry) *Factory {
	channels := &fakeChannelStore{
		channels: map[string]Channel{
			"ch-1": {ID: "ch-1", Name: "大廳", MapName: "office", MaxUsers: 30, IsActive: true},
			"ch-2": {ID: "ch-2", Name: "封存頻道", MapName: "office", MaxUsers: 30, IsActive: false},
			"ch-3": {ID: "ch-3", Name: "壞地圖", MapName: "missing", MaxUsers: 30, IsActive: true},
		},
	}
	return NewFactory(channels, tilemap.NewDirStore("../tilemap/testdata"), reg, testLogger())
}

func TestFactoryCreate(t *testing.T) {
	reg := registry.NewMemory()
	factory := newTestFactory(reg)

	room, err := factory.Create(context.Background(), "ch-1")
	require.NoError(t, err)
	defer room.Dispose("test")

	meta := room.Metadata()
	assert.NotEmpty(t, meta.RoomID)
	assert.Equal(t, "ch-1", meta.ChannelID)
	assert.Equal(t, "office", meta.MapID)
	assert.Equal(t, "大廳", meta.ChannelName)
	assert.Equal(t, 30, meta.MaxClients)

	// 頻道目錄登記了這個房間
	got, found, err := reg.Get(context.Background(), "ch-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, meta.RoomID, got.RoomID)
}

func TestFactoryCreateFailures(t *testing.T) {
	tests := []struct {
		name      string
		channelID string
		wantErr   error
	}{
		{name: "頻道不存在", channelID: "no-such", wantErr: ErrChannelNotFound},
		{name: "頻道未啟用", channelID: "ch-2", wantErr: ErrChannelInactive},
		{name: "地圖不存在", channelID: "ch-3", wantErr: tilemap.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.NewMemory()
			factory := newTestFactory(reg)

			_, err := factory.Create(context.Background(), tt.channelID)
			assert.ErrorIs(t, err, tt.wantErr)

			// 失敗的創建不得留下殘餘預約
			_, found, regErr := reg.Get(context.Background(), tt.channelID)
			require.NoError(t, regErr)
			assert.False(t, found)
		})
	}
}

func TestFactoryCreateStoreError(t *testing.T) {
	factory := NewFactory(
		&fakeChannelStore{err: errors.New("連線中斷")},
		tilemap.NewDirStore("../tilemap/testdata"),
		registry.NewMemory(),
		testLogger(),
	)

	_, err := factory.Create(context.Background(), "ch-1")
	assert.ErrorContains(t, err, "查詢頻道失敗")
}

func TestFactoryCreateConcurrentDuplicate(t *testing.T) {
	reg := registry.NewMemory()
	factory := newTestFactory(reg)

	const attempts = 8

	var wg sync.WaitGroup
	rooms := make([]*Room, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i], errs[i] = factory.Create(context.Background(), "ch-1")
		}(i)
	}
	wg.Wait()

	// 恰好一個創建成功，其餘觀察到重複房間錯誤
	succeeded := 0
	for i := 0; i < attempts; i++ {
		if errs[i] == nil {
			succeeded++
			defer rooms[i].Dispose("test")
		} else {
			assert.ErrorIs(t, errs[i], registry.ErrDuplicateRoom)
		}
	}
	assert.Equal(t, 1, succeeded)
}
