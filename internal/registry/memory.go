package registry

import (
	"context"
	"sort"
	"sync"
)

// Memory 記憶體房間目錄
//
// 預約檢查與寫入在同一個臨界區內完成，對單一程序而言就是 compare-and-set。
type Memory struct {
	mu    sync.Mutex
	rooms map[string]Metadata // channelID -> Metadata
}

// NewMemory 創建記憶體房間目錄
func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]Metadata),
	}
}

// Reserve 原子性預約頻道
func (m *Memory) Reserve(_ context.Context, meta Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[meta.ChannelID]; exists {
		return ErrDuplicateRoom
	}
	m.rooms[meta.ChannelID] = meta
	return nil
}

// Release 釋放頻道預約
func (m *Memory) Release(_ context.Context, channelID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if meta, exists := m.rooms[channelID]; exists && meta.RoomID == roomID {
		delete(m.rooms, channelID)
	}
	return nil
}

// Get 查詢頻道目前的房間
func (m *Memory) Get(_ context.Context, channelID string) (Metadata, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, exists := m.rooms[channelID]
	return meta, exists, nil
}

// List 列出所有進行中的房間
func (m *Memory) List(_ context.Context) ([]Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Metadata, 0, len(m.rooms))
	for _, meta := range m.rooms {
		result = append(result, meta)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChannelID < result[j].ChannelID
	})
	return result, nil
}
