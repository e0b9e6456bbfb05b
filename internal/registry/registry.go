// Package registry 實作房間目錄：頻道與現存房間的對應關係。
//
// 系統設計問題：
//   如何保證同一個頻道最多只有一個進行中的房間？
//
// 核心挑戰：
//   「先查詢、再創建」的序列存在競態：兩個幾乎同時的創建請求
//   都可能通過查詢檢查，產生重複房間。
//
// 設計方案：
//   ✅ 原子預約 - 以 channelID 為鍵的 compare-and-set，
//     預約成功者才能繼續創建，失敗者直接得到 ErrDuplicateRoom
//   ✅ 預約與釋放成對 - 創建途中任何失敗都釋放預約，
//     不留下無法加入的半成品房間
//
// 提供兩種實作：
//   - Memory：單機部署與測試用，互斥鎖保護的 map
//   - Redis：多實例部署用，SETNX + Lua 腳本保證原子性
package registry

import (
	"context"
	"errors"
)

// ErrDuplicateRoom 頻道已有進行中的房間
var ErrDuplicateRoom = errors.New("頻道已有進行中的房間")

// Metadata 房間的描述性元資料，創建後唯讀，供外部房間發現查詢
type Metadata struct {
	RoomID      string `json:"room_id"`
	ChannelID   string `json:"channel_id"`
	MapID       string `json:"map_id"`
	ChannelName string `json:"channel_name"`
	MaxClients  int    `json:"max_clients"`
}

// Registry 房間目錄介面
type Registry interface {
	// Reserve 原子性地為頻道預約房間名額。
	// 頻道已被佔用時返回 ErrDuplicateRoom。
	Reserve(ctx context.Context, meta Metadata) error

	// Release 釋放頻道預約。
	// 只有持有該預約的房間（roomID 相符）才能釋放，避免誤刪他人的預約。
	Release(ctx context.Context, channelID, roomID string) error

	// Get 查詢頻道目前的房間
	Get(ctx context.Context, channelID string) (Metadata, bool, error)

	// List 列出所有進行中的房間
	List(ctx context.Context) ([]Metadata, error)
}
