package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/virtualspace/internal/registry"
	"github.com/koopa0/virtualspace/internal/tilemap"
)

// Channel 房間所屬的頻道設定
type Channel struct {
	ID       string
	Name     string
	MapName  string
	MaxUsers int
	IsActive bool
}

// ChannelStore 頻道設定的查詢介面
type ChannelStore interface {
	FindChannel(ctx context.Context, id string) (Channel, bool, error)
}

// Factory 房間工廠：負責房間創建的完整流程
//
// 創建順序刻意把「預約頻道」放在最前面：
//
//	驗證頻道 → 原子預約 → 載入地圖 → 啟動房間
//
// 預約是唯一的互斥點。兩個併發的創建請求只有一個能通過 Reserve，
// 另一個立即收到 ErrDuplicateRoom，不存在先檢查後創建的競態窗口。
// 預約之後的任何失敗都必須釋放預約，否則頻道會被永久卡住。
type Factory struct {
	channels ChannelStore
	maps     tilemap.Store
	registry registry.Registry
	syncer   Syncer
	logger   *slog.Logger
}

// NewFactory 創建房間工廠
func NewFactory(channels ChannelStore, maps tilemap.Store, reg registry.Registry, logger *slog.Logger) *Factory {
	return &Factory{
		channels: channels,
		maps:     maps,
		registry: reg,
		syncer:   DiffSyncer{},
		logger:   logger,
	}
}

// Create 為頻道創建房間
//
// 頻道不存在回傳 ErrChannelNotFound，未啟用回傳 ErrChannelInactive，
// 已有進行中的房間回傳 registry.ErrDuplicateRoom。
func (f *Factory) Create(ctx context.Context, channelID string) (*Room, error) {
	channel, found, err := f.channels.FindChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("查詢頻道失敗: %w", err)
	}
	if !found {
		return nil, ErrChannelNotFound
	}
	if !channel.IsActive {
		return nil, ErrChannelInactive
	}

	meta := registry.Metadata{
		RoomID:      uuid.NewString(),
		ChannelID:   channel.ID,
		MapID:       channel.MapName,
		ChannelName: channel.Name,
		MaxClients:  channel.MaxUsers,
	}

	if err := f.registry.Reserve(ctx, meta); err != nil {
		return nil, err
	}

	parser, err := tilemap.Load(f.maps, channel.MapName)
	if err != nil {
		f.release(meta)
		return nil, fmt.Errorf("載入地圖失敗: %w", err)
	}

	room := newRoom(meta, parser, f.syncer, f.registry, f.logger)

	f.logger.Info("房間已創建",
		"room_id", meta.RoomID,
		"channel_id", meta.ChannelID,
		"map_id", meta.MapID,
		"max_clients", meta.MaxClients,
		"zones", len(parser.Zones()),
		"doors", len(parser.Doors()))

	return room, nil
}

// release 回滾預約（創建途中失敗時）
func (f *Factory) release(meta registry.Metadata) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.registry.Release(ctx, meta.ChannelID, meta.RoomID); err != nil {
		f.logger.Error("回滾頻道預約失敗",
			"channel_id", meta.ChannelID,
			"room_id", meta.RoomID,
			"error", err)
	}
}
