package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/koopa0/virtualspace/internal/auth"
	"github.com/koopa0/virtualspace/internal/registry"
	"github.com/koopa0/virtualspace/internal/tilemap"
)

// 新玩家的固定出生座標
const (
	spawnX = 480.0
	spawnY = 1030.0
)

// Session 已通過連線閘門的客戶端會話
//
// Send 與 SendError 必須在呼叫當下完成負載序列化：
// 補丁會引用房間狀態的即時指標，延後序列化會跨出房間的執行緒邊界。
type Session interface {
	Identity() auth.Identity
	Send(event string, payload any)
	SendError(code int, message string)
}

// Room 一個頻道的權威模擬實例
//
// 系統設計考量：
//
//  1. Actor 模型（inbox channel）：
//     房間的所有訊息處理與生命週期回呼由單一 goroutine 依到達順序執行，
//     狀態修改不需要鎖——互斥是結構性的，不是顯式的。
//     多個房間（每個活躍頻道一個）彼此獨立並行，房間之間沒有共享可變狀態。
//
//  2. 增量同步（snapshot + Syncer）：
//     每處理完一個命令就和上次廣播的快照做差分，
//     有變更才推送 state_patch，客戶端自動收斂。
//
//  3. 錯誤隔離：
//     訊息處理器的 GameError 轉成對肇事客戶端的錯誤回覆，
//     未預期的 panic 由 recover 攔截，房間永不因單一訊息崩潰。
type Room struct {
	meta     registry.Metadata
	state    *State
	snapshot *State
	parser   *tilemap.Parser
	sessions map[string]Session
	syncer   Syncer
	registry registry.Registry
	logger   *slog.Logger

	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// newRoom 創建房間並以地圖拓撲播種狀態
func newRoom(meta registry.Metadata, parser *tilemap.Parser, syncer Syncer, reg registry.Registry, logger *slog.Logger) *Room {
	r := &Room{
		meta:     meta,
		state:    NewState(),
		parser:   parser,
		sessions: make(map[string]Session),
		syncer:   syncer,
		registry: reg,
		logger:   logger.With("room_id", meta.RoomID, "channel_id", meta.ChannelID),
		inbox:    make(chan func(), 64),
		done:     make(chan struct{}),
	}

	// 區域預設開放（未上鎖）；門沿用地圖解析出的開關旗標。
	// 兩個 IsOpen 是獨立的布林空間，不得合併。
	for _, z := range parser.Zones() {
		r.state.Zones[z.ZoneID] = &Zone{ID: z.ZoneID, IsOpen: true}
	}
	for _, d := range parser.Doors() {
		r.state.Doors[d.Object.ID] = &Door{ID: d.Object.ID, ZoneID: d.ZoneID, IsOpen: d.IsOpen}
	}

	r.snapshot = r.state.Clone()

	go r.run()
	return r
}

// run 房間的 actor 迴圈：序列化執行所有命令，每個命令後刷新增量同步
func (r *Room) run() {
	for {
		select {
		case f := <-r.inbox:
			f()
			r.flush()
		case <-r.done:
			return
		}
	}
}

// do 投遞非同步命令
func (r *Room) do(f func()) {
	select {
	case r.inbox <- f:
	case <-r.done:
	}
}

// doSync 投遞命令並等待結果
func (r *Room) doSync(f func() error) error {
	errc := make(chan error, 1)
	select {
	case r.inbox <- func() { errc <- f() }:
	case <-r.done:
		return ErrRoomClosed
	}
	select {
	case err := <-errc:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// Metadata 房間元資料（創建後唯讀）
func (r *Room) Metadata() registry.Metadata {
	return r.meta
}

// Done 房間銷毀時關閉
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// PlayerCount 目前的玩家數
func (r *Room) PlayerCount() int {
	count := 0
	_ = r.doSync(func() error {
		count = len(r.state.Players)
		return nil
	})
	return count
}

// PlayerIDs 目前所有玩家的 ID
func (r *Room) PlayerIDs() []string {
	var ids []string
	_ = r.doSync(func() error {
		ids = make([]string, 0, len(r.state.Players))
		for id := range r.state.Players {
			ids = append(ids, id)
		}
		return nil
	})
	return ids
}

// Join 玩家加入房間
//
// 新玩家出生在固定座標、不屬於任何區域；加入者收到一份
// 既有玩家名冊與完整狀態快照，其他成員收到 player_joined 事件。
func (r *Room) Join(sess Session) error {
	return r.doSync(func() error {
		identity := sess.Identity()

		if _, exists := r.state.Players[identity.ID]; exists {
			// 同一使用者重連：舊會話被新會話取代。重連者不佔用
			// 額外名額，但舊身影要照離開流程清乾淨，否則鄰近
			// 關係與區域鎖會殘留在其他玩家的視野裡
			r.removePlayer(identity.ID)
		} else if len(r.state.Players) >= r.meta.MaxClients {
			return ErrRoomFull
		}

		player := &Player{
			ID:            identity.ID,
			Email:         identity.Email,
			Name:          identity.Name,
			Avatar:        identity.Avatar,
			X:             spawnX,
			Y:             spawnY,
			CurrentZoneID: NoZone,
		}

		roster := make([]ChannelUser, 0, len(r.state.Players))
		for _, other := range r.state.Players {
			roster = append(roster, playerToChannelUser(other))
		}

		r.state.Players[player.ID] = player
		r.sessions[player.ID] = sess

		sess.Send(EventInitUsers, roster)
		sess.Send(EventStatePatch, FullPatch(r.state))
		r.broadcastExcept(player.ID, EventPlayerJoined, playerToChannelUser(player))

		r.logger.Info("玩家加入房間",
			"player_id", player.ID,
			"players", len(r.state.Players))
		return nil
	})
}

// Leave 玩家離開房間
//
// 清理順序：
//  1. 對稱移除——把離開者從所有其他玩家的鄰近清單中拿掉
//  2. 區域重置——離開者若獨自留在上鎖的區域，區域恢復預設開放
//  3. 刪除玩家並廣播 player_left
//  4. 最後一個玩家離開時銷毀房間
func (r *Room) Leave(playerID string) {
	r.do(func() {
		if _, exists := r.state.Players[playerID]; !exists {
			return
		}

		r.removePlayer(playerID)

		r.broadcast(EventPlayerLeft, PlayerLeftPayload{ID: playerID})

		r.logger.Info("玩家離開房間",
			"player_id", playerID,
			"players", len(r.state.Players))

		if len(r.state.Players) == 0 {
			r.Dispose("empty")
		}
	})
}

// removePlayer 抹除玩家在共享狀態中的足跡：
//  1. 對稱移除——把玩家從所有其他玩家的鄰近清單中拿掉
//  2. 區域重置——玩家若獨自留在上鎖的區域，區域恢復預設開放
//  3. 刪除玩家與會話
//
// 離開與重連取代共用同一套清理，只能在房間 goroutine 內呼叫。
func (r *Room) removePlayer(playerID string) {
	player, exists := r.state.Players[playerID]
	if !exists {
		return
	}

	for id, other := range r.state.Players {
		if id != playerID {
			other.RemoveNearby(playerID)
		}
	}

	if player.CurrentZoneID != NoZone {
		if zone, ok := r.state.Zones[player.CurrentZoneID]; ok && !zone.IsOpen {
			if !r.state.PlayersInZone(zone.ID, playerID) {
				zone.IsOpen = true
				zone.LockedBy = ""
			}
		}
	}

	delete(r.state.Players, playerID)
	delete(r.sessions, playerID)
}

// HandleMessage 投遞一則客戶端意圖給房間處理
func (r *Room) HandleMessage(playerID, event string, data json.RawMessage) {
	r.do(func() {
		r.dispatch(playerID, event, data)
	})
}

// Dispose 銷毀房間
//
// 最後一個玩家離開或創建途中失敗時呼叫；狀態不持久化，全部丟棄，
// 頻道預約一併釋放。
func (r *Room) Dispose(reason string) {
	r.closeOnce.Do(func() {
		close(r.done)

		// 預約釋放是外部 I/O，不在 actor goroutine 裡做
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.registry.Release(ctx, r.meta.ChannelID, r.meta.RoomID); err != nil {
				r.logger.Error("釋放頻道預約失敗", "error", err)
			}
		}()

		r.logger.Info("房間已銷毀", "reason", reason)
	})
}

// dispatch 訊息路由：驗證過的意圖分派給對應的處理器
//
// 處理器拋出的領域錯誤轉成給發送者的錯誤回覆，
// 未預期的錯誤與 panic 以通用內部錯誤碼回覆；路由層永不向外拋出。
func (r *Room) dispatch(playerID, event string, data json.RawMessage) {
	sess, exists := r.sessions[playerID]
	if !exists {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("訊息處理器 panic",
				"event", event,
				"player_id", playerID,
				"panic", rec)
			sess.SendError(CodeInternal, "內部錯誤")
		}
	}()

	var err error
	switch event {
	case EventMove:
		err = r.handleMove(playerID, data)
	case EventCurrentZone:
		err = r.handleCurrentZone(playerID, data)
	case EventDoorTrigger:
		err = r.handleDoorTrigger(playerID, data)
	default:
		r.logger.Debug("收到未知訊息類型", "event", event, "player_id", playerID)
		return
	}

	if err != nil {
		var gameErr *GameError
		if errors.As(err, &gameErr) {
			sess.SendError(gameErr.Code, gameErr.Message)
		} else {
			r.logger.Error("訊息處理失敗",
				"event", event,
				"player_id", playerID,
				"error", err)
			sess.SendError(CodeInternal, "內部錯誤")
		}
	}
}

// handleMove 更新座標並重算鄰近集合
func (r *Room) handleMove(playerID string, data json.RawMessage) error {
	var payload MovePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ErrInvalidPayload
	}

	player, exists := r.state.Players[playerID]
	if !exists {
		return ErrPlayerNotFound
	}

	player.X = payload.X
	player.Y = payload.Y

	if updateNearby(r.state, playerID) {
		r.logger.Debug("鄰近集合已更新",
			"player_id", playerID,
			"nearby", player.NearbyUsers)
	}
	return nil
}

// handleCurrentZone 回報當前區域
//
// 只接受 -1 或已知的區域 ID；未知的 ID 靜默忽略，不改變狀態。
// 區域歸屬改變後立即重算鄰近集合：區域內的玩家不參與鄰近關係。
func (r *Room) handleCurrentZone(playerID string, data json.RawMessage) error {
	var payload ZonePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ErrInvalidPayload
	}

	player, exists := r.state.Players[playerID]
	if !exists {
		return ErrPlayerNotFound
	}

	if payload.ZoneID != NoZone {
		if _, known := r.state.Zones[payload.ZoneID]; !known {
			return nil
		}
	}

	player.CurrentZoneID = payload.ZoneID
	updateNearby(r.state, playerID)
	return nil
}

// handleDoorTrigger 觸發門的開關/門鈴狀態機
func (r *Room) handleDoorTrigger(playerID string, data json.RawMessage) error {
	var payload ZonePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ErrInvalidPayload
	}
	return r.triggerDoor(playerID, payload.ZoneID)
}

// flush 刷新增量同步：有變更才廣播補丁並更新快照
func (r *Room) flush() {
	patch := r.syncer.Diff(r.snapshot, r.state)
	if patch.Empty() {
		return
	}
	r.broadcast(EventStatePatch, patch)
	r.snapshot = r.state.Clone()
}

// broadcast 廣播事件給所有成員
func (r *Room) broadcast(event string, payload any) {
	for _, sess := range r.sessions {
		sess.Send(event, payload)
	}
}

// broadcastExcept 廣播事件給指定玩家以外的所有成員
func (r *Room) broadcastExcept(exceptID, event string, payload any) {
	for id, sess := range r.sessions {
		if id != exceptID {
			sess.Send(event, payload)
		}
	}
}

// playerToChannelUser 玩家的對外表示
func playerToChannelUser(p *Player) ChannelUser {
	return ChannelUser{
		ID:            p.ID,
		Email:         p.Email,
		Name:          p.Name,
		Avatar:        p.Avatar,
		X:             p.X,
		Y:             p.Y,
		CurrentZoneID: p.CurrentZoneID,
	}
}
