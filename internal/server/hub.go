// Package server 實現 WebSocket 接入層與房間探索 API
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koopa0/virtualspace/internal/auth"
	"github.com/koopa0/virtualspace/internal/game"
	"github.com/koopa0/virtualspace/internal/registry"
)

// 系統設計問題：
//   如何實現多人虛擬空間的實時狀態同步？
//
// 核心挑戰：
//   1. 實時通信：房間狀態變更需要立即推送給所有玩家
//   2. 連接管理：處理斷線、重連、同一使用者的多次連線
//   3. 心跳機制：檢測死連接（網絡異常、客戶端崩潰）
//   4. 房間歸屬：同一頻道的連線必須路由到同一個房間實例
//
// 設計方案：
//   ✅ WebSocket - 全雙工通信（低延遲、服務器推送）
//   ✅ Hub 模式 - 集中管理所有連接
//   ✅ Ping/Pong 心跳 - 檢測死連接（54s/60s）
//   ✅ 緩衝 channel - 異步發送（不阻塞房間邏輯）

// Hub WebSocket 連接中心
//
// 連接映射是兩層 map：channelID -> playerID -> connection，
// 讀多寫少用 RWMutex。房間的取得或創建走 Factory，
// 頻道目錄的原子預約保證跨程序也只有一個房間實例。
type Hub struct {
	gate    *auth.Gate
	factory *game.Factory
	logger  *slog.Logger

	upgrader websocket.Upgrader

	mu          sync.RWMutex
	rooms       map[string]*game.Room
	connections map[string]map[string]*connection
}

// NewHub 創建 WebSocket Hub
func NewHub(gate *auth.Gate, factory *game.Factory, logger *slog.Logger) *Hub {
	return &Hub{
		gate:    gate,
		factory: factory,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		rooms:       make(map[string]*game.Room),
		connections: make(map[string]map[string]*connection),
	}
}

// ServeWS 處理 WebSocket 連接：GET /ws/channels/{channel_id}?token=...
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channel_id")
	if channelID == "" {
		http.Error(w, "缺少頻道 ID", http.StatusBadRequest)
		return
	}

	// 升級前驗證身份：憑證無效的連線不值得一個 WebSocket
	identity, err := hub.gate.Authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		hub.logger.Warn("連線驗證失敗", "channel_id", channelID, "error", err)
		http.Error(w, "驗證失敗", http.StatusUnauthorized)
		return
	}

	room, err := hub.roomFor(r.Context(), channelID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, game.ErrChannelNotFound):
			status = http.StatusNotFound
		case errors.Is(err, game.ErrChannelInactive):
			status = http.StatusForbidden
		case errors.Is(err, registry.ErrDuplicateRoom):
			// 房間在別的程序手上，客戶端應向該程序重連
			status = http.StatusConflict
		}
		hub.logger.Error("取得房間失敗", "channel_id", channelID, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	c := &connection{
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, 256),
		room:     room,
		hub:      hub,
		logger:   hub.logger,
	}

	hub.register(channelID, c)

	if err := room.Join(c); err != nil {
		hub.unregister(channelID, c)
		c.close()
		// writePump 還沒啟動，關閉幀直接寫
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		conn.Close()
		hub.logger.Warn("加入房間被拒",
			"channel_id", channelID,
			"player_id", identity.ID,
			"error", err)
		return
	}

	go c.writePump()
	go c.readPump(channelID)

	hub.logger.Info("WebSocket 連接建立",
		"channel_id", channelID,
		"player_id", identity.ID)
}

// roomFor 取得或創建頻道的房間
//
// 本地已有活躍房間直接重用。創建撞上 ErrDuplicateRoom 代表
// 另一個 goroutine 剛完成創建，重讀本地表一次；
// 仍然沒有就是別的程序持有房間，把錯誤傳給呼叫方。
func (hub *Hub) roomFor(ctx context.Context, channelID string) (*game.Room, error) {
	hub.mu.RLock()
	room, exists := hub.rooms[channelID]
	hub.mu.RUnlock()
	if exists {
		select {
		case <-room.Done():
		default:
			return room, nil
		}
	}

	room, err := hub.factory.Create(ctx, channelID)
	if err != nil {
		if errors.Is(err, registry.ErrDuplicateRoom) {
			hub.mu.RLock()
			existing, ok := hub.rooms[channelID]
			hub.mu.RUnlock()
			if ok {
				return existing, nil
			}
		}
		return nil, err
	}

	hub.mu.Lock()
	hub.rooms[channelID] = room
	hub.mu.Unlock()

	// 房間銷毀後從本地表移除
	go func() {
		<-room.Done()
		hub.mu.Lock()
		if hub.rooms[channelID] == room {
			delete(hub.rooms, channelID)
		}
		hub.mu.Unlock()
	}()

	return room, nil
}

// Room 查詢頻道目前在本程序內的房間
func (hub *Hub) Room(channelID string) (*game.Room, bool) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	room, exists := hub.rooms[channelID]
	return room, exists
}

// register 註冊連接，同一使用者的舊連接被新連接取代
func (hub *Hub) register(channelID string, c *connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.connections[channelID] == nil {
		hub.connections[channelID] = make(map[string]*connection)
	}
	if old, exists := hub.connections[channelID][c.identity.ID]; exists {
		old.close()
	}
	hub.connections[channelID][c.identity.ID] = c
}

// unregister 取消註冊；回傳 false 代表這個連接已被新連接取代
func (hub *Hub) unregister(channelID string, c *connection) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	conns, exists := hub.connections[channelID]
	if !exists {
		return false
	}
	if current, exists := conns[c.identity.ID]; !exists || current != c {
		return false
	}

	delete(conns, c.identity.ID)
	if len(conns) == 0 {
		delete(hub.connections, channelID)
	}
	return true
}

// ConnectionCount 各頻道的連接數
func (hub *Hub) ConnectionCount() map[string]int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	result := make(map[string]int, len(hub.connections))
	for channelID, conns := range hub.connections {
		result[channelID] = len(conns)
	}
	return result
}

// Stop 停止 Hub：銷毀所有房間並關閉所有連接
func (hub *Hub) Stop() {
	hub.mu.Lock()
	rooms := make([]*game.Room, 0, len(hub.rooms))
	for _, room := range hub.rooms {
		rooms = append(rooms, room)
	}
	for _, conns := range hub.connections {
		for _, c := range conns {
			c.close()
		}
	}
	hub.rooms = make(map[string]*game.Room)
	hub.connections = make(map[string]map[string]*connection)
	hub.mu.Unlock()

	for _, room := range rooms {
		room.Dispose("server_shutdown")
	}

	hub.logger.Info("WebSocket Hub 已停止")
}

// envelope 線上訊息的外框：{"event": "...", "data": {...}}
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outEnvelope 送出方向的外框，Data 在序列化當下求值
type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// connection 單一玩家的 WebSocket 連接，實現 game.Session
type connection struct {
	identity auth.Identity
	conn     *websocket.Conn
	send     chan []byte
	room     *game.Room
	hub      *Hub
	logger   *slog.Logger

	// mu 保護 closed：連接被取代或關閉後，Send 不得再碰 send channel
	mu     sync.Mutex
	closed bool
}

// Identity 閘門解析出的身份
func (c *connection) Identity() auth.Identity {
	return c.identity
}

// Send 發送事件給客戶端
//
// 序列化在呼叫端的 goroutine 完成：負載經常引用房間狀態的即時指標，
// 跨出房間的執行緒邊界之前必須定格成位元組。
func (c *connection) Send(event string, payload any) {
	data, err := json.Marshal(outEnvelope{Event: event, Data: payload})
	if err != nil {
		c.logger.Error("序列化事件失敗", "event", event, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		// 緩衝區滿：慢客戶端不值得拖累整個房間
		c.logger.Warn("連接緩衝區滿",
			"player_id", c.identity.ID,
			"event", event)
	}
}

// SendError 發送錯誤回覆給客戶端
func (c *connection) SendError(code int, message string) {
	c.Send(game.EventError, game.ErrorPayload{Code: code, Message: message})
}

// close 關閉發送通道（冪等），writePump 隨後送出關閉幀
func (c *connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump 讀取客戶端訊息
//
// 心跳機制（讀取端）：60 秒內沒有任何訊息（包括 Pong）就關閉連接，
// 配合 writePump 的 54 秒 Ping 留 6 秒余量。
func (c *connection) readPump(channelID string) {
	defer func() {
		if c.hub.unregister(channelID, c) {
			// 只有仍然持有註冊的連接才能把玩家踢出房間；
			// 被新連接取代的舊連接不准動新會話的狀態
			c.room.Leave(c.identity.ID)
		}
		c.close()
		c.conn.Close()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket 讀取錯誤",
					"channel_id", channelID,
					"player_id", c.identity.ID,
					"error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg envelope
		if err := json.Unmarshal(message, &msg); err != nil || msg.Event == "" {
			c.SendError(game.CodeInvalidPayload, "無效的訊息格式")
			continue
		}

		c.room.HandleMessage(c.identity.ID, msg.Event, msg.Data)
	}
}

// writePump 寫入訊息到客戶端
//
// 心跳機制（發送端）：每 54 秒發一次 Ping。54 而非 60，
// 是為了避開代理服務器常見的 60 秒超時閾值，留 6 秒余量。
func (c *connection) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，優雅關閉連接
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量送出隊列中的訊息
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
