package game

// 客戶端 → 服務器的意圖
const (
	// EventMove 移動 {x, y}
	EventMove = "move"
	// EventCurrentZone 回報當前區域 {zoneId}
	EventCurrentZone = "current_zone"
	// EventDoorTrigger 觸發門 {zoneId}
	EventDoorTrigger = "door_trigger"
)

// 服務器 → 客戶端的事件
const (
	// EventInitUsers 加入時的既有玩家名冊
	EventInitUsers = "init_users"
	// EventPlayerJoined 玩家加入
	EventPlayerJoined = "player_joined"
	// EventPlayerLeft 玩家離開
	EventPlayerLeft = "player_left"
	// EventMessage 資訊性訊息（僅發給單一客戶端）
	EventMessage = "message"
	// EventDoorRing 門鈴廣播
	EventDoorRing = "door_ring"
	// EventStatePatch 增量狀態同步
	EventStatePatch = "state_patch"
	// EventError 錯誤回覆（僅發給肇事的客戶端）
	EventError = "error"
)

// MovePayload 移動意圖的負載
type MovePayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ZonePayload 區域相關意圖的負載
type ZonePayload struct {
	ZoneID int `json:"zoneId"`
}

// ChannelUser 玩家的對外表示（名冊與加入事件用）
type ChannelUser struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	Avatar        string  `json:"avatar"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	CurrentZoneID int     `json:"currentZoneId"`
}

// PlayerLeftPayload 玩家離開事件的負載
type PlayerLeftPayload struct {
	ID string `json:"id"`
}

// MessagePayload 資訊性訊息的負載
type MessagePayload struct {
	Message string `json:"message"`
}

// DoorRingPayload 門鈴事件的負載
type DoorRingPayload struct {
	ZoneID int    `json:"zoneId"`
	By     string `json:"by"`
}

// ErrorPayload 錯誤回覆的負載
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
