package game

import (
	"errors"
	"fmt"
)

// 房間創建階段的致命錯誤：任何一個都會在房間可加入之前銷毀房間
var (
	// ErrChannelNotFound 頻道不存在
	ErrChannelNotFound = errors.New("頻道不存在")
	// ErrChannelInactive 頻道未啟用
	ErrChannelInactive = errors.New("頻道未啟用")
	// ErrRoomFull 房間人數已達上限
	ErrRoomFull = errors.New("房間已滿")
	// ErrRoomClosed 房間已銷毀，不再接受操作
	ErrRoomClosed = errors.New("房間已關閉")
)

// 訊息處理錯誤碼，隨錯誤回覆送回單一客戶端
const (
	CodeUnauthorized   = 401
	CodeInvalidToken   = 403
	CodePlayerNotFound = 404
	CodeInvalidPayload = 422
	CodeInternal       = 500
)

// GameError 可辨識的遊戲內錯誤
//
// 訊息處理器拋出 GameError 時，路由層會把 (code, message) 回覆給
// 發送訊息的客戶端；房間本身不受影響，繼續服務其他客戶端。
type GameError struct {
	Code    int
	Message string
}

// Error 實現 error 介面
func (e *GameError) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// NewGameError 創建遊戲內錯誤
func NewGameError(code int, message string) *GameError {
	return &GameError{Code: code, Message: message}
}

// 預定義遊戲內錯誤
var (
	// ErrUnauthorized 使用者未授權
	ErrUnauthorized = NewGameError(CodeUnauthorized, "未授權的使用者")
	// ErrPlayerNotFound 找不到玩家
	ErrPlayerNotFound = NewGameError(CodePlayerNotFound, "找不到玩家")
	// ErrInvalidPayload 訊息格式錯誤
	ErrInvalidPayload = NewGameError(CodeInvalidPayload, "無效的訊息格式")
)
