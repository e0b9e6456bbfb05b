package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/koopa0/virtualspace/internal/auth"
	"github.com/koopa0/virtualspace/internal/registry"
)

// UserLister 批量查詢使用者的介面（房間成員名單 API 用）
type UserLister interface {
	FindUsers(ctx context.Context, ids []string) ([]auth.Identity, error)
}

// Handler 房間探索與監控的 HTTP 處理器
type Handler struct {
	hub      *Hub
	registry registry.Registry
	users    UserLister
	logger   *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(hub *Hub, reg registry.Registry, users UserLister, logger *slog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		registry: reg,
		users:    users,
		logger:   logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// 中間件鏈
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	// WebSocket 接入
	mux.HandleFunc("GET /ws/channels/{channel_id}", h.recoverer(h.hub.ServeWS))

	// 房間探索 API
	mux.HandleFunc("GET /api/v1/rooms", wrap(h.listRooms))
	mux.HandleFunc("GET /api/v1/rooms/{channel_id}", wrap(h.getRoom))
	mux.HandleFunc("GET /api/v1/rooms/{channel_id}/users", wrap(h.roomUsers))

	// 健康檢查
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))

	return mux
}

// listRooms 列出所有進行中的房間
func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.Error("查詢房間目錄失敗", "error", err)
		h.errorResponse(w, "查詢房間目錄失敗", http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]any{
		"rooms": rooms,
		"total": len(rooms),
	}, http.StatusOK)
}

// getRoom 查詢頻道目前的房間
func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channel_id")

	meta, found, err := h.registry.Get(r.Context(), channelID)
	if err != nil {
		h.logger.Error("查詢房間失敗", "channel_id", channelID, "error", err)
		h.errorResponse(w, "查詢房間失敗", http.StatusInternalServerError)
		return
	}
	if !found {
		h.errorResponse(w, "頻道沒有進行中的房間", http.StatusNotFound)
		return
	}

	response := map[string]any{
		"room": meta,
	}
	if room, local := h.hub.Room(channelID); local {
		response["players"] = room.PlayerCount()
	}

	h.jsonResponse(w, response, http.StatusOK)
}

// roomUsers 列出房間目前的成員
//
// 成員名單只有持有房間的程序知道；房間在別的程序時回 404，
// 探索方應改問該程序。
func (h *Handler) roomUsers(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("channel_id")

	room, local := h.hub.Room(channelID)
	if !local {
		h.errorResponse(w, "頻道沒有進行中的房間", http.StatusNotFound)
		return
	}

	identities, err := h.users.FindUsers(r.Context(), room.PlayerIDs())
	if err != nil {
		h.logger.Error("查詢成員名單失敗", "channel_id", channelID, "error", err)
		h.errorResponse(w, "查詢成員名單失敗", http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, map[string]any{
		"users": identities,
		"total": len(identities),
	}, http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	connections := h.hub.ConnectionCount()

	total := 0
	for _, count := range connections {
		total += count
	}

	h.jsonResponse(w, map[string]any{
		"channels":          connections,
		"total_connections": total,
	}, http.StatusOK)
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, map[string]any{
		"error": message,
	}, status)
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.Info("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, "內部伺服器錯誤", http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
