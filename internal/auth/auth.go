// Package auth 實作連線閘門：在連線建立時驗證憑證並解析身份。
//
// 閘門對每條連線只執行一次，且在任何房間狀態被觸碰之前完成。
// 驗證失敗一律拒絕連線，不重試——客戶端必須帶新憑證重連。
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// 閘門拒絕連線的原因
var (
	// ErrMissingToken 未攜帶憑證
	ErrMissingToken = errors.New("缺少憑證")
	// ErrInvalidToken 憑證格式錯誤、簽章不符或已過期
	ErrInvalidToken = errors.New("無效的憑證")
	// ErrUnknownIdentity 憑證有效但對應的使用者不存在
	ErrUnknownIdentity = errors.New("找不到使用者")
)

// RoleUser 一般使用者角色
const RoleUser = "user"

// Identity 通過驗證後附加在連線上的最小身份記錄
//
// 連線存續期間唯讀。
type Identity struct {
	ID     string   `json:"id"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Avatar string   `json:"avatar"`
	Roles  []string `json:"roles"`
}

// UserFinder 身份存取介面
type UserFinder interface {
	FindUser(ctx context.Context, id string) (Identity, bool, error)
}

// Claims JWT 負載
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Gate 連線閘門
type Gate struct {
	secret []byte
	users  UserFinder
}

// NewGate 創建連線閘門
func NewGate(secret []byte, users UserFinder) *Gate {
	return &Gate{
		secret: secret,
		users:  users,
	}
}

// Authenticate 驗證憑證並解析為身份記錄
//
// 驗證順序：
//  1. 憑證存在性
//  2. 簽章與過期時間（HS256）
//  3. 身份存在性（外部身份存取）
func (g *Gate) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非預期的簽章演算法: %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	identity, exists, err := g.users.FindUser(ctx, claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("查詢使用者: %w", err)
	}
	if !exists {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnknownIdentity, claims.Subject)
	}

	return identity, nil
}
