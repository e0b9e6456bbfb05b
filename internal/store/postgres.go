// Package store 實現使用者與頻道設定的 PostgreSQL 存取層
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/virtualspace/internal/auth"
	"github.com/koopa0/virtualspace/internal/game"
)

// Postgres 以 pgx 連接池為後端的存取層
//
// 同時滿足 auth.UserFinder 與 game.ChannelStore：
// 閘門用它解析身份，房間工廠用它查頻道設定。
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres 建立連接池並驗證連線
func NewPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析 postgres 設定: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("建立 postgres 連接池: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres 連線失敗: %w", err)
	}

	return &Postgres{pool: pool, logger: logger}, nil
}

// Close 關閉連接池
func (p *Postgres) Close() {
	p.pool.Close()
}

// EnsureSchema 建立缺少的表結構（冪等）
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL,
			name       TEXT NOT NULL,
			avatar     TEXT NOT NULL DEFAULT '',
			roles      TEXT[] NOT NULL DEFAULT '{user}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS channels (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			map_name   TEXT NOT NULL,
			max_users  INT NOT NULL DEFAULT 30,
			is_active  BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_channels_active ON channels(is_active)`,
	}

	for _, stmt := range ddl {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("建立表結構: %w", err)
		}
	}
	return nil
}

// Exec 執行任意語句，測試播種與維運腳本用
func (p *Postgres) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	return err
}

// FindUser 以 ID 查詢使用者
func (p *Postgres) FindUser(ctx context.Context, id string) (auth.Identity, bool, error) {
	const query = `
		SELECT id, email, name, avatar, roles
		FROM users
		WHERE id = $1`

	var identity auth.Identity
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&identity.ID,
		&identity.Email,
		&identity.Name,
		&identity.Avatar,
		&identity.Roles,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Identity{}, false, nil
		}
		p.logger.Error("查詢使用者失敗", "user_id", id, "error", err)
		return auth.Identity{}, false, fmt.Errorf("查詢使用者: %w", err)
	}
	return identity, true, nil
}

// FindUsers 批量查詢使用者，結果依輸入順序排列；不存在的 ID 靜默略過
func (p *Postgres) FindUsers(ctx context.Context, ids []string) ([]auth.Identity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
		SELECT id, email, name, avatar, roles
		FROM users
		WHERE id = ANY($1)`

	rows, err := p.pool.Query(ctx, query, ids)
	if err != nil {
		p.logger.Error("批量查詢使用者失敗", "count", len(ids), "error", err)
		return nil, fmt.Errorf("批量查詢使用者: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]auth.Identity, len(ids))
	for rows.Next() {
		var identity auth.Identity
		if err := rows.Scan(
			&identity.ID,
			&identity.Email,
			&identity.Name,
			&identity.Avatar,
			&identity.Roles,
		); err != nil {
			return nil, fmt.Errorf("讀取使用者: %w", err)
		}
		byID[identity.ID] = identity
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("批量查詢使用者: %w", err)
	}

	result := make([]auth.Identity, 0, len(byID))
	for _, id := range ids {
		if identity, found := byID[id]; found {
			result = append(result, identity)
		}
	}
	return result, nil
}

// FindChannel 以 ID 查詢頻道設定
func (p *Postgres) FindChannel(ctx context.Context, id string) (game.Channel, bool, error) {
	const query = `
		SELECT id, name, map_name, max_users, is_active
		FROM channels
		WHERE id = $1`

	var channel game.Channel
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&channel.ID,
		&channel.Name,
		&channel.MapName,
		&channel.MaxUsers,
		&channel.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return game.Channel{}, false, nil
		}
		p.logger.Error("查詢頻道失敗", "channel_id", id, "error", err)
		return game.Channel{}, false, fmt.Errorf("查詢頻道: %w", err)
	}
	return channel, true, nil
}
