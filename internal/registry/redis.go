package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis 以 Redis 為後端的房間目錄
//
// 鍵的佈局：
//   - {prefix}:channel:{channelID} - 該頻道房間的 Metadata（JSON）
//   - {prefix}:channels            - 進行中頻道 ID 的集合（供 List 使用）
//
// 為什麼用 Lua 腳本？
//   預約需要「SETNX + SADD」兩個操作，釋放需要「比對 roomID + DEL + SREM」
//   三個操作。拆開執行會在操作之間留下競態窗口，Lua 腳本讓整段邏輯
//   在 Redis 端原子執行。
type Redis struct {
	client *redis.Client
	prefix string
}

// reserveScript 原子預約：頻道鍵不存在才寫入，並登記到頻道集合
//
// KEYS[1]: 頻道鍵
// KEYS[2]: 頻道集合鍵
// ARGV[1]: Metadata JSON
// ARGV[2]: channelID
var reserveScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("SADD", KEYS[2], ARGV[2])
return 1
`)

// releaseScript 原子釋放：只有 roomID 相符時才刪除
//
// KEYS[1]: 頻道鍵
// KEYS[2]: 頻道集合鍵
// ARGV[1]: roomID
// ARGV[2]: channelID
var releaseScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return 0
end
local meta = cjson.decode(raw)
if meta.room_id ~= ARGV[1] then
	return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[2])
return 1
`)

// NewRedis 創建 Redis 房間目錄
func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client: client,
		prefix: "virtualspace",
	}
}

func (r *Redis) channelKey(channelID string) string {
	return fmt.Sprintf("%s:channel:%s", r.prefix, channelID)
}

func (r *Redis) setKey() string {
	return r.prefix + ":channels"
}

// Reserve 原子性預約頻道
func (r *Redis) Reserve(ctx context.Context, meta Metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("序列化房間元資料: %w", err)
	}

	ok, err := reserveScript.Run(ctx, r.client,
		[]string{r.channelKey(meta.ChannelID), r.setKey()},
		raw, meta.ChannelID,
	).Int()
	if err != nil {
		return fmt.Errorf("預約頻道: %w", err)
	}
	if ok == 0 {
		return ErrDuplicateRoom
	}
	return nil
}

// Release 釋放頻道預約
func (r *Redis) Release(ctx context.Context, channelID, roomID string) error {
	err := releaseScript.Run(ctx, r.client,
		[]string{r.channelKey(channelID), r.setKey()},
		roomID, channelID,
	).Err()
	if err != nil {
		return fmt.Errorf("釋放頻道: %w", err)
	}
	return nil
}

// Get 查詢頻道目前的房間
func (r *Redis) Get(ctx context.Context, channelID string) (Metadata, bool, error) {
	raw, err := r.client.Get(ctx, r.channelKey(channelID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Metadata{}, false, nil
		}
		return Metadata{}, false, fmt.Errorf("查詢頻道: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, false, fmt.Errorf("解析房間元資料: %w", err)
	}
	return meta, true, nil
}

// List 列出所有進行中的房間
func (r *Redis) List(ctx context.Context) ([]Metadata, error) {
	channelIDs, err := r.client.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("列出頻道: %w", err)
	}

	result := make([]Metadata, 0, len(channelIDs))
	for _, channelID := range channelIDs {
		meta, exists, err := r.Get(ctx, channelID)
		if err != nil {
			return nil, err
		}
		if !exists {
			// 集合成員與頻道鍵可能短暫不一致，順手清掉殘留
			r.client.SRem(ctx, r.setKey(), channelID)
			continue
		}
		result = append(result, meta)
	}
	return result, nil
}
