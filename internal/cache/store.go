package cache

import (
	"context"
	"errors"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<CachePath>/<key[:2]>/<key>.body    # 缩略图正文
//	<CachePath>/<key[:2]>/<key>.meta    # JSON 元数据（内容类型 + TTL 时间戳）
//
// 过期条目在所有读取路径上视为不存在，物理删除由 Sweeper 负责。
type Store interface {
	// Get 返回缓存正文与元数据。条目不存在或已过期时返回 ErrNotFound，
	// 两种情况都会被计为一次 miss；命中会更新 LastAccessedAt 并计为 hit。
	Get(ctx context.Context, key string) (*ReadResult, error)

	// Put 原子写入正文与元数据（临时文件 + rename），失败时清理临时文件。
	// 成功后 entries/totalBytes 计数随之增加。
	Put(ctx context.Context, key string, payload []byte, contentType string, ttl time.Duration) (*Entry, error)

	// Remove 删除正文与元数据，返回是否真正移除了条目。对不存在的 key
	// 幂等返回 false，不报错。
	Remove(ctx context.Context, key string) (bool, error)

	// ListExpired 返回截至 now 已过期的全部 key，供 Sweeper 使用。
	ListExpired(ctx context.Context, now time.Time) ([]string, error)

	// Stats 返回当前计数器快照。
	Stats() Snapshot
}

// Entry 描述一个缓存条目的元数据，仅由 Store 自身修改。
type Entry struct {
	Key            string    `json:"key"`
	ContentType    string    `json:"content_type"`
	SizeBytes      int64     `json:"size_bytes"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired 判断条目在 now 时刻是否已失效。
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// ReadResult 组合 Entry 与正文字节，缩略图体积有限，直接整体载入。
type ReadResult struct {
	Entry   Entry
	Payload []byte
}

// ErrNotFound 表示缓存不存在（含逻辑过期）。
var ErrNotFound = errors.New("cache entry not found")
