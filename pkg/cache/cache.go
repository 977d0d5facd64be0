package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCASConflict 版本冲突，调用方应重读后重试
	ErrCASConflict = errors.New("cache: version conflict")
	// ErrKeyNotFound 键不存在
	ErrKeyNotFound = errors.New("cache: key not found")
)

// Cache 缓存接口
type Cache interface {
	// Get 获取缓存值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置缓存值
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Incr 自增
	Incr(ctx context.Context, key string) (int64, error)

	// Expire 设置过期时间
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL 获取剩余过期时间
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Close 关闭连接
	Close() error
}

// VersionedCache 带版本令牌的哈希缓存，是乐观并发控制的基础原语。
// 每个键对应一个字段哈希和一个单调递增的版本号；CompareAndSwap
// 仅在版本未变时写入。
type VersionedCache interface {
	Cache

	// GetVersioned 读取哈希字段及当前版本号
	GetVersioned(ctx context.Context, key string) (map[string]string, int64, error)

	// PutVersioned 无条件写入并将版本号置为1（初始化/迁移用）
	PutVersioned(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error

	// CompareAndSwap 仅当版本号等于version时写入fields并将版本号加1。
	// 版本不匹配返回ErrCASConflict。
	CompareAndSwap(ctx context.Context, key string, version int64, fields map[string]string, ttl time.Duration) error
}

// CacheOptions 缓存选项
type CacheOptions struct {
	// 默认过期时间
	DefaultTTL time.Duration

	// 键前缀
	KeyPrefix string
}
