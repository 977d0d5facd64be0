package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// versionField 哈希内保留的版本号字段
const versionField = "__v"

// casScript 版本检查与写入必须在Redis侧原子完成，
// 否则两个并发写入者都会看到旧版本并双双成功。
var casScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], '__v')
if v == false then v = '0' end
if v ~= ARGV[1] then return 0 end
for i = 3, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
redis.call('HSET', KEYS[1], '__v', tonumber(ARGV[1]) + 1)
if tonumber(ARGV[2]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// RedisCache is a Redis-based cache implementation.
type RedisCache struct {
	client  *redis.Client
	options *CacheOptions
}

// NewRedisCache creates a new Redis-backed cache around an existing client.
func NewRedisCache(client *redis.Client, opts *CacheOptions) *RedisCache {
	if opts == nil {
		opts = &CacheOptions{
			DefaultTTL: 5 * time.Minute,
		}
	}

	return &RedisCache{
		client:  client,
		options: opts,
	}
}

// makeKey 生成带前缀的键
func (c *RedisCache) makeKey(key string) string {
	if c.options.KeyPrefix != "" {
		return fmt.Sprintf("%s:%s", c.options.KeyPrefix, key)
	}
	return key
}

// Get gets a value from cache.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.makeKey(key)).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	return val, err
}

// Set sets a value in cache with TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.options.DefaultTTL
	}
	return c.client.Set(ctx, c.makeKey(key), value, ttl).Err()
}

// Delete deletes a key from cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.makeKey(key)).Err()
}

// Exists checks if a key exists in cache.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, c.makeKey(key)).Result()
	return result > 0, err
}

// Incr 自增
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, c.makeKey(key)).Result()
}

// Expire 设置过期时间
func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, c.makeKey(key), ttl).Err()
}

// TTL 获取剩余过期时间
func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.client.TTL(ctx, c.makeKey(key)).Result()
}

// GetVersioned 读取哈希字段及版本号
func (c *RedisCache) GetVersioned(ctx context.Context, key string) (map[string]string, int64, error) {
	fields, err := c.client.HGetAll(ctx, c.makeKey(key)).Result()
	if err != nil {
		return nil, 0, err
	}
	if len(fields) == 0 {
		return nil, 0, ErrKeyNotFound
	}

	version, err := strconv.ParseInt(fields[versionField], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("cache: malformed version for %s: %w", key, err)
	}
	delete(fields, versionField)

	return fields, version, nil
}

// PutVersioned 无条件写入，版本号重置为1
func (c *RedisCache) PutVersioned(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	k := c.makeKey(key)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		args := make([]interface{}, 0, len(fields)*2+2)
		for f, v := range fields {
			args = append(args, f, v)
		}
		args = append(args, versionField, "1")
		pipe.HSet(ctx, k, args...)
		if ttl > 0 {
			pipe.Expire(ctx, k, ttl)
		}
		return nil
	})
	return err
}

// CompareAndSwap 版本匹配时写入字段并递增版本号
func (c *RedisCache) CompareAndSwap(ctx context.Context, key string, version int64, fields map[string]string, ttl time.Duration) error {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, strconv.FormatInt(version, 10), strconv.FormatInt(ttl.Milliseconds(), 10))
	for f, v := range fields {
		args = append(args, f, v)
	}

	ok, err := casScript.Run(ctx, c.client, []string{c.makeKey(key)}, args...).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrCASConflict
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
