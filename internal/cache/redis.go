package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions Redis连接参数
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

var (
	compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	compareAndExpire = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisProvider 基于Redis的缓存
type RedisProvider struct {
	rdb *redis.Client
}

// NewRedisProvider 初始化Redis连接并检测连通性
func NewRedisProvider(ctx context.Context, opts RedisOptions) (*RedisProvider, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// 测试连接
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}
	return &RedisProvider{rdb: rdb}, nil
}

// NewRedisProviderFromClient 复用已有客户端
func NewRedisProviderFromClient(rdb *redis.Client) *RedisProvider {
	return &RedisProvider{rdb: rdb}
}

// Client 获取Redis客户端
func (p *RedisProvider) Client() *redis.Client {
	return p.rdb
}

// Get 获取缓存
func (p *RedisProvider) Get(ctx context.Context, key string, dest any) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("Redis未初始化")
	}

	data, err := p.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set 设置缓存
func (p *RedisProvider) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("Redis未初始化")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, key, data, expiration).Err()
}

// SetNX 不存在时设置
func (p *RedisProvider) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	if p == nil || p.rdb == nil {
		return false, fmt.Errorf("Redis未初始化")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return p.rdb.SetNX(ctx, key, data, expiration).Result()
}

// Delete 删除缓存
func (p *RedisProvider) Delete(ctx context.Context, key string) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("Redis未初始化")
	}
	return p.rdb.Del(ctx, key).Err()
}

// CompareAndDelete 值匹配时删除
func (p *RedisProvider) CompareAndDelete(ctx context.Context, key string, value any) (bool, error) {
	if p == nil || p.rdb == nil {
		return false, fmt.Errorf("Redis未初始化")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	n, err := compareAndDelete.Run(ctx, p.rdb, []string{key}, data).Int()
	return n == 1, err
}

// CompareAndExpire 值匹配时刷新过期时间
func (p *RedisProvider) CompareAndExpire(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	if p == nil || p.rdb == nil {
		return false, fmt.Errorf("Redis未初始化")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	n, err := compareAndExpire.Run(ctx, p.rdb, []string{key}, data, expiration.Milliseconds()).Int()
	return n == 1, err
}

// Close 关闭Redis连接
func (p *RedisProvider) Close() error {
	if p != nil && p.rdb != nil {
		return p.rdb.Close()
	}
	return nil
}
