package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss 缓存未命中或已过期
var ErrMiss = errors.New("cache miss")

// Provider 缓存接口，值以 JSON 存储
type Provider interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// SetNX 仅在 key 不存在时写入，返回是否写入成功
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	// CompareAndDelete 仅当当前值等于 value 时删除，返回是否删除
	CompareAndDelete(ctx context.Context, key string, value any) (bool, error)
	// CompareAndExpire 仅当当前值等于 value 时重设过期时间，返回是否仍持有
	CompareAndExpire(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Close() error
}
