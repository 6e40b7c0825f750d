package lock

import (
	"context"
	"errors"
	"time"
)

// 默认锁过期时间
const DefaultTTL = 30 * time.Second

// ErrNotAcquired 等待超时仍未获得锁
var ErrNotAcquired = errors.New("未能获取锁")

// Locker 基于租约的互斥锁
//
// Acquire 在键不存在时原子地写入随机令牌并设置过期时间，键已存在时返回 ok=false，
// 不阻塞也不重试。Release 只在当前值等于 token 时删除键，令牌不匹配时不做任何修改。
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) (released bool, err error)
}

// Wait 轮询获取锁，直到成功或ctx结束
func Wait(ctx context.Context, l Locker, key string, ttl, interval time.Duration) (string, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		token, ok, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}

		select {
		case <-ctx.Done():
			return "", ErrNotAcquired
		case <-ticker.C:
		}
	}
}
