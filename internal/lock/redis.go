package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript 比较令牌后删除，保证检查和删除是一个原子操作
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

type redisCmdable interface {
	goredis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
}

// RedisLocker Redis单节点租约锁
type RedisLocker struct {
	client redisCmdable
	prefix string
}

// NewRedisLocker 创建Redis锁，prefix 为所有锁键的命名空间前缀
func NewRedisLocker(client redisCmdable, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// Acquire SET key token NX PX ttl
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("获取锁失败: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release 令牌匹配时删除锁
func (l *RedisLocker) Release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("释放锁失败: %w", err)
	}
	return n == 1, nil
}
