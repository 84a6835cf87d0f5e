package lock

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// 只删除自己持有的锁
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions Redis 连接参数
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient 创建 Redis 连接并执行 Ping 健康检查
func NewRedisClient(ctx context.Context, opts RedisOptions) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}
	return rdb, nil
}

// RedisLocker 基于 SET NX 的分布式锁
type RedisLocker struct {
	rdb goredis.UniversalClient
}

// NewRedisLocker 创建 Redis 锁
func NewRedisLocker(rdb goredis.UniversalClient) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// TryLock 实现 Locker
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	token := newToken()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("获取锁 %s 失败: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func(ctx context.Context) error {
		if err := unlockScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && err != goredis.Nil {
			return fmt.Errorf("释放锁 %s 失败: %w", key, err)
		}
		return nil
	}, nil
}

// Held 实现 Locker
func (l *RedisLocker) Held(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("查询锁 %s 失败: %w", key, err)
	}
	return n > 0, nil
}
