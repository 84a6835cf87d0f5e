// Package lock 提供排班生成与人工调整使用的互斥锁
//
// 单实例部署使用进程内锁；多实例部署使用 Redis 锁，键与语义相同。
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLocked 锁已被其他持有者占用
var ErrLocked = errors.New("lock: already held")

// Release 释放锁；只会释放本次获得的锁
type Release func(ctx context.Context) error

// Locker 互斥锁
type Locker interface {
	// TryLock 尝试获取锁，被占用时立即返回 ErrLocked
	TryLock(ctx context.Context, key string, ttl time.Duration) (Release, error)

	// Held 锁当前是否被持有
	Held(ctx context.Context, key string) (bool, error)
}

// GenerationKey 科室月份的自动排班锁
func GenerationKey(departmentID uuid.UUID, month string) string {
	return fmt.Sprintf("nurseshift:generate:%s:%s", departmentID, month)
}

// RosterKey 科室排班写锁
//
// 人员的重叠与连续班次跨越班次和日期，人工调整与自动生成在检查资格到写入期间都持有此锁。
func RosterKey(departmentID uuid.UUID) string {
	return fmt.Sprintf("nurseshift:roster:%s", departmentID)
}

// Acquire 在 wait 时间内重试获取锁
func Acquire(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (Release, error) {
	deadline := time.Now().Add(wait)
	backoff := 20 * time.Millisecond
	for {
		release, err := l.TryLock(ctx, key, ttl)
		if !errors.Is(err, ErrLocked) {
			return release, err
		}
		if time.Now().Add(backoff).After(deadline) {
			return nil, ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

func newToken() string {
	return uuid.NewString()
}
