package lock

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	token   string
	expires time.Time
}

// LocalLocker 进程内锁，过期的锁视为未持有
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]localEntry), now: time.Now}
}

// TryLock 实现 Locker
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.entries[key]; ok && now.Before(e.expires) {
		return nil, ErrLocked
	}
	token := newToken()
	l.entries[key] = localEntry{token: token, expires: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.entries[key]; ok && e.token == token {
			delete(l.entries, key)
		}
		return nil
	}, nil
}

// Held 实现 Locker
func (l *LocalLocker) Held(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return ok && l.now().Before(e.expires), nil
}
