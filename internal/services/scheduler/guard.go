package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Guard не дает двум тикам выполняться одновременно.
type Guard interface {
	// TryLock занимает guard. false без ошибки означает, что тик уже идет.
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// MutexGuard защищает от наложения тиков внутри одного процесса.
type MutexGuard struct {
	mu sync.Mutex
}

func (g *MutexGuard) TryLock(context.Context) (bool, error) {
	return g.mu.TryLock(), nil
}

func (g *MutexGuard) Unlock(context.Context) error {
	g.mu.Unlock()
	return nil
}

// Locker распределенная блокировка с владельцем и сроком жизни.
// Ей удовлетворяет *cache.Cache.
type Locker interface {
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

// DefaultLockKey ключ redis, под которым хранится блокировка тика.
const DefaultLockKey = "renewal-reminder:tick"

// RedisGuard блокировка тика через SET NX с TTL. TTL должен быть больше
// максимальной длительности тика, иначе блокировка истечет во время работы.
type RedisGuard struct {
	locker Locker
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	owner string
}

// NewRedisGuard создает новый экземпляр RedisGuard.
func NewRedisGuard(locker Locker, key string, ttl time.Duration) *RedisGuard {
	if key == "" {
		key = DefaultLockKey
	}
	return &RedisGuard{locker: locker, key: key, ttl: ttl}
}

func (g *RedisGuard) TryLock(ctx context.Context) (bool, error) {
	const op = "scheduler.RedisGuard.TryLock"

	owner := uuid.NewString()
	ok, err := g.locker.AcquireLock(ctx, g.key, owner, g.ttl)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return false, nil
	}
	g.mu.Lock()
	g.owner = owner
	g.mu.Unlock()
	return true, nil
}

func (g *RedisGuard) Unlock(ctx context.Context) error {
	const op = "scheduler.RedisGuard.Unlock"

	g.mu.Lock()
	owner := g.owner
	g.owner = ""
	g.mu.Unlock()
	if owner == "" {
		return fmt.Errorf("%s: guard is not locked", op)
	}
	if err := g.locker.ReleaseLock(ctx, g.key, owner); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
