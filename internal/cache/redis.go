// Package cache содержит обертку над redis, используемую для распределенной блокировки тиков.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/renewal-reminder/internal/config"
)

// ErrLockNotHeld возвращается, когда блокировка истекла или принадлежит другому владельцу.
var ErrLockNotHeld = errors.New("lock is not held by this owner")

// releaseScript удаляет ключ только если значение совпадает с токеном владельца.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Cache struct {
	Db *redis.Client
}

func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// AcquireLock пытается занять ключ key токеном owner на время ttl.
// Возвращает false, если ключ уже занят.
func (c *Cache) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	const op = "cache.AcquireLock"
	ok, err := c.Db.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// ReleaseLock освобождает ключ, если он все еще принадлежит owner.
func (c *Cache) ReleaseLock(ctx context.Context, key, owner string) error {
	const op = "cache.ReleaseLock"
	n, err := releaseScript.Run(ctx, c.Db, []string{key}, owner).Int()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrLockNotHeld)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.Db.Close()
}
