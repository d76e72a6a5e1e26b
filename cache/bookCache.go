package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kariqs/readpage-api/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BookCache fronts single-book reads. Failures are logged and reported as
// misses so the database stays the source of truth.
type BookCache interface {
	Get(ctx context.Context, id uint) (*models.Book, bool)
	Set(ctx context.Context, book *models.Book)
	Invalidate(ctx context.Context, id uint)
}

func bookKey(id uint) string {
	return fmt.Sprintf("book:%d", id)
}

func Connect(addr, password string, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", addr))
	return rdb, nil
}

type RedisBookCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisBookCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisBookCache {
	return &RedisBookCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *RedisBookCache) Get(ctx context.Context, id uint) (*models.Book, bool) {
	data, err := c.rdb.Get(ctx, bookKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read book from cache", zap.Uint("book_id", id), zap.Error(err))
		}
		return nil, false
	}

	var book models.Book
	if err := json.Unmarshal(data, &book); err != nil {
		c.logger.Warn("Discarding corrupt cached book", zap.Uint("book_id", id), zap.Error(err))
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &book, true
}

func (c *RedisBookCache) Set(ctx context.Context, book *models.Book) {
	data, err := json.Marshal(book)
	if err != nil {
		c.logger.Warn("Failed to encode book for cache", zap.Uint("book_id", book.ID), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, bookKey(book.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache book", zap.Uint("book_id", book.ID), zap.Error(err))
	}
}

func (c *RedisBookCache) Invalidate(ctx context.Context, id uint) {
	if err := c.rdb.Del(ctx, bookKey(id)).Err(); err != nil {
		c.logger.Warn("Failed to invalidate cached book", zap.Uint("book_id", id), zap.Error(err))
	}
}

// NoopBookCache is used when no Redis address is configured.
type NoopBookCache struct{}

func (NoopBookCache) Get(context.Context, uint) (*models.Book, bool) { return nil, false }
func (NoopBookCache) Set(context.Context, *models.Book)              {}
func (NoopBookCache) Invalidate(context.Context, uint)               {}
