package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies connectivity
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// CacheProduct stores a product snapshot with TTL
func (c *Client) CacheProduct(ctx context.Context, productID int64, product interface{}, ttl time.Duration) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("product:%d", productID), data, ttl).Err()
}

// GetCachedProduct retrieves a cached product. Returns nil on miss.
func (c *Client) GetCachedProduct(ctx context.Context, productID int64) (*models.Product, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("product:%d", productID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// InvalidateProduct drops a product from the cache
func (c *Client) InvalidateProduct(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf("product:%d", productID)).Err()
}

const visitorKeyTTL = 30 * 24 * time.Hour

// RecordVisit counts one request for the day and folds the client address
// into the day's unique-visitor HyperLogLog.
func (c *Client) RecordVisit(ctx context.Context, day, clientAddr string) error {
	hitsKey := fmt.Sprintf("visitors:hits:%s", day)
	uniqueKey := fmt.Sprintf("visitors:unique:%s", day)

	pipe := c.rdb.Pipeline()
	pipe.Incr(ctx, hitsKey)
	pipe.Expire(ctx, hitsKey, visitorKeyTTL)
	pipe.PFAdd(ctx, uniqueKey, clientAddr)
	pipe.Expire(ctx, uniqueKey, visitorKeyTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// GetVisitorDay retrieves one day of visitor counters
func (c *Client) GetVisitorDay(ctx context.Context, day string) (models.VisitorDay, error) {
	hits, err := c.rdb.Get(ctx, fmt.Sprintf("visitors:hits:%s", day)).Int64()
	if err != nil && err != redis.Nil {
		return models.VisitorDay{}, err
	}

	uniques, err := c.rdb.PFCount(ctx, fmt.Sprintf("visitors:unique:%s", day)).Result()
	if err != nil {
		return models.VisitorDay{}, err
	}

	return models.VisitorDay{Date: day, Hits: hits, Uniques: uniques}, nil
}

// IncrSales bumps the day's order count and revenue counters
func (c *Client) IncrSales(ctx context.Context, day string, amount int64) error {
	ordersKey := fmt.Sprintf("sales:orders:%s", day)
	revenueKey := fmt.Sprintf("sales:revenue:%s", day)

	pipe := c.rdb.Pipeline()
	pipe.Incr(ctx, ordersKey)
	pipe.Expire(ctx, ordersKey, visitorKeyTTL)
	pipe.IncrBy(ctx, revenueKey, amount)
	pipe.Expire(ctx, revenueKey, visitorKeyTTL)

	_, err := pipe.Exec(ctx)
	return err
}
