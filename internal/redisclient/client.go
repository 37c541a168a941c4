package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"fulfillment-service/internal/apperror"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/reserve_stock.lua
var reserveStockScript string

//go:embed scripts/release_stock.lua
var releaseStockScript string

//go:embed scripts/unlock.lua
var unlockScript string

type Client struct {
	rdb           *redis.Client
	reserveScript *redis.Script
	releaseScript *redis.Script
	unlockScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return NewClientWithRedis(rdb), nil
}

// NewClientWithRedis wraps an existing connection
func NewClientWithRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:           rdb,
		reserveScript: redis.NewScript(reserveStockScript),
		releaseScript: redis.NewScript(releaseStockScript),
		unlockScript:  redis.NewScript(unlockScript),
	}
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func inventoryKey(articleID int64) string {
	return fmt.Sprintf("inventory:%d", articleID)
}

// ReserveStock atomically checks and decrements stock using a Lua script
func (c *Client) ReserveStock(ctx context.Context, articleID int64, quantity int) error {
	result, err := c.reserveScript.Run(ctx, c.rdb, []string{inventoryKey(articleID)}, quantity).Result()
	if err != nil {
		return apperror.Persistence("reserve stock script", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return apperror.Persistence("reserve stock script", fmt.Errorf("unexpected script result %v", result))
	}
	status, _ := values[0].(int64)
	stock, _ := values[1].(int64)

	switch status {
	case 1:
		return nil
	case 0:
		return &apperror.InsufficientStockError{
			ArticleID: articleID,
			Requested: quantity,
			Available: int(stock),
		}
	default:
		return apperror.ErrArticleNotFound.WithDetail("article %d", articleID)
	}
}

// ReleaseStock atomically returns stock using a Lua script
func (c *Client) ReleaseStock(ctx context.Context, articleID int64, quantity int) error {
	result, err := c.releaseScript.Run(ctx, c.rdb, []string{inventoryKey(articleID)}, quantity).Int64()
	if err != nil {
		return apperror.Persistence("release stock script", err)
	}
	if result < 0 {
		return apperror.ErrArticleNotFound.WithDetail("article %d", articleID)
	}
	return nil
}

// GetStock reads the current stock of an article
func (c *Client) GetStock(ctx context.Context, articleID int64) (int, error) {
	val, err := c.rdb.HGet(ctx, inventoryKey(articleID), "stock").Result()
	if errors.Is(err, redis.Nil) {
		return 0, apperror.ErrArticleNotFound.WithDetail("article %d", articleID)
	}
	if err != nil {
		return 0, apperror.Persistence("get stock", err)
	}

	stock, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperror.Persistence("parse stock", err)
	}
	return stock, nil
}

// InitInventory seeds the stock counter of an article. An existing counter is
// left untouched so outstanding reservations survive a restart.
func (c *Client) InitInventory(ctx context.Context, articleID int64, stock int) error {
	if err := c.rdb.HSetNX(ctx, inventoryKey(articleID), "stock", stock).Err(); err != nil {
		return apperror.Persistence("init inventory", err)
	}
	return nil
}
