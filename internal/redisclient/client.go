package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/internal/service"

	"github.com/go-redis/redis/v8"
)

// Client caches sale lookups and the scan-enabled flag. Customers poll
// their code every few seconds, so even a two-second TTL keeps almost all
// of that traffic off Postgres.
type Client struct {
	rdb     *redis.Client
	saleTTL time.Duration
	flagTTL time.Duration
}

// NewClient creates a new redis-backed status cache
func NewClient(addr, password string, db int, saleTTL time.Duration) (*Client, error) {
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

	return &Client{
		rdb:     rdb,
		saleTTL: saleTTL,
		flagTTL: 10 * time.Second,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func saleKey(code string) string {
	return fmt.Sprintf("sale:%s", code)
}

const scanFlagKey = "settings:scan_enabled"

// GetSale returns the cached lookup view for a code, or nil on a miss.
func (c *Client) GetSale(ctx context.Context, code string) (*service.SaleView, error) {
	data, err := c.rdb.Get(ctx, saleKey(code)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var view service.SaleView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("failed to decode cached sale: %w", err)
	}
	return &view, nil
}

// SetSale caches a lookup view under its public code.
func (c *Client) SetSale(ctx context.Context, code string, view *service.SaleView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to encode sale for cache: %w", err)
	}
	return c.rdb.Set(ctx, saleKey(code), data, c.saleTTL).Err()
}

// InvalidateSale drops the cached view so the next poll sees the
// transition immediately instead of after the TTL.
func (c *Client) InvalidateSale(ctx context.Context, code string) error {
	return c.rdb.Del(ctx, saleKey(code)).Err()
}

// GetScanEnabled returns the cached self-checkout flag; ok is false on a
// cache miss.
func (c *Client) GetScanEnabled(ctx context.Context) (enabled, ok bool, err error) {
	val, err := c.rdb.Get(ctx, scanFlagKey).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

// SetScanEnabled caches the self-checkout flag.
func (c *Client) SetScanEnabled(ctx context.Context, enabled bool) error {
	val := "0"
	if enabled {
		val = "1"
	}
	return c.rdb.Set(ctx, scanFlagKey, val, c.flagTTL).Err()
}
