// Package redis implements the marketplace's presence tracking, bid rate
// limiting, event fan-out and job locking on go-redis/v9.
//
// Every key this package writes lives under the client's namespace
// ("auction" by default), so several marketplaces can share one Redis:
//
//	{ns}:presence:{actorID}
//	{ns}:ratelimit:{key}
//	{ns}:lock:{name}
//
// Pub/Sub channels and streams keep their domain names unprefixed.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes keys when ClientConfig.Namespace is empty.
const DefaultNamespace = "auction"

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	Namespace  string
}

// Client is a namespaced go-redis connection shared by the components in this
// package.
type Client struct {
	rdb *redis.Client
	ns  string
}

// New connects, names the connection after the namespace so it shows up in
// CLIENT LIST, and pings the server.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	ns := namespace(cfg.Namespace)
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
		ClientName: ns + "-auctionhouse",
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	c := &Client{rdb: redis.NewClient(opts), ns: ns}
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}
	return c, nil
}

// NewFromRedis wraps an existing go-redis client under namespace ns.
func NewFromRedis(rdb *redis.Client, ns string) *Client {
	return &Client{rdb: rdb, ns: namespace(ns)}
}

func namespace(ns string) string {
	ns = strings.Trim(ns, ": ")
	if ns == "" {
		return DefaultNamespace
	}
	return ns
}

// key joins parts under the client's namespace.
func (c *Client) key(parts ...string) string {
	return c.ns + ":" + strings.Join(parts, ":")
}

// Ping reports whether Redis answers; it backs the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping %s: %w", c.rdb.Options().Addr, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
