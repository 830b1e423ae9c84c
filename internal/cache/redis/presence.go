package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

const defaultPresenceTTL = 5 * time.Minute

// Presence implements domain.PresenceTracker with one expiring key per online
// actor. A client that stops refreshing its presence drops offline once the
// TTL lapses, so a crashed session never keeps receiving online deliveries.
//
// Key schema:
//
//	{ns}:presence:{actorID} - "1" with TTL
type Presence struct {
	c   *Client
	rdb *redis.Client
	ttl time.Duration
}

// NewPresence creates a Presence. A non-positive ttl defaults to five minutes.
func NewPresence(c *Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	return &Presence{c: c, rdb: c.rdb, ttl: ttl}
}

func (p *Presence) presenceKey(actorID string) string { return p.c.key("presence", actorID) }

// MarkOnline marks the actor reachable, or refreshes the TTL if already online.
func (p *Presence) MarkOnline(ctx context.Context, actorID string) error {
	if err := p.rdb.Set(ctx, p.presenceKey(actorID), "1", p.ttl).Err(); err != nil {
		return fmt.Errorf("redis: mark %s online: %w", actorID, err)
	}
	return nil
}

func (p *Presence) MarkOffline(ctx context.Context, actorID string) error {
	if err := p.rdb.Del(ctx, p.presenceKey(actorID)).Err(); err != nil {
		return fmt.Errorf("redis: mark %s offline: %w", actorID, err)
	}
	return nil
}

func (p *Presence) IsOnline(ctx context.Context, actorID string) (bool, error) {
	n, err := p.rdb.Exists(ctx, p.presenceKey(actorID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: presence %s: %w", actorID, err)
	}
	return n == 1, nil
}

// Compile-time interface check.
var _ domain.PresenceTracker = (*Presence)(nil)
