package domain

import (
	"context"
	"time"
)

// Market event channels published on the SignalBus.
const (
	ChannelBids        = "market:bids"
	ChannelResolutions = "market:resolutions"
)

// StreamResolutions is the bounded, replayable log of resolutions.
const StreamResolutions = "market:resolutions:log"

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub for market events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// StreamMessage is one entry read from an EventStream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventStream is an append-only log that consumers can replay from an id.
type EventStream interface {
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream, lastID string, count int) ([]StreamMessage, error)
}

// LockManager provides mutual exclusion for jobs run by several replicas.
type LockManager interface {
	// Acquire returns ErrLockHeld when the lock is taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
