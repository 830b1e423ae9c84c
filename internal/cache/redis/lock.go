package redis

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Both scripts act only while the key still holds the caller's token, so a
// holder whose TTL lapsed can neither release nor extend a successor's lock.
var (
	releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)
	extendScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)
)

// LockManager implements domain.LockManager with SET NX PX. The archive job
// takes it so only one replica moves audit rows at a time. While held, the
// lock is extended every ttl/2 so a slow archive round does not let a second
// replica in halfway through.
type LockManager struct {
	c     *Client
	owner string
}

// NewLockManager creates a LockManager. Lock values name the holding host and
// process, which is what an operator sees with GET {ns}:lock:archive.
func NewLockManager(c *Client) *LockManager {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &LockManager{c: c, owner: fmt.Sprintf("%s/%d", host, os.Getpid())}
}

// Acquire takes the lock for name. It returns domain.ErrLockHeld when another
// holder has it. The returned unlock func stops the renewal and releases the
// lock; it is safe to call more than once.
func (lm *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := lm.c.key("lock", name)
	token := lm.owner + "/" + uuid.NewString()

	ok, err := lm.c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go lm.keepAlive(key, token, ttl, stop, done)

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			close(stop)
			<-done
			// The caller's context may already be cancelled.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, lm.c.rdb, []string{key}, token).Err()
		})
	}
	return unlock, nil
}

// keepAlive extends key until stop closes or the token is no longer ours.
func (lm *LockManager) keepAlive(key, token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if ttl < 2*time.Millisecond {
		<-stop
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), ttl/2)
			n, err := extendScript.Run(ctx, lm.c.rdb, []string{key}, token, ttl.Milliseconds()).Int()
			cancel()
			if err == nil && n == 0 {
				return
			}
		}
	}
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
