package memory

import (
	"context"
	"sync"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Presence implements domain.PresenceTracker in memory.
type Presence struct {
	mu     sync.RWMutex
	online map[string]bool
}

// NewPresence creates a Presence with every actor offline.
func NewPresence() *Presence {
	return &Presence{online: make(map[string]bool)}
}

func (p *Presence) MarkOnline(ctx context.Context, actorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[actorID] = true
	return nil
}

func (p *Presence) MarkOffline(ctx context.Context, actorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, actorID)
	return nil
}

func (p *Presence) IsOnline(ctx context.Context, actorID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online[actorID], nil
}

// Compile-time interface check.
var _ domain.PresenceTracker = (*Presence)(nil)
