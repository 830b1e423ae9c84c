package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Inventory implements domain.ItemDelivery with a fixed per-actor capacity.
type Inventory struct {
	mu       sync.Mutex
	capacity int
	items    map[string][][]byte
}

// NewInventory creates an Inventory. A non-positive capacity is unlimited.
func NewInventory(capacity int) *Inventory {
	return &Inventory{capacity: capacity, items: make(map[string][][]byte)}
}

// GiveNow adds item to the actor's inventory.
func (inv *Inventory) GiveNow(ctx context.Context, actorID string, item []byte) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.capacity > 0 && len(inv.items[actorID]) >= inv.capacity {
		return fmt.Errorf("memory: give to %s: %w", actorID, domain.ErrInventoryFull)
	}
	inv.items[actorID] = append(inv.items[actorID], append([]byte(nil), item...))
	return nil
}

// Items returns a copy of the actor's inventory.
func (inv *Inventory) Items(actorID string) [][]byte {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([][]byte, len(inv.items[actorID]))
	copy(out, inv.items[actorID])
	return out
}

// Compile-time interface check.
var _ domain.ItemDelivery = (*Inventory)(nil)
