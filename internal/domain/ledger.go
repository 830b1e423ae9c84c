package domain

import "context"

// LedgerGateway moves currency and queues goods for actors. Balances belong to
// the ledger; the marketplace only calls these operations and never
// read-modify-writes a balance itself.
type LedgerGateway interface {
	Balance(ctx context.Context, actorID string) (int64, error)
	// Debit fails with ErrInsufficientFunds when the spendable balance is
	// lower than amount.
	Debit(ctx context.Context, actorID string, amount int64) error
	CreditOnline(ctx context.Context, actorID string, amount int64) error
	CreditPending(ctx context.Context, actorID string, amount int64) error
	IsReachable(ctx context.Context, actorID string) (bool, error)
	QueuePendingItem(ctx context.Context, actorID string, item []byte) error
}

// ItemDelivery hands an item to an online actor. It fails with
// ErrInventoryFull when the actor cannot hold another item.
type ItemDelivery interface {
	GiveNow(ctx context.Context, actorID string, item []byte) error
}

// PresenceTracker records which actors are currently reachable.
type PresenceTracker interface {
	MarkOnline(ctx context.Context, actorID string) error
	MarkOffline(ctx context.Context, actorID string) error
	IsOnline(ctx context.Context, actorID string) (bool, error)
}

// ClaimResult summarises what was handed to an actor on login.
type ClaimResult struct {
	ActorID        string `json:"actor_id"`
	Merged         int64  `json:"merged"`
	ItemsDelivered int    `json:"items_delivered"`
	ItemsRemaining int    `json:"items_remaining"`
}
