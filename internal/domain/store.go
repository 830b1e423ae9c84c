package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ListingStore is the durable mirror of the listing registry. The registry is
// authoritative while the process runs; the store is only read at startup.
type ListingStore interface {
	LoadAll(ctx context.Context) ([]Listing, error)
	Upsert(ctx context.Context, l Listing) error
	Delete(ctx context.Context, id string) error
}

// Account is the durable ledger state of one actor.
type Account struct {
	ActorID        string
	Balance        int64
	PendingBalance int64
	UpdatedAt      time.Time
}

// PendingItem is an item payload waiting for its owner to come online.
type PendingItem struct {
	ID        int64
	ActorID   string
	Item      []byte
	CreatedAt time.Time
}

// AccountStore persists balances, pending balances and the pending item queue.
type AccountStore interface {
	Get(ctx context.Context, actorID string) (Account, error)
	// Debit fails with ErrInsufficientFunds when balance < amount.
	Debit(ctx context.Context, actorID string, amount int64) error
	Credit(ctx context.Context, actorID string, amount int64) error
	CreditPending(ctx context.Context, actorID string, amount int64) error
	// MergePending moves the whole pending balance into the balance and
	// returns the amount moved.
	MergePending(ctx context.Context, actorID string) (int64, error)
	QueueItem(ctx context.Context, actorID string, item []byte) error
	ListPendingItems(ctx context.Context, actorID string) ([]PendingItem, error)
	DeletePendingItem(ctx context.Context, id int64) error
	// RestorePendingItem puts a dequeued item back under its original id so
	// queue order is preserved.
	RestorePendingItem(ctx context.Context, p PendingItem) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log of settlements.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
