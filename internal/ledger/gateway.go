// Package ledger implements the marketplace's LedgerGateway on top of a
// durable account store, a presence tracker and an inventory, and handles
// delivery of pending funds and items when an actor comes back online.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Gateway implements domain.LedgerGateway.
type Gateway struct {
	accounts domain.AccountStore
	presence domain.PresenceTracker
	items    domain.ItemDelivery
	logger   *slog.Logger
}

// NewGateway creates a Gateway.
func NewGateway(accounts domain.AccountStore, presence domain.PresenceTracker, items domain.ItemDelivery, logger *slog.Logger) *Gateway {
	return &Gateway{
		accounts: accounts,
		presence: presence,
		items:    items,
		logger:   logger.With(slog.String("component", "ledger")),
	}
}

// Balance returns the spendable balance. Unknown actors have a zero balance.
func (g *Gateway) Balance(ctx context.Context, actorID string) (int64, error) {
	acct, err := g.accounts.Get(ctx, actorID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: balance %s: %w", actorID, err)
	}
	return acct.Balance, nil
}

// Account returns the full ledger state of an actor.
func (g *Gateway) Account(ctx context.Context, actorID string) (domain.Account, error) {
	acct, err := g.accounts.Get(ctx, actorID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Account{ActorID: actorID}, nil
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("ledger: account %s: %w", actorID, err)
	}
	return acct, nil
}

func (g *Gateway) Debit(ctx context.Context, actorID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative debit %d", domain.ErrValidation, amount)
	}
	return g.accounts.Debit(ctx, actorID, amount)
}

func (g *Gateway) CreditOnline(ctx context.Context, actorID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative credit %d", domain.ErrValidation, amount)
	}
	return g.accounts.Credit(ctx, actorID, amount)
}

func (g *Gateway) CreditPending(ctx context.Context, actorID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative credit %d", domain.ErrValidation, amount)
	}
	return g.accounts.CreditPending(ctx, actorID, amount)
}

func (g *Gateway) IsReachable(ctx context.Context, actorID string) (bool, error) {
	return g.presence.IsOnline(ctx, actorID)
}

func (g *Gateway) QueuePendingItem(ctx context.Context, actorID string, item []byte) error {
	return g.accounts.QueueItem(ctx, actorID, item)
}

// Deposit funds an actor's spendable balance from outside the marketplace.
func (g *Gateway) Deposit(ctx context.Context, actorID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deposit must be positive", domain.ErrValidation)
	}
	if err := g.accounts.Credit(ctx, actorID, amount); err != nil {
		return fmt.Errorf("ledger: deposit %s: %w", actorID, err)
	}
	return nil
}

// Login marks the actor reachable and hands over what accrued while they
// were away: the pending balance is merged into the balance and pending items
// are moved into the inventory in queue order until it is full.
func (g *Gateway) Login(ctx context.Context, actorID string) (domain.ClaimResult, error) {
	res := domain.ClaimResult{ActorID: actorID}

	if err := g.presence.MarkOnline(ctx, actorID); err != nil {
		return res, fmt.Errorf("ledger: mark %s online: %w", actorID, err)
	}

	merged, err := g.accounts.MergePending(ctx, actorID)
	if err != nil {
		return res, fmt.Errorf("ledger: merge pending for %s: %w", actorID, err)
	}
	res.Merged = merged

	pending, err := g.accounts.ListPendingItems(ctx, actorID)
	if err != nil {
		return res, fmt.Errorf("ledger: list pending items for %s: %w", actorID, err)
	}

	for i, p := range pending {
		// Dequeue before handing over so the item can never be held twice.
		// A failed hand-off puts it back in its original queue position.
		if err := g.accounts.DeletePendingItem(ctx, p.ID); err != nil {
			res.ItemsRemaining = len(pending) - i
			return res, fmt.Errorf("ledger: dequeue item %d: %w", p.ID, err)
		}
		if err := g.items.GiveNow(ctx, actorID, p.Item); err != nil {
			if restoreErr := g.accounts.RestorePendingItem(ctx, p); restoreErr != nil {
				g.logger.ErrorContext(ctx, "restore of pending item failed",
					slog.String("actor_id", actorID),
					slog.Int64("pending_id", p.ID),
					slog.String("error", restoreErr.Error()),
				)
			}
			res.ItemsRemaining = len(pending) - i
			if errors.Is(err, domain.ErrInventoryFull) {
				break
			}
			return res, fmt.Errorf("ledger: deliver pending item to %s: %w", actorID, err)
		}
		res.ItemsDelivered++
	}

	g.logger.InfoContext(ctx, "pending deliveries claimed",
		slog.String("actor_id", actorID),
		slog.Int64("merged", res.Merged),
		slog.Int("items_delivered", res.ItemsDelivered),
		slog.Int("items_remaining", res.ItemsRemaining),
	)
	return res, nil
}

// Logout marks the actor unreachable so later settlements are queued.
func (g *Gateway) Logout(ctx context.Context, actorID string) error {
	if err := g.presence.MarkOffline(ctx, actorID); err != nil {
		return fmt.Errorf("ledger: mark %s offline: %w", actorID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LedgerGateway = (*Gateway)(nil)
