package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// deliverer owns the online/offline policy for handing currency and items to
// actors. Reachable actors are paid into their balance and handed the item
// directly; everyone else, and any online hand-off that fails, falls back to
// the pending queues.
type deliverer struct {
	ledger domain.LedgerGateway
	items  domain.ItemDelivery
	logger *slog.Logger
}

func (d *deliverer) reachable(ctx context.Context, actorID string) bool {
	ok, err := d.ledger.IsReachable(ctx, actorID)
	if err != nil {
		d.logger.WarnContext(ctx, "presence lookup failed, treating actor as offline",
			slog.String("actor_id", actorID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

// deliverCurrency pays amount to actorID and reports whether it was queued as
// pending balance. The amount lands in exactly one of balance or pending.
func (d *deliverer) deliverCurrency(ctx context.Context, actorID string, amount int64) (queued bool, err error) {
	return d.credit(ctx, actorID, amount, d.reachable(ctx, actorID))
}

// refund returns funds to an actor who is acting right now.
func (d *deliverer) refund(ctx context.Context, actorID string, amount int64) (queued bool, err error) {
	return d.credit(ctx, actorID, amount, true)
}

func (d *deliverer) credit(ctx context.Context, actorID string, amount int64, online bool) (bool, error) {
	if amount == 0 {
		return false, nil
	}
	if online {
		err := d.ledger.CreditOnline(ctx, actorID, amount)
		if err == nil {
			return false, nil
		}
		d.logger.WarnContext(ctx, "online credit failed, queueing as pending balance",
			slog.String("actor_id", actorID),
			slog.Int64("amount", amount),
			slog.String("error", err.Error()),
		)
	}
	if err := d.ledger.CreditPending(ctx, actorID, amount); err != nil {
		return true, fmt.Errorf("market: credit %d to %s: %w", amount, actorID, err)
	}
	return true, nil
}

// deliverItem hands item to actorID, queueing it when the actor is offline or
// the inventory is full.
func (d *deliverer) deliverItem(ctx context.Context, actorID string, item []byte) (queued bool, err error) {
	return d.give(ctx, actorID, item, d.reachable(ctx, actorID))
}

// handOver gives item to an actor who is acting right now.
func (d *deliverer) handOver(ctx context.Context, actorID string, item []byte) (queued bool, err error) {
	return d.give(ctx, actorID, item, true)
}

func (d *deliverer) give(ctx context.Context, actorID string, item []byte, online bool) (bool, error) {
	if online {
		err := d.items.GiveNow(ctx, actorID, item)
		if err == nil {
			return false, nil
		}
		if errors.Is(err, domain.ErrInventoryFull) {
			d.logger.InfoContext(ctx, "inventory full, queueing item",
				slog.String("actor_id", actorID),
			)
		} else {
			d.logger.WarnContext(ctx, "item hand-off failed, queueing item",
				slog.String("actor_id", actorID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := d.ledger.QueuePendingItem(ctx, actorID, item); err != nil {
		return true, fmt.Errorf("market: queue item for %s: %w", actorID, err)
	}
	return true, nil
}
