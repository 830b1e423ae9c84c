package market

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Purchase buys a fixed-price listing outright.
//
// The buyer is debited, the item handed over (queued if their inventory is
// full), the seller paid online or pending, and the listing removed, all under
// the listing lock. If the item cannot be delivered the buyer is refunded and
// the listing stays live. Once the item has moved the sale is final: the
// listing is gone from the registry even if the store delete later fails.
func (e *Engine) Purchase(ctx context.Context, listingID, buyerID string) (domain.Resolution, error) {
	if buyerID == "" {
		return domain.Resolution{}, fmt.Errorf("%w: buyer id is required", domain.ErrValidation)
	}

	var res domain.Resolution
	err := e.registry.withListing(listingID, func(ent *entry) error {
		l := ent.listing
		now := e.now()
		if l.Mode != domain.ListingModeFixedPrice {
			return fmt.Errorf("market: listing %s is an auction: %w", listingID, domain.ErrNotPurchasable)
		}
		if l.Expired(now) {
			return fmt.Errorf("market: listing %s has expired: %w", listingID, domain.ErrNotPurchasable)
		}
		if buyerID == l.SellerID {
			return fmt.Errorf("%w: seller cannot buy their own listing", domain.ErrValidation)
		}

		if err := e.debit(ctx, buyerID, l.CurrentPrice); err != nil {
			return err
		}

		sctx := settleContext(ctx)
		itemQueued, err := e.deliver.handOver(sctx, buyerID, l.Item)
		if err != nil {
			e.compensate(sctx, listingID, buyerID, l.CurrentPrice)
			return err
		}
		fundsQueued := e.paySeller(sctx, l)

		e.registry.terminate(ent)
		res = domain.Resolution{
			ListingID:   l.ID,
			Kind:        domain.ResolutionSold,
			SellerID:    l.SellerID,
			RecipientID: buyerID,
			Amount:      l.CurrentPrice,
			ItemQueued:  itemQueued,
			FundsQueued: fundsQueued,
			At:          now,
		}
		return nil
	})
	if err != nil {
		return domain.Resolution{}, err
	}

	e.logResolution(ctx, res)
	e.events.resolved(res)
	return res, nil
}

// Cancel withdraws a listing on behalf of its seller and returns the item to
// them. Only the seller may cancel, only before expiry, and only while no bid
// stands.
func (e *Engine) Cancel(ctx context.Context, listingID, requesterID string) (domain.Resolution, error) {
	var res domain.Resolution
	err := e.registry.withListing(listingID, func(ent *entry) error {
		l := ent.listing
		now := e.now()
		if requesterID != l.SellerID {
			return fmt.Errorf("market: cancel %s by %s: %w", listingID, requesterID, domain.ErrNotSeller)
		}
		if l.Expired(now) {
			return fmt.Errorf("market: listing %s has expired: %w", listingID, domain.ErrNotPurchasable)
		}
		if l.HasBid() {
			return fmt.Errorf("market: cancel %s: %w", listingID, domain.ErrHasBids)
		}

		itemQueued, err := e.deliver.handOver(ctx, l.SellerID, l.Item)
		if err != nil {
			return err
		}

		e.registry.terminate(ent)
		res = domain.Resolution{
			ListingID:   l.ID,
			Kind:        domain.ResolutionCancelled,
			SellerID:    l.SellerID,
			RecipientID: l.SellerID,
			ItemQueued:  itemQueued,
			At:          now,
		}
		return nil
	})
	if err != nil {
		return domain.Resolution{}, err
	}

	e.logResolution(ctx, res)
	e.events.resolved(res)
	return res, nil
}

func (e *Engine) logResolution(ctx context.Context, r domain.Resolution) {
	e.logger.InfoContext(ctx, "listing resolved",
		slog.String("listing_id", r.ListingID),
		slog.String("kind", string(r.Kind)),
		slog.String("seller_id", r.SellerID),
		slog.String("recipient_id", r.RecipientID),
		slog.Int64("amount", r.Amount),
		slog.Bool("item_queued", r.ItemQueued),
		slog.Bool("funds_queued", r.FundsQueued),
	)
}
