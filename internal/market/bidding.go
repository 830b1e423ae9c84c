package market

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// PlaceBid raises the highest bid on a bid-mode listing.
//
// The new bidder is debited the full amount and the previous highest bidder
// is refunded their full amount, online or pending. When a bidder raises
// their own bid both legs go to the same actor, so the net movement is the
// exact delta. The expiry check, the price check and both ledger legs run
// under the listing lock; a bid either applies completely or not at all.
func (e *Engine) PlaceBid(ctx context.Context, listingID, bidderID string, amount int64) (domain.BidOutcome, error) {
	if bidderID == "" {
		return domain.BidOutcome{}, fmt.Errorf("%w: bidder id is required", domain.ErrValidation)
	}
	if err := e.allowBid(ctx, bidderID); err != nil {
		return domain.BidOutcome{}, err
	}

	var out domain.BidOutcome
	err := e.registry.withListing(listingID, func(ent *entry) error {
		l := &ent.listing
		now := e.now()
		if l.Mode != domain.ListingModeBid || l.Expired(now) {
			return fmt.Errorf("market: listing %s is not open for bids: %w", listingID, domain.ErrNotFound)
		}
		if bidderID == l.SellerID {
			return fmt.Errorf("%w: seller cannot bid on their own listing", domain.ErrValidation)
		}
		if amount <= l.CurrentPrice {
			return fmt.Errorf("market: bid %d on %s at %d: %w", amount, listingID, l.CurrentPrice, domain.ErrInvalidBid)
		}

		if err := e.debit(ctx, bidderID, amount); err != nil {
			return err
		}

		out = domain.BidOutcome{
			ListingID: listingID,
			NewBidder: bidderID,
			NewAmount: amount,
			At:        now,
		}
		if l.HasBid() {
			sctx := settleContext(ctx)
			prev := *l.HighestBidderID
			out.PreviousBidder = prev
			out.PreviousAmount = l.CurrentPrice

			var (
				queued bool
				err    error
			)
			if prev == bidderID {
				queued, err = e.deliver.refund(sctx, prev, l.CurrentPrice)
			} else {
				queued, err = e.deliver.deliverCurrency(sctx, prev, l.CurrentPrice)
			}
			if err != nil {
				e.compensate(sctx, listingID, bidderID, amount)
				return fmt.Errorf("market: refund previous bidder %s: %w", prev, err)
			}
			out.RefundQueued = queued
		}

		bidder := bidderID
		l.CurrentPrice = amount
		l.HighestBidderID = &bidder
		e.registry.save(ent)
		return nil
	})
	if err != nil {
		return domain.BidOutcome{}, err
	}

	e.logger.InfoContext(ctx, "bid accepted",
		slog.String("listing_id", listingID),
		slog.String("bidder_id", bidderID),
		slog.Int64("amount", amount),
		slog.String("previous_bidder", out.PreviousBidder),
		slog.Int64("previous_amount", out.PreviousAmount),
	)
	e.events.bidAccepted(out)
	return out, nil
}

// allowBid applies the per-bidder rate limit. Limiter errors fail open.
func (e *Engine) allowBid(ctx context.Context, bidderID string) error {
	if e.limiter == nil || e.cfg.BidRateLimit <= 0 || e.cfg.BidRateWindow <= 0 {
		return nil
	}
	ok, err := e.limiter.Allow(ctx, "bid:"+bidderID, e.cfg.BidRateLimit, e.cfg.BidRateWindow)
	if err != nil {
		e.logger.WarnContext(ctx, "bid rate limiter unavailable",
			slog.String("bidder_id", bidderID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return fmt.Errorf("market: bidder %s: %w", bidderID, domain.ErrRateLimited)
	}
	return nil
}
