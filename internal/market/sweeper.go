package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

var errNotDue = errors.New("listing not yet expired")

// ResolveExpired settles one listing whose end time has passed. It reports
// false without error when the listing is already gone or not yet due, so
// overlapping sweeps are harmless.
//
// A bid listing with a highest bidder delivers the item to that bidder and
// pays the escrowed price to the seller. Anything else returns the item to
// the seller. If the item cannot be delivered at all the listing is kept for
// the next sweep.
func (e *Engine) ResolveExpired(ctx context.Context, listingID string) (domain.Resolution, bool, error) {
	var res domain.Resolution
	err := e.registry.withListing(listingID, func(ent *entry) error {
		l := ent.listing
		now := e.now()
		if !l.Expired(now) {
			return errNotDue
		}

		res = domain.Resolution{
			ListingID: l.ID,
			SellerID:  l.SellerID,
			At:        now,
		}
		// A sweep that has started moving goods finishes even during shutdown.
		ctx := settleContext(ctx)
		if l.Mode == domain.ListingModeBid && l.HasBid() {
			winner := *l.HighestBidderID
			queued, err := e.deliver.deliverItem(ctx, winner, l.Item)
			if err != nil {
				return err
			}
			res.Kind = domain.ResolutionWon
			res.RecipientID = winner
			res.Amount = l.CurrentPrice
			res.ItemQueued = queued
			res.FundsQueued = e.paySeller(ctx, l)
		} else {
			queued, err := e.deliver.deliverItem(ctx, l.SellerID, l.Item)
			if err != nil {
				return err
			}
			res.Kind = domain.ResolutionUnsold
			res.RecipientID = l.SellerID
			res.ItemQueued = queued
		}

		e.registry.terminate(ent)
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, errNotDue):
		return domain.Resolution{}, false, nil
	case err != nil:
		return domain.Resolution{}, false, fmt.Errorf("market: resolve %s: %w", listingID, err)
	}

	e.logResolution(ctx, res)
	e.events.resolved(res)
	return res, true, nil
}

// SweepExpired resolves every listing whose end time has passed. Failures are
// logged and left for the next pass.
func (e *Engine) SweepExpired(ctx context.Context) []domain.Resolution {
	var out []domain.Resolution
	for _, id := range e.registry.expiredIDs(e.now()) {
		if ctx.Err() != nil {
			break
		}
		res, ok, err := e.ResolveExpired(ctx, id)
		if err != nil {
			e.logger.ErrorContext(ctx, "expiry resolution failed",
				slog.String("listing_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			out = append(out, res)
		}
	}
	return out
}

// Sweeper runs SweepExpired on a fixed period. Its interval must be shorter
// than the minimum listing duration.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. A non-positive interval defaults to 1s.
func NewSweeper(engine *Engine, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sweeper{
		engine:   engine,
		interval: interval,
		logger:   logger.With(slog.String("component", "expiry_sweeper")),
	}
}

// Run sweeps until ctx is cancelled. Call in a goroutine.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "expiry sweeper starting", slog.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			resolved := s.engine.SweepExpired(ctx)
			if len(resolved) > 0 {
				s.logger.InfoContext(ctx, "sweep resolved listings", slog.Int("count", len(resolved)))
			}
		}
	}
}
