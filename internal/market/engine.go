package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// EngineConfig holds the engine's tunables.
type EngineConfig struct {
	// BidRateLimit caps accepted bid attempts per bidder per BidRateWindow.
	// Zero disables the limit.
	BidRateLimit  int
	BidRateWindow time.Duration
}

// Engine is the marketplace surface exposed to collaborators. It combines the
// registry with the bidding, purchase and expiry protocols.
type Engine struct {
	registry *Registry
	ledger   domain.LedgerGateway
	deliver  *deliverer
	events   *Events
	limiter  domain.RateLimiter
	cfg      EngineConfig
	logger   *slog.Logger
}

// NewEngine wires an Engine. events and limiter may be nil.
func NewEngine(
	registry *Registry,
	ledger domain.LedgerGateway,
	items domain.ItemDelivery,
	events *Events,
	limiter domain.RateLimiter,
	cfg EngineConfig,
	logger *slog.Logger,
) *Engine {
	logger = logger.With(slog.String("component", "market_engine"))
	return &Engine{
		registry: registry,
		ledger:   ledger,
		deliver:  &deliverer{ledger: ledger, items: items, logger: logger},
		events:   events,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Load populates the registry from the durable store.
func (e *Engine) Load(ctx context.Context, store domain.ListingStore) (int, error) {
	return e.registry.Load(ctx, store)
}

// Create lists an item for sale and returns the new listing id.
func (e *Engine) Create(ctx context.Context, sellerID string, item []byte, mode domain.ListingMode, startingPrice int64, duration time.Duration) (string, error) {
	return e.registry.Create(ctx, sellerID, item, mode, startingPrice, duration)
}

// Get returns a listing by id.
func (e *Engine) Get(id string) (domain.Listing, error) {
	return e.registry.Get(id)
}

// ListActive returns the listings still open for bids or purchase.
func (e *Engine) ListActive(filter domain.ListingFilter) []domain.Listing {
	return e.registry.ListActive(filter)
}

// ListBySeller returns a seller's open listings.
func (e *Engine) ListBySeller(sellerID string) []domain.Listing {
	return e.registry.ListBySeller(sellerID)
}

// Len reports how many listings the registry holds, lapsed or not.
func (e *Engine) Len() int {
	return e.registry.Len()
}

// Balance reports an actor's spendable balance.
func (e *Engine) Balance(ctx context.Context, actorID string) (int64, error) {
	return e.ledger.Balance(ctx, actorID)
}

func (e *Engine) now() time.Time {
	return e.registry.now()
}

// debit checks the spendable balance and takes amount from actorID.
func (e *Engine) debit(ctx context.Context, actorID string, amount int64) error {
	bal, err := e.ledger.Balance(ctx, actorID)
	if err != nil {
		return fmt.Errorf("market: balance of %s: %w", actorID, err)
	}
	if bal < amount {
		return fmt.Errorf("market: %s has %d, needs %d: %w", actorID, bal, amount, domain.ErrInsufficientFunds)
	}
	if err := e.ledger.Debit(ctx, actorID, amount); err != nil {
		return fmt.Errorf("market: debit %s: %w", actorID, err)
	}
	return nil
}

// settleContext keeps the caller's values but drops its cancellation. Once the
// first leg of a transaction has moved money or goods, the remaining legs must
// run to completion even if the caller has gone away.
func settleContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// compensate returns funds taken earlier in an operation that could not
// complete. A failure here is logged as an unpaid settlement.
func (e *Engine) compensate(ctx context.Context, listingID, actorID string, amount int64) {
	if _, err := e.deliver.refund(ctx, actorID, amount); err != nil {
		e.logger.ErrorContext(ctx, "compensating refund failed",
			slog.String("listing_id", listingID),
			slog.String("actor_id", actorID),
			slog.Int64("amount", amount),
			slog.String("error", err.Error()),
		)
		e.events.unpaid(listingID, actorID, amount, err)
	}
}

// paySeller credits the seller after the goods have moved. The transaction is
// already committed at this point, so a failure is recorded, not returned.
func (e *Engine) paySeller(ctx context.Context, l domain.Listing) bool {
	queued, err := e.deliver.deliverCurrency(ctx, l.SellerID, l.CurrentPrice)
	if err != nil {
		e.logger.ErrorContext(ctx, "seller payout failed",
			slog.String("listing_id", l.ID),
			slog.String("seller_id", l.SellerID),
			slog.Int64("amount", l.CurrentPrice),
			slog.String("error", err.Error()),
		)
		e.events.unpaid(l.ID, l.SellerID, l.CurrentPrice, err)
	}
	return queued
}
