// Package market implements the auction house engine: the authoritative
// in-memory listing registry, the bidding and purchase protocols, and the
// expiry sweeper. Every operation that tests a listing's state and then acts
// on it runs under that listing's own mutex, so bids, purchases, cancels and
// sweeps on the same listing are strictly serialized while different listings
// proceed in parallel.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// entry guards one listing. removed is set exactly once, under mu, when the
// listing terminates; after that the entry is unreachable from the map and
// every locked operation on it reports ErrNotFound.
type entry struct {
	mu      sync.Mutex
	listing domain.Listing
	removed bool
}

// RegistryConfig bounds listing creation.
type RegistryConfig struct {
	MinDuration time.Duration
	MaxDuration time.Duration
	// Now overrides the wall clock; nil means time.Now.
	Now func() time.Time
}

// Registry is the single source of truth for which listings are live.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	persist *Persister
	cfg     RegistryConfig
	logger  *slog.Logger
}

// NewRegistry creates an empty Registry mirroring its mutations through p.
func NewRegistry(p *Persister, cfg RegistryConfig, logger *slog.Logger) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		entries: make(map[string]*entry),
		persist: p,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "listing_registry")),
	}
}

func (r *Registry) now() time.Time {
	return r.cfg.Now().UTC()
}

// Create validates and inserts a new listing, schedules its persistence and
// returns its id. The registry is authoritative before the write completes.
func (r *Registry) Create(ctx context.Context, sellerID string, item []byte, mode domain.ListingMode, startingPrice int64, duration time.Duration) (string, error) {
	if err := r.validateCreate(sellerID, item, mode, startingPrice, duration); err != nil {
		return "", err
	}

	// Stores keep microseconds; a listing must read back exactly as created.
	now := r.now().Truncate(time.Microsecond)
	l := domain.Listing{
		ID:            uuid.New().String(),
		SellerID:      sellerID,
		Item:          append([]byte(nil), item...),
		Mode:          mode,
		StartingPrice: startingPrice,
		CurrentPrice:  startingPrice,
		EndTime:       now.Add(duration),
		CreatedAt:     now,
	}

	r.mu.Lock()
	r.entries[l.ID] = &entry{listing: l}
	r.mu.Unlock()

	r.persist.Upsert(l.Clone())

	r.logger.InfoContext(ctx, "listing created",
		slog.String("listing_id", l.ID),
		slog.String("seller_id", sellerID),
		slog.String("mode", string(mode)),
		slog.Int64("starting_price", startingPrice),
		slog.Time("end_time", l.EndTime),
	)
	return l.ID, nil
}

func (r *Registry) validateCreate(sellerID string, item []byte, mode domain.ListingMode, startingPrice int64, duration time.Duration) error {
	switch {
	case sellerID == "":
		return fmt.Errorf("%w: seller id is required", domain.ErrValidation)
	case len(item) == 0:
		return fmt.Errorf("%w: item payload is empty", domain.ErrValidation)
	case !mode.Valid():
		return fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, mode)
	case startingPrice < 0:
		return fmt.Errorf("%w: starting price %d is negative", domain.ErrValidation, startingPrice)
	case duration <= 0:
		return fmt.Errorf("%w: duration %s must be positive", domain.ErrValidation, duration)
	case r.cfg.MinDuration > 0 && duration < r.cfg.MinDuration:
		return fmt.Errorf("%w: duration %s is below the minimum %s", domain.ErrValidation, duration, r.cfg.MinDuration)
	case r.cfg.MaxDuration > 0 && duration > r.cfg.MaxDuration:
		return fmt.Errorf("%w: duration %s exceeds the maximum %s", domain.ErrValidation, duration, r.cfg.MaxDuration)
	}
	return nil
}

// Get returns a copy of the listing, or ErrNotFound once it has terminated.
// A lapsed but unswept listing is still returned; use ListActive for the
// buyer-facing view.
func (r *Registry) Get(id string) (domain.Listing, error) {
	var out domain.Listing
	err := r.withListing(id, func(e *entry) error {
		out = e.listing.Clone()
		return nil
	})
	return out, err
}

// ListActive returns the listings whose end time is still in the future,
// ordered by end time. The end time is checked at read time so a listing the
// sweeper has not reached yet is never reported as active.
func (r *Registry) ListActive(filter domain.ListingFilter) []domain.Listing {
	now := r.now()
	var out []domain.Listing
	for _, e := range r.snapshot() {
		e.mu.Lock()
		if !e.removed && !e.listing.Expired(now) && filter.Match(e.listing) {
			out = append(out, e.listing.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EndTime.Before(out[j].EndTime)
	})
	return out
}

// ListBySeller returns the seller's active listings, filtered like ListActive.
func (r *Registry) ListBySeller(sellerID string) []domain.Listing {
	return r.ListActive(domain.ListingFilter{SellerID: sellerID})
}

// Remove drops a listing without any settlement and schedules its deletion.
// Removing an unknown or already terminated id is a no-op.
func (r *Registry) Remove(id string) {
	_ = r.withListing(id, func(e *entry) error {
		r.terminate(e)
		return nil
	})
}

// Len reports how many listings are held, lapsed or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Load inserts persisted listings. Ids already present are left untouched.
// Records that break the listing invariants are skipped and logged.
func (r *Registry) Load(ctx context.Context, store domain.ListingStore) (int, error) {
	listings, err := store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("market: load listings: %w", err)
	}

	loaded := 0
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range listings {
		if err := checkInvariants(l); err != nil {
			r.logger.WarnContext(ctx, "skipping persisted listing",
				slog.String("listing_id", l.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if _, ok := r.entries[l.ID]; ok {
			continue
		}
		r.entries[l.ID] = &entry{listing: l.Clone()}
		loaded++
	}

	r.logger.InfoContext(ctx, "listings loaded",
		slog.Int("loaded", loaded),
		slog.Int("persisted", len(listings)),
	)
	return loaded, nil
}

func checkInvariants(l domain.Listing) error {
	switch {
	case l.ID == "" || l.SellerID == "":
		return fmt.Errorf("%w: missing id or seller", domain.ErrValidation)
	case !l.Mode.Valid():
		return fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, l.Mode)
	case l.StartingPrice < 0 || l.CurrentPrice < l.StartingPrice:
		return fmt.Errorf("%w: current price %d below starting price %d", domain.ErrValidation, l.CurrentPrice, l.StartingPrice)
	case l.Mode == domain.ListingModeFixedPrice && (l.HighestBidderID != nil || l.CurrentPrice != l.StartingPrice):
		return fmt.Errorf("%w: fixed-price listing carries bid state", domain.ErrValidation)
	}
	return nil
}

// expiredIDs returns the ids whose end time has passed at now. The result is
// only a hint: each id is rechecked under its own lock before resolution.
func (r *Registry) expiredIDs(now time.Time) []string {
	var ids []string
	for _, e := range r.snapshot() {
		e.mu.Lock()
		if !e.removed && e.listing.Expired(now) {
			ids = append(ids, e.listing.ID)
		}
		e.mu.Unlock()
	}
	return ids
}

// snapshot copies the entry pointers so callers can lock entries without
// holding the map lock. Lock order is always entry, then map.
func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// withListing runs fn while holding the listing's lock. Missing and
// terminated listings yield ErrNotFound without calling fn.
func (r *Registry) withListing(id string, fn func(e *entry) error) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("market: listing %s: %w", id, domain.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("market: listing %s: %w", id, domain.ErrNotFound)
	}
	return fn(e)
}

// save mirrors the current state of a locked entry to the store.
func (r *Registry) save(e *entry) {
	r.persist.Upsert(e.listing.Clone())
}

// terminate must be called with e.mu held.
func (r *Registry) terminate(e *entry) {
	e.removed = true
	r.mu.Lock()
	delete(r.entries, e.listing.ID)
	r.mu.Unlock()
	r.persist.Delete(e.listing.ID)
}
