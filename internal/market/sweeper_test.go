package market

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/ledger"
)

func TestSweepWonAuctionOfflineWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "x", 200)
	h.online(t, "seller")
	id := h.create(t, "seller", domain.ListingModeBid, 50, time.Minute)

	_, err := h.engine.PlaceBid(ctx, id, "x", 80)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	resolved := h.engine.SweepExpired(ctx)
	require.Len(t, resolved, 1)
	res := resolved[0]
	assert.Equal(t, domain.ResolutionWon, res.Kind)
	assert.Equal(t, "x", res.RecipientID)
	assert.Equal(t, int64(80), res.Amount)
	assert.True(t, res.ItemQueued)
	assert.False(t, res.FundsQueued)

	assert.Equal(t, int64(80), h.balance(t, "seller"))
	assert.Empty(t, h.inventory.Items("x"))
	require.Len(t, h.pendingItems(t, "x"), 1)
	_, err = h.engine.Get(id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	claim, err := h.gateway.Login(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, claim.ItemsDelivered)
	assert.Equal(t, [][]byte{[]byte("item:seller")}, h.inventory.Items("x"))
	assert.Empty(t, h.pendingItems(t, "x"))
}

func TestSweepOfflineSellerQueuedPayout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "x", 200)
	h.online(t, "x")
	id := h.create(t, "seller", domain.ListingModeBid, 50, time.Minute)
	_, err := h.engine.PlaceBid(ctx, id, "x", 80)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	res, ok, err := h.engine.ResolveExpired(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, res.ItemQueued)
	assert.True(t, res.FundsQueued)
	assert.Equal(t, int64(80), h.account(t, "seller").PendingBalance)
}

func TestSweepUnsoldReturnsItem(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.online(t, "seller")
	bid := h.create(t, "seller", domain.ListingModeBid, 50, time.Minute)
	fixed := h.create(t, "seller", domain.ListingModeFixedPrice, 50, time.Minute)

	h.clock.Advance(time.Minute)
	resolved := h.engine.SweepExpired(ctx)
	require.Len(t, resolved, 2)
	for _, r := range resolved {
		assert.Equal(t, domain.ResolutionUnsold, r.Kind)
		assert.Equal(t, "seller", r.RecipientID)
		assert.Zero(t, r.Amount)
	}
	assert.Len(t, h.inventory.Items("seller"), 2)
	assert.Zero(t, h.balance(t, "seller"))

	for _, id := range []string{bid, fixed} {
		_, err := h.engine.Get(id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
}

func TestResolveExpiredIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "x", 100)
	h.online(t, "seller", "x")
	id := h.create(t, "seller", domain.ListingModeBid, 10, time.Minute)
	_, err := h.engine.PlaceBid(ctx, id, "x", 30)
	require.NoError(t, err)

	_, ok, err := h.engine.ResolveExpired(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "not due yet")

	h.clock.Advance(time.Minute)
	_, ok, err = h.engine.ResolveExpired(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = h.engine.ResolveExpired(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int64(30), h.balance(t, "seller"))
	assert.Len(t, h.inventory.Items("x"), 1)
}

func TestConcurrentSweepsResolveOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.online(t, "seller")
	for i := 0; i < 10; i++ {
		h.create(t, "seller", domain.ListingModeFixedPrice, 10, time.Minute)
	}
	h.clock.Advance(time.Hour)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(h.engine.SweepExpired(ctx))
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, total)
	assert.Equal(t, 0, h.registry.Len())
	assert.Len(t, h.inventory.Items("seller"), 8)
	assert.Len(t, h.pendingItems(t, "seller"), 2)
}

func TestSweepRacingLastSecondBid(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fund(t, "x", 100)
	h.online(t, "seller", "x")
	id := h.create(t, "seller", domain.ListingModeBid, 10, time.Minute)

	h.clock.Advance(time.Minute)
	var (
		wg     sync.WaitGroup
		bidErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, bidErr = h.engine.PlaceBid(ctx, id, "x", 50)
	}()
	go func() {
		defer wg.Done()
		h.engine.SweepExpired(ctx)
	}()
	wg.Wait()

	assert.ErrorIs(t, bidErr, domain.ErrNotFound)
	assert.Equal(t, int64(100), h.balance(t, "x"))
	assert.Zero(t, h.balance(t, "seller"))
}

func TestSweepKeepsUndeliverableListing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		withItems(func(domain.ItemDelivery) domain.ItemDelivery { return brokenDelivery{} }),
		withLedger(func(g *ledger.Gateway) domain.LedgerGateway { return noQueue{g} }),
	)
	id := h.create(t, "seller", domain.ListingModeBid, 10, time.Minute)

	h.clock.Advance(time.Minute)
	assert.Empty(t, h.engine.SweepExpired(ctx))

	_, ok, err := h.engine.ResolveExpired(ctx, id)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, h.registry.Len())
}

func TestSweeperRun(t *testing.T) {
	h := newHarness(t)
	h.create(t, "seller", domain.ListingModeFixedPrice, 10, time.Minute)
	h.clock.Advance(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- NewSweeper(h.engine, 5*time.Millisecond, discardLogger()).Run(ctx)
	}()

	assert.Eventually(t, func() bool { return h.registry.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSweepPaysSellerAfterShutdownStarts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	giver := &cancelAfterGive{cancel: cancel}
	h := newHarness(t,
		withLedger(func(g *ledger.Gateway) domain.LedgerGateway { return &ctxLedger{LedgerGateway: g} }),
		withItems(func(inv domain.ItemDelivery) domain.ItemDelivery {
			giver.ItemDelivery = inv
			return giver
		}),
	)
	h.fund(t, "x", 100)
	h.online(t, "x")
	id := h.create(t, "seller", domain.ListingModeBid, 50, time.Minute)
	_, err := h.engine.PlaceBid(context.Background(), id, "x", 80)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	res, ok, err := h.engine.ResolveExpired(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ResolutionWon, res.Kind)
	require.Error(t, ctx.Err())

	assert.Equal(t, int64(80), h.funds(t, "seller"))
	assert.Equal(t, int64(20), h.funds(t, "x"))
}
