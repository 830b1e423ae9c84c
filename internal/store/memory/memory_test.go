package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

func TestAccountStoreRestoreKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := NewAccountStore()
	for _, item := range []string{"a", "b", "c"} {
		require.NoError(t, s.QueueItem(ctx, "actor", []byte(item)))
	}

	items, err := s.ListPendingItems(ctx, "actor")
	require.NoError(t, err)
	first := items[0]
	require.NoError(t, s.DeletePendingItem(ctx, first.ID))
	require.NoError(t, s.RestorePendingItem(ctx, first))

	items, err = s.ListPendingItems(ctx, "actor")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a", string(items[0].Item))
	assert.Equal(t, "c", string(items[2].Item))
}

func TestAccountStoreDebitUnknownActor(t *testing.T) {
	s := NewAccountStore()
	err := s.Debit(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = s.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInventoryCapacity(t *testing.T) {
	ctx := context.Background()
	inv := NewInventory(1)
	require.NoError(t, inv.GiveNow(ctx, "a", []byte("x")))
	assert.ErrorIs(t, inv.GiveNow(ctx, "a", []byte("y")), domain.ErrInventoryFull)
	require.NoError(t, inv.GiveNow(ctx, "b", []byte("y")))

	unlimited := NewInventory(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, unlimited.GiveNow(ctx, "a", []byte("x")))
	}
}

func TestAuditStoreRetention(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Log(ctx, "listing.sold", map[string]any{"i": i}))
		clock = clock.Add(time.Hour)
	}

	cutoff := base.Add(90 * time.Minute)
	old, err := s.ListBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Len(t, old, 2)

	n, err := s.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rest, err := s.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, 2, rest[0].Detail["i"])
}

func TestSignalBusPatternSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewSignalBus()

	all, err := bus.Subscribe(ctx, "market:*")
	require.NoError(t, err)
	bids, err := bus.Subscribe(ctx, domain.ChannelBids)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.ChannelResolutions, []byte("r1")))
	require.NoError(t, bus.Publish(ctx, domain.ChannelBids, []byte("b1")))

	assert.Equal(t, "r1", string(<-all))
	assert.Equal(t, "b1", string(<-all))
	assert.Equal(t, "b1", string(<-bids))

	cancel()
	_, ok := <-bids
	assert.False(t, ok, "subscription closes with its context")
}

func TestSignalBusStreamRead(t *testing.T) {
	ctx := context.Background()
	bus := NewSignalBus()

	msgs, err := bus.StreamRead(ctx, domain.StreamResolutions, "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, bus.StreamAppend(ctx, domain.StreamResolutions, []byte(p)))
	}

	msgs, err = bus.StreamRead(ctx, domain.StreamResolutions, "0", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", string(msgs[0].Payload))

	msgs, err = bus.StreamRead(ctx, domain.StreamResolutions, msgs[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "c", string(msgs[0].Payload))
}
