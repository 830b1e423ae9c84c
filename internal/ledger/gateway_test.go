package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/store/memory"
)

func newTestGateway(capacity int) (*Gateway, *memory.AccountStore, *memory.Inventory, *memory.Presence) {
	accounts := memory.NewAccountStore()
	inv := memory.NewInventory(capacity)
	presence := memory.NewPresence()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGateway(accounts, presence, inv, logger), accounts, inv, presence
}

func TestGatewayBalanceUnknownActor(t *testing.T) {
	g, _, _, _ := newTestGateway(0)
	bal, err := g.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestGatewayDebitCredit(t *testing.T) {
	ctx := context.Background()
	g, _, _, _ := newTestGateway(0)

	require.NoError(t, g.Deposit(ctx, "a", 100))
	require.NoError(t, g.Debit(ctx, "a", 30))
	assert.ErrorIs(t, g.Debit(ctx, "a", 71), domain.ErrInsufficientFunds)
	require.NoError(t, g.CreditOnline(ctx, "a", 5))
	require.NoError(t, g.CreditPending(ctx, "a", 7))

	acct, err := g.Account(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(75), acct.Balance)
	assert.Equal(t, int64(7), acct.PendingBalance)

	assert.ErrorIs(t, g.Debit(ctx, "a", -1), domain.ErrValidation)
	assert.ErrorIs(t, g.CreditOnline(ctx, "a", -1), domain.ErrValidation)
	assert.ErrorIs(t, g.Deposit(ctx, "a", 0), domain.ErrValidation)
}

func TestGatewayReachability(t *testing.T) {
	ctx := context.Background()
	g, _, _, _ := newTestGateway(0)

	ok, err := g.IsReachable(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.Login(ctx, "a")
	require.NoError(t, err)
	ok, _ = g.IsReachable(ctx, "a")
	assert.True(t, ok)

	require.NoError(t, g.Logout(ctx, "a"))
	ok, _ = g.IsReachable(ctx, "a")
	assert.False(t, ok)
}

func TestGatewayLoginClaimsPending(t *testing.T) {
	ctx := context.Background()
	g, accounts, inv, _ := newTestGateway(2)

	require.NoError(t, g.CreditPending(ctx, "a", 40))
	require.NoError(t, g.CreditPending(ctx, "a", 2))
	for _, item := range []string{"first", "second", "third"} {
		require.NoError(t, g.QueuePendingItem(ctx, "a", []byte(item)))
	}
	require.NoError(t, g.QueuePendingItem(ctx, "b", []byte("not-mine")))

	res, err := g.Login(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Merged)
	assert.Equal(t, 2, res.ItemsDelivered)
	assert.Equal(t, 1, res.ItemsRemaining)

	assert.Equal(t, [][]byte{[]byte("first"), []byte("second")}, inv.Items("a"))
	left, err := accounts.ListPendingItems(ctx, "a")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "third", string(left[0].Item))

	acct, err := g.Account(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), acct.Balance)
	assert.Zero(t, acct.PendingBalance)
}

func TestGatewayLoginKeepsQueueOrderWhenFull(t *testing.T) {
	ctx := context.Background()
	g, accounts, _, _ := newTestGateway(1)

	require.NoError(t, g.QueuePendingItem(ctx, "a", []byte("first")))
	require.NoError(t, g.QueuePendingItem(ctx, "a", []byte("second")))
	require.NoError(t, g.QueuePendingItem(ctx, "a", []byte("third")))

	_, err := g.Login(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, g.Logout(ctx, "a"))

	left, err := accounts.ListPendingItems(ctx, "a")
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "second", string(left[0].Item))
	assert.Equal(t, "third", string(left[1].Item))
}

func TestGatewayLoginStoreFailure(t *testing.T) {
	ctx := context.Background()
	g, accounts, _, _ := newTestGateway(0)
	accounts.FailWith(assert.AnError)

	_, err := g.Login(ctx, "a")
	assert.ErrorIs(t, err, assert.AnError)
}
