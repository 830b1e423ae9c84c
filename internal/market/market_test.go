package market

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/ledger"
	"github.com/alanyoungcy/auctionhouse/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingBus struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func (b *recordingBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.msgs == nil {
		b.msgs = make(map[string][][]byte)
	}
	b.msgs[channel] = append(b.msgs[channel], payload)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *recordingBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs[channel])
}

type harness struct {
	clock     *fakeClock
	store     *memory.ListingStore
	accounts  *memory.AccountStore
	presence  *memory.Presence
	inventory *memory.Inventory
	audit     *memory.AuditStore
	bus       *recordingBus
	gateway   *ledger.Gateway
	persister *Persister
	registry  *Registry
	events    *Events
	engine    *Engine
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	capacity int
	ledger   func(*ledger.Gateway) domain.LedgerGateway
	items    func(domain.ItemDelivery) domain.ItemDelivery
	limiter  domain.RateLimiter
	engine   EngineConfig
}

func withCapacity(n int) harnessOption {
	return func(c *harnessConfig) { c.capacity = n }
}

func withLedger(fn func(*ledger.Gateway) domain.LedgerGateway) harnessOption {
	return func(c *harnessConfig) { c.ledger = fn }
}

func withItems(fn func(domain.ItemDelivery) domain.ItemDelivery) harnessOption {
	return func(c *harnessConfig) { c.items = fn }
}

func withLimiter(l domain.RateLimiter, limit int, window time.Duration) harnessOption {
	return func(c *harnessConfig) {
		c.limiter = l
		c.engine = EngineConfig{BidRateLimit: limit, BidRateWindow: window}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{capacity: 8}
	for _, o := range opts {
		o(&cfg)
	}

	logger := discardLogger()
	h := &harness{
		clock:     newFakeClock(),
		store:     memory.NewListingStore(),
		accounts:  memory.NewAccountStore(),
		presence:  memory.NewPresence(),
		inventory: memory.NewInventory(cfg.capacity),
		audit:     memory.NewAuditStore(),
		bus:       &recordingBus{},
	}
	h.gateway = ledger.NewGateway(h.accounts, h.presence, h.inventory, logger)

	var gw domain.LedgerGateway = h.gateway
	if cfg.ledger != nil {
		gw = cfg.ledger(h.gateway)
	}
	var items domain.ItemDelivery = h.inventory
	if cfg.items != nil {
		items = cfg.items(h.inventory)
	}

	h.persister = NewPersister(h.store, PersisterConfig{Workers: 2, QueueSize: 64, Timeout: time.Second}, logger)
	h.registry = NewRegistry(h.persister, RegistryConfig{MaxDuration: 24 * time.Hour, Now: h.clock.Now}, logger)
	h.events = NewEvents(h.bus, h.audit, 256, logger)
	h.engine = NewEngine(h.registry, gw, items, h.events, cfg.limiter, cfg.engine, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.persister.Close(ctx)
	})
	return h
}

// drain waits for every queued store write to land.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.persister.Close(ctx))
}

func (h *harness) fund(t *testing.T, actorID string, amount int64) {
	t.Helper()
	require.NoError(t, h.gateway.Deposit(context.Background(), actorID, amount))
}

func (h *harness) online(t *testing.T, actorIDs ...string) {
	t.Helper()
	for _, id := range actorIDs {
		require.NoError(t, h.presence.MarkOnline(context.Background(), id))
	}
}

func (h *harness) balance(t *testing.T, actorID string) int64 {
	t.Helper()
	bal, err := h.gateway.Balance(context.Background(), actorID)
	require.NoError(t, err)
	return bal
}

func (h *harness) account(t *testing.T, actorID string) domain.Account {
	t.Helper()
	acct, err := h.gateway.Account(context.Background(), actorID)
	require.NoError(t, err)
	return acct
}

func (h *harness) create(t *testing.T, sellerID string, mode domain.ListingMode, price int64, d time.Duration) string {
	t.Helper()
	id, err := h.engine.Create(context.Background(), sellerID, []byte("item:"+sellerID), mode, price, d)
	require.NoError(t, err)
	return id
}

func (h *harness) pendingItems(t *testing.T, actorID string) []domain.PendingItem {
	t.Helper()
	items, err := h.accounts.ListPendingItems(context.Background(), actorID)
	require.NoError(t, err)
	return items
}

// ctxLedger fails any call made on a finished context, the way a
// database-backed ledger does. afterDebit runs once a debit has landed.
type ctxLedger struct {
	domain.LedgerGateway
	afterDebit func()
}

func (l *ctxLedger) Debit(ctx context.Context, actorID string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.LedgerGateway.Debit(ctx, actorID, amount); err != nil {
		return err
	}
	if l.afterDebit != nil {
		l.afterDebit()
	}
	return nil
}

func (l *ctxLedger) CreditOnline(ctx context.Context, actorID string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.LedgerGateway.CreditOnline(ctx, actorID, amount)
}

func (l *ctxLedger) CreditPending(ctx context.Context, actorID string, amount int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.LedgerGateway.CreditPending(ctx, actorID, amount)
}

func (l *ctxLedger) QueuePendingItem(ctx context.Context, actorID string, item []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.LedgerGateway.QueuePendingItem(ctx, actorID, item)
}

// cancelAfterGive cancels the caller's context as soon as an item changes hands.
type cancelAfterGive struct {
	domain.ItemDelivery
	cancel context.CancelFunc
}

func (c *cancelAfterGive) GiveNow(ctx context.Context, actorID string, item []byte) error {
	err := c.ItemDelivery.GiveNow(ctx, actorID, item)
	c.cancel()
	return err
}

// funds sums balance and pending balance.
func (h *harness) funds(t *testing.T, actorID string) int64 {
	t.Helper()
	acct := h.account(t, actorID)
	return acct.Balance + acct.PendingBalance
}
