package market

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/store/memory"
)

type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAlerter) Notify(ctx context.Context, event, title, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, event+": "+message)
	return nil
}

type streamingBus struct {
	recordingBus
	appended []string
}

func (b *streamingBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	b.appended = append(b.appended, stream)
	return nil
}

func (b *streamingBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestEventsUnpaidRaisesAlert(t *testing.T) {
	audit := memory.NewAuditStore()
	alerts := &recordingAlerter{}
	ev := NewEvents(nil, audit, 8, discardLogger()).WithAlerter(alerts)

	ev.unpaid("l1", "seller", 40, errors.New("ledger offline"))
	ev.flush()

	require.Len(t, alerts.messages, 1)
	assert.Equal(t, "settlement.unpaid: listing l1: seller owed 40 (ledger offline)", alerts.messages[0])

	entries, err := audit.List(context.Background(), domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, AuditSettlementUnpaid, entries[0].Event)
	assert.Equal(t, "seller", entries[0].Detail["actor_id"])
}

func TestEventsResolutionsAppendedToStream(t *testing.T) {
	bus := &streamingBus{}
	ev := NewEvents(bus, nil, 8, discardLogger())

	ev.bidAccepted(domain.BidOutcome{ListingID: "l1"})
	ev.resolved(domain.Resolution{ListingID: "l1", Kind: domain.ResolutionWon})
	ev.flush()

	assert.Equal(t, 1, bus.count(domain.ChannelBids))
	assert.Equal(t, 1, bus.count(domain.ChannelResolutions))
	assert.Equal(t, []string{domain.StreamResolutions}, bus.appended)
}

func TestEventsDropWhenBufferFull(t *testing.T) {
	bus := &recordingBus{}
	ev := NewEvents(bus, nil, 1, discardLogger())

	ev.bidAccepted(domain.BidOutcome{ListingID: "a"})
	ev.bidAccepted(domain.BidOutcome{ListingID: "b"})
	ev.flush()

	assert.Equal(t, 1, bus.count(domain.ChannelBids))
}

func TestNilEventsIsSafe(t *testing.T) {
	var ev *Events
	assert.NotPanics(t, func() {
		ev.bidAccepted(domain.BidOutcome{})
		ev.unpaid("l", "s", 1, errors.New("x"))
	})
}
