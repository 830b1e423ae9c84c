package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Audit event names.
const (
	AuditBidAccepted      = "bid.accepted"
	AuditSettlementUnpaid = "settlement.unpaid"
	auditListingPrefix    = "listing."
)

type marketEvent struct {
	channel string
	stream  string
	audit   string
	payload any
	detail  map[string]any
}

// Events fans accepted bids and resolutions out to the signal bus and the
// audit log. Publishing happens on its own goroutine so no listing lock is
// ever held across that I/O; when the buffer is full events are dropped and
// logged.
type Events struct {
	bus    domain.SignalBus
	stream domain.EventStream
	audit  domain.AuditStore
	alert  domain.Alerter
	ch     chan marketEvent
	logger *slog.Logger
}

// NewEvents creates an Events dispatcher. bus and audit may be nil. A bus that
// is also an EventStream additionally gets every resolution appended to
// StreamResolutions.
func NewEvents(bus domain.SignalBus, audit domain.AuditStore, buffer int, logger *slog.Logger) *Events {
	if buffer <= 0 {
		buffer = 256
	}
	stream, _ := bus.(domain.EventStream)
	return &Events{
		bus:    bus,
		stream: stream,
		audit:  audit,
		ch:     make(chan marketEvent, buffer),
		logger: logger.With(slog.String("component", "market_events")),
	}
}

// WithAlerter routes unpaid settlements to operators. Call before Run.
func (ev *Events) WithAlerter(a domain.Alerter) *Events {
	ev.alert = a
	return ev
}

func (ev *Events) bidAccepted(o domain.BidOutcome) {
	ev.emit(marketEvent{
		channel: domain.ChannelBids,
		audit:   AuditBidAccepted,
		payload: o,
		detail: map[string]any{
			"listing_id":      o.ListingID,
			"bidder":          o.NewBidder,
			"amount":          o.NewAmount,
			"previous_bidder": o.PreviousBidder,
			"previous_amount": o.PreviousAmount,
			"refund_queued":   o.RefundQueued,
		},
	})
}

func (ev *Events) resolved(r domain.Resolution) {
	ev.emit(marketEvent{
		channel: domain.ChannelResolutions,
		stream:  domain.StreamResolutions,
		audit:   auditListingPrefix + string(r.Kind),
		payload: r,
		detail: map[string]any{
			"listing_id":   r.ListingID,
			"seller_id":    r.SellerID,
			"recipient_id": r.RecipientID,
			"amount":       r.Amount,
			"item_queued":  r.ItemQueued,
			"funds_queued": r.FundsQueued,
		},
	})
}

// unpaid records money owed to actorID, who is a seller awaiting proceeds or a
// buyer or bidder awaiting a refund.
func (ev *Events) unpaid(listingID, actorID string, amount int64, cause error) {
	ev.emit(marketEvent{
		audit: AuditSettlementUnpaid,
		detail: map[string]any{
			"listing_id": listingID,
			"actor_id":   actorID,
			"amount":     amount,
			"error":      cause.Error(),
		},
	})
}

func (ev *Events) emit(e marketEvent) {
	if ev == nil {
		return
	}
	select {
	case ev.ch <- e:
	default:
		ev.logger.Warn("market event buffer full, dropping event",
			slog.String("audit", e.audit),
		)
	}
}

// Run publishes events until ctx is cancelled, then flushes what is already
// buffered with a short deadline.
func (ev *Events) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			ev.flush()
			return ctx.Err()
		case e := <-ev.ch:
			ev.publish(ctx, e)
		}
	}
}

func (ev *Events) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case e := <-ev.ch:
			ev.publish(ctx, e)
		default:
			return
		}
	}
}

func (ev *Events) publish(ctx context.Context, e marketEvent) {
	if ev.bus != nil && e.channel != "" {
		data, err := json.Marshal(e.payload)
		if err == nil {
			err = ev.bus.Publish(ctx, e.channel, data)
		}
		if err == nil && ev.stream != nil && e.stream != "" {
			err = ev.stream.StreamAppend(ctx, e.stream, data)
		}
		if err != nil {
			ev.logger.WarnContext(ctx, "publish market event failed",
				slog.String("channel", e.channel),
				slog.String("error", err.Error()),
			)
		}
	}
	if ev.alert != nil && e.audit == AuditSettlementUnpaid {
		msg := fmt.Sprintf("listing %v: %v owed %v (%v)",
			e.detail["listing_id"], e.detail["actor_id"], e.detail["amount"], e.detail["error"])
		if err := ev.alert.Notify(ctx, e.audit, "Unpaid settlement", msg); err != nil {
			ev.logger.WarnContext(ctx, "unpaid settlement alert failed",
				slog.String("error", err.Error()),
			)
		}
	}
	if ev.audit != nil && e.audit != "" {
		if err := ev.audit.Log(ctx, e.audit, e.detail); err != nil {
			ev.logger.WarnContext(ctx, "audit log failed",
				slog.String("event", e.audit),
				slog.String("error", err.Error()),
			)
		}
	}
}
