package domain

import "time"

// ListingMode selects how a listing is sold.
type ListingMode string

const (
	ListingModeFixedPrice ListingMode = "fixed_price"
	ListingModeBid        ListingMode = "bid"
)

// Valid reports whether m is a known listing mode.
func (m ListingMode) Valid() bool {
	return m == ListingModeFixedPrice || m == ListingModeBid
}

// Listing is a single sale offer for one item by one seller.
//
// ID, SellerID, Item, Mode, StartingPrice and EndTime never change after
// creation. CurrentPrice and HighestBidderID only move through an accepted bid.
type Listing struct {
	ID              string      `json:"id"`
	SellerID        string      `json:"seller_id"`
	Item            []byte      `json:"item"`
	Mode            ListingMode `json:"mode"`
	StartingPrice   int64       `json:"starting_price"`
	CurrentPrice    int64       `json:"current_price"`
	HighestBidderID *string     `json:"highest_bidder_id,omitempty"`
	EndTime         time.Time   `json:"end_time"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Expired reports whether the listing's timer has lapsed at now. An expired
// listing accepts neither bids nor purchases.
func (l Listing) Expired(now time.Time) bool {
	return !l.EndTime.After(now)
}

// HasBid reports whether a bid-mode listing has a standing bid.
func (l Listing) HasBid() bool {
	return l.HighestBidderID != nil && *l.HighestBidderID != ""
}

// Clone returns a deep copy so callers can never alias registry state.
func (l Listing) Clone() Listing {
	out := l
	if l.Item != nil {
		out.Item = append([]byte(nil), l.Item...)
	}
	if l.HighestBidderID != nil {
		id := *l.HighestBidderID
		out.HighestBidderID = &id
	}
	return out
}

// ListingFilter narrows listActive results. Zero values match everything.
type ListingFilter struct {
	Mode     ListingMode
	SellerID string
	MaxPrice int64
}

// Match reports whether l satisfies the filter.
func (f ListingFilter) Match(l Listing) bool {
	if f.Mode != "" && l.Mode != f.Mode {
		return false
	}
	if f.SellerID != "" && l.SellerID != f.SellerID {
		return false
	}
	if f.MaxPrice > 0 && l.CurrentPrice > f.MaxPrice {
		return false
	}
	return true
}

// BidOutcome describes an accepted bid so collaborators can notify the
// previous and the new highest bidder.
type BidOutcome struct {
	ListingID      string    `json:"listing_id"`
	PreviousBidder string    `json:"previous_bidder,omitempty"`
	PreviousAmount int64     `json:"previous_amount"`
	NewBidder      string    `json:"new_bidder"`
	NewAmount      int64     `json:"new_amount"`
	RefundQueued   bool      `json:"refund_queued"`
	At             time.Time `json:"at"`
}

// ResolutionKind names how a listing terminated.
type ResolutionKind string

const (
	ResolutionSold      ResolutionKind = "sold"      // fixed-price purchase
	ResolutionWon       ResolutionKind = "won"       // expired with a highest bidder
	ResolutionUnsold    ResolutionKind = "unsold"    // expired without a buyer
	ResolutionCancelled ResolutionKind = "cancelled" // withdrawn by the seller
)

// Resolution records the terminal transition of a listing.
type Resolution struct {
	ListingID   string         `json:"listing_id"`
	Kind        ResolutionKind `json:"kind"`
	SellerID    string         `json:"seller_id"`
	RecipientID string         `json:"recipient_id"`
	Amount      int64          `json:"amount"`
	ItemQueued  bool           `json:"item_queued"`
	FundsQueued bool           `json:"funds_queued"`
	At          time.Time      `json:"at"`
}
