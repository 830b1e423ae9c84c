package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListingExpired(t *testing.T) {
	end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := Listing{EndTime: end}

	assert.False(t, l.Expired(end.Add(-time.Nanosecond)))
	assert.True(t, l.Expired(end), "a listing is expired at its end time")
	assert.True(t, l.Expired(end.Add(time.Second)))
}

func TestListingCloneIsDeep(t *testing.T) {
	bidder := "alice"
	l := Listing{Item: []byte("sword"), HighestBidderID: &bidder}

	c := l.Clone()
	c.Item[0] = 'S'
	*c.HighestBidderID = "bob"

	assert.Equal(t, "sword", string(l.Item))
	assert.Equal(t, "alice", *l.HighestBidderID)
}

func TestListingHasBid(t *testing.T) {
	empty := ""
	someone := "x"
	assert.False(t, Listing{}.HasBid())
	assert.False(t, Listing{HighestBidderID: &empty}.HasBid())
	assert.True(t, Listing{HighestBidderID: &someone}.HasBid())
}

func TestListingFilterMatch(t *testing.T) {
	l := Listing{SellerID: "s", Mode: ListingModeBid, CurrentPrice: 50}

	tests := []struct {
		name   string
		filter ListingFilter
		want   bool
	}{
		{"zero filter", ListingFilter{}, true},
		{"mode match", ListingFilter{Mode: ListingModeBid}, true},
		{"mode mismatch", ListingFilter{Mode: ListingModeFixedPrice}, false},
		{"seller mismatch", ListingFilter{SellerID: "t"}, false},
		{"price at cap", ListingFilter{MaxPrice: 50}, true},
		{"price above cap", ListingFilter{MaxPrice: 49}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(l))
		})
	}
}

func TestInvalidBidIsValidationError(t *testing.T) {
	assert.ErrorIs(t, ErrInvalidBid, ErrValidation)
}
