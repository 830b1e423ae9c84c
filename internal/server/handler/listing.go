package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// ListingService defines the marketplace operations the listing handler
// requires.
type ListingService interface {
	Create(ctx context.Context, sellerID string, item []byte, mode domain.ListingMode, startingPrice int64, duration time.Duration) (string, error)
	Get(id string) (domain.Listing, error)
	ListActive(filter domain.ListingFilter) []domain.Listing
	ListBySeller(sellerID string) []domain.Listing
	PlaceBid(ctx context.Context, listingID, bidderID string, amount int64) (domain.BidOutcome, error)
	Purchase(ctx context.Context, listingID, buyerID string) (domain.Resolution, error)
	Cancel(ctx context.Context, listingID, requesterID string) (domain.Resolution, error)
}

// ListingHandler serves listing, bid and purchase endpoints.
type ListingHandler struct {
	market ListingService
	logger *slog.Logger
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(market ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		market: market,
		logger: logHandler(logger, "listing"),
	}
}

type listListingsResponse struct {
	Listings []domain.Listing `json:"listings"`
}

// ListListings returns the live listings.
// GET /api/listings?mode=bid&seller=...&max_price=100
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ListingFilter{
		Mode:     domain.ListingMode(q.Get("mode")),
		SellerID: q.Get("seller"),
	}
	if filter.Mode != "" && !filter.Mode.Valid() {
		writeError(w, http.StatusBadRequest, "mode must be fixed_price or bid")
		return
	}
	if v := q.Get("max_price"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "max_price must be a non-negative integer")
			return
		}
		filter.MaxPrice = n
	}

	listings := h.market.ListActive(filter)
	if listings == nil {
		listings = []domain.Listing{}
	}
	writeJSON(w, http.StatusOK, listListingsResponse{Listings: listings})
}

// ListBySeller returns a seller's live listings.
// GET /api/sellers/{id}/listings
func (h *ListingHandler) ListBySeller(w http.ResponseWriter, r *http.Request) {
	listings := h.market.ListBySeller(pathParam(r, "id"))
	if listings == nil {
		listings = []domain.Listing{}
	}
	writeJSON(w, http.StatusOK, listListingsResponse{Listings: listings})
}

// GetListing returns one listing.
// GET /api/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.market.Get(pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get listing", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// createListingRequest is the body of POST /api/listings. Item is the opaque
// payload, base64 encoded in JSON.
type createListingRequest struct {
	SellerID      string `json:"seller_id"`
	Item          []byte `json:"item"`
	Mode          string `json:"mode"`
	StartingPrice int64  `json:"starting_price"`
	Duration      string `json:"duration"`
}

// CreateListing lists an item.
// POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		writeError(w, http.StatusBadRequest, "duration must be a Go duration such as \"1h\"")
		return
	}

	id, err := h.market.Create(r.Context(), req.SellerID, req.Item, domain.ListingMode(req.Mode), req.StartingPrice, d)
	if err != nil {
		writeDomainError(w, r, h.logger, "create listing", err)
		return
	}
	l, err := h.market.Get(id)
	if err != nil {
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// CancelListing withdraws a listing on behalf of its seller.
// DELETE /api/listings/{id}?seller_id=...
func (h *ListingHandler) CancelListing(w http.ResponseWriter, r *http.Request) {
	requester := r.URL.Query().Get("seller_id")
	if requester == "" {
		writeError(w, http.StatusBadRequest, "seller_id query parameter required")
		return
	}
	res, err := h.market.Cancel(r.Context(), pathParam(r, "id"), requester)
	if err != nil {
		writeDomainError(w, r, h.logger, "cancel listing", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type placeBidRequest struct {
	BidderID string `json:"bidder_id"`
	Amount   int64  `json:"amount"`
}

// PlaceBid raises the bid on an auction listing.
// POST /api/listings/{id}/bids
func (h *ListingHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.market.PlaceBid(r.Context(), pathParam(r, "id"), req.BidderID, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, "place bid", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type purchaseRequest struct {
	BuyerID string `json:"buyer_id"`
}

// Purchase buys a fixed-price listing.
// POST /api/listings/{id}/purchase
func (h *ListingHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.market.Purchase(r.Context(), pathParam(r, "id"), req.BuyerID)
	if err != nil {
		writeDomainError(w, r, h.logger, "purchase", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
