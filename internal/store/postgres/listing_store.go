package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given connection pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// LoadAll returns every persisted listing, soonest end time first.
func (s *ListingStore) LoadAll(ctx context.Context) ([]domain.Listing, error) {
	const query = `
		SELECT id, seller_id, item, mode, starting_price, current_price,
		       highest_bidder_id, end_time, created_at
		FROM listings
		ORDER BY end_time, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: load listings: %w", err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		var (
			l    domain.Listing
			mode string
		)
		if err := rows.Scan(
			&l.ID, &l.SellerID, &l.Item, &mode, &l.StartingPrice, &l.CurrentPrice,
			&l.HighestBidderID, &l.EndTime, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		l.Mode = domain.ListingMode(mode)
		l.EndTime = l.EndTime.UTC()
		l.CreatedAt = l.CreatedAt.UTC()
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load listings rows: %w", err)
	}
	return out, nil
}

// Upsert writes the full listing state. Only the bid fields can change after
// the first insert.
func (s *ListingStore) Upsert(ctx context.Context, l domain.Listing) error {
	const query = `
		INSERT INTO listings (
			id, seller_id, item, mode, starting_price, current_price,
			highest_bidder_id, end_time, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			current_price     = EXCLUDED.current_price,
			highest_bidder_id = EXCLUDED.highest_bidder_id,
			updated_at        = NOW()`

	_, err := s.pool.Exec(ctx, query,
		l.ID, l.SellerID, l.Item, string(l.Mode), l.StartingPrice, l.CurrentPrice,
		l.HighestBidderID, l.EndTime, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert listing %s: %w", l.ID, err)
	}
	return nil
}

// Delete removes a listing. Deleting a missing id is not an error.
func (s *ListingStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete listing %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ListingStore = (*ListingStore)(nil)
