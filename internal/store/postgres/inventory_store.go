package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// InventoryStore implements domain.ItemDelivery on the inventory_items table
// with a fixed per-actor capacity.
type InventoryStore struct {
	pool     *pgxpool.Pool
	capacity int
}

// NewInventoryStore creates an InventoryStore. A non-positive capacity is
// unlimited.
func NewInventoryStore(pool *pgxpool.Pool, capacity int) *InventoryStore {
	return &InventoryStore{pool: pool, capacity: capacity}
}

// GiveNow inserts item into the actor's inventory. The capacity check and the
// insert share a transaction serialized per actor by an advisory lock.
func (s *InventoryStore) GiveNow(ctx context.Context, actorID string, item []byte) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.capacity > 0 {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, actorID); err != nil {
			return fmt.Errorf("postgres: lock inventory %s: %w", actorID, err)
		}
		var held int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM inventory_items WHERE actor_id = $1`, actorID,
		).Scan(&held); err != nil {
			return fmt.Errorf("postgres: count inventory %s: %w", actorID, err)
		}
		if held >= s.capacity {
			return fmt.Errorf("postgres: give to %s: %w", actorID, domain.ErrInventoryFull)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO inventory_items (actor_id, item) VALUES ($1, $2)`, actorID, item,
	); err != nil {
		return fmt.Errorf("postgres: give to %s: %w", actorID, err)
	}
	return tx.Commit(ctx)
}

// Items returns the actor's inventory, oldest first.
func (s *InventoryStore) Items(ctx context.Context, actorID string) ([][]byte, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT item FROM inventory_items WHERE actor_id = $1 ORDER BY id`, actorID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list inventory %s: %w", actorID, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var item []byte
		if err := rows.Scan(&item); err != nil {
			return nil, fmt.Errorf("postgres: scan inventory item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Compile-time interface check.
var _ domain.ItemDelivery = (*InventoryStore)(nil)
