package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL. Every balance
// change is a single conditional statement so concurrent callers can never
// overdraw an account.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a new AccountStore backed by the given connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

func (s *AccountStore) Get(ctx context.Context, actorID string) (domain.Account, error) {
	var a domain.Account
	err := s.pool.QueryRow(ctx, `
		SELECT actor_id, balance, pending_balance, updated_at
		FROM accounts WHERE actor_id = $1`, actorID,
	).Scan(&a.ActorID, &a.Balance, &a.PendingBalance, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", actorID, err)
	}
	return a, nil
}

func (s *AccountStore) Debit(ctx context.Context, actorID string, amount int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET balance = balance - $2, updated_at = NOW()
		WHERE actor_id = $1 AND balance >= $2`, actorID, amount)
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", actorID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: debit %s: %w", actorID, domain.ErrInsufficientFunds)
	}
	return nil
}

func (s *AccountStore) Credit(ctx context.Context, actorID string, amount int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (actor_id, balance, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (actor_id) DO UPDATE SET
			balance = accounts.balance + EXCLUDED.balance,
			updated_at = NOW()`, actorID, amount)
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", actorID, err)
	}
	return nil
}

func (s *AccountStore) CreditPending(ctx context.Context, actorID string, amount int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (actor_id, pending_balance, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (actor_id) DO UPDATE SET
			pending_balance = accounts.pending_balance + EXCLUDED.pending_balance,
			updated_at = NOW()`, actorID, amount)
	if err != nil {
		return fmt.Errorf("postgres: credit pending %s: %w", actorID, err)
	}
	return nil
}

func (s *AccountStore) MergePending(ctx context.Context, actorID string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var pending int64
	err = tx.QueryRow(ctx,
		`SELECT pending_balance FROM accounts WHERE actor_id = $1 FOR UPDATE`, actorID,
	).Scan(&pending)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: lock account %s: %w", actorID, err)
	}
	if pending == 0 {
		return 0, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2, pending_balance = 0, updated_at = NOW()
		WHERE actor_id = $1`, actorID, pending); err != nil {
		return 0, fmt.Errorf("postgres: merge pending %s: %w", actorID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit merge %s: %w", actorID, err)
	}
	return pending, nil
}

func (s *AccountStore) QueueItem(ctx context.Context, actorID string, item []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pending_items (actor_id, item) VALUES ($1, $2)`, actorID, item)
	if err != nil {
		return fmt.Errorf("postgres: queue item for %s: %w", actorID, err)
	}
	return nil
}

// ListPendingItems returns the actor's queued items in queue order.
func (s *AccountStore) ListPendingItems(ctx context.Context, actorID string) ([]domain.PendingItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor_id, item, created_at
		FROM pending_items WHERE actor_id = $1 ORDER BY id`, actorID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending items %s: %w", actorID, err)
	}
	defer rows.Close()

	var out []domain.PendingItem
	for rows.Next() {
		var p domain.PendingItem
		if err := rows.Scan(&p.ID, &p.ActorID, &p.Item, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan pending item: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pending items rows: %w", err)
	}
	return out, nil
}

func (s *AccountStore) DeletePendingItem(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM pending_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete pending item %d: %w", id, err)
	}
	return nil
}

func (s *AccountStore) RestorePendingItem(ctx context.Context, p domain.PendingItem) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pending_items (id, actor_id, item, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`, p.ID, p.ActorID, p.Item, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: restore pending item %d: %w", p.ID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AccountStore = (*AccountStore)(nil)
