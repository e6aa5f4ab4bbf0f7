package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercata/storefront-api/internal/model"
)

type CartRepository interface {
	// GetByOwner returns nil when the owner has no cart.
	GetByOwner(ctx context.Context, owner model.CartOwner) (*model.Cart, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error)
	// Replace overwrites the owner's cart contents, creating the cart if
	// needed, and refreshes the activity timestamp.
	Replace(ctx context.Context, owner model.CartOwner, items []model.CartItem) (*model.Cart, error)
	Delete(ctx context.Context, cartID uuid.UUID) error
	DeleteStaleGuestCarts(ctx context.Context, cutoff time.Time) (int64, error)
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

func ownerClause(owner model.CartOwner) (string, any) {
	if owner.UserID != nil {
		return "user_id = $1", *owner.UserID
	}
	return "session_id = $1", *owner.SessionID
}

func (r *pgCartRepo) GetByOwner(ctx context.Context, owner model.CartOwner) (*model.Cart, error) {
	clause, arg := ownerClause(owner)
	cart := &model.Cart{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, session_id, last_activity_at, created_at, updated_at FROM carts WHERE `+clause, arg,
	).Scan(&cart.ID, &cart.UserID, &cart.SessionID, &cart.LastActivityAt, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if err := r.loadItems(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *pgCartRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	cart := &model.Cart{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, session_id, last_activity_at, created_at, updated_at FROM carts WHERE id = $1`, id,
	).Scan(&cart.ID, &cart.UserID, &cart.SessionID, &cart.LastActivityAt, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if err := r.loadItems(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *pgCartRepo) loadItems(ctx context.Context, cart *model.Cart) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, cart_id, product_id, variant_id, quantity FROM cart_items WHERE cart_id = $1`, cart.ID,
	)
	if err != nil {
		return fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.VariantID, &item.Quantity); err != nil {
			return fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	return nil
}

func (r *pgCartRepo) Replace(ctx context.Context, owner model.CartOwner, items []model.CartItem) (*model.Cart, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	clause, arg := ownerClause(owner)
	cart := &model.Cart{}
	err = tx.QueryRow(ctx,
		`SELECT id, user_id, session_id FROM carts WHERE `+clause, arg,
	).Scan(&cart.ID, &cart.UserID, &cart.SessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		cart.ID = uuid.New()
		cart.UserID = owner.UserID
		cart.SessionID = owner.SessionID
		err = tx.QueryRow(ctx,
			`INSERT INTO carts (id, user_id, session_id, last_activity_at, created_at, updated_at)
			 VALUES ($1, $2, $3, NOW(), NOW(), NOW()) RETURNING last_activity_at, created_at, updated_at`,
			cart.ID, cart.UserID, cart.SessionID,
		).Scan(&cart.LastActivityAt, &cart.CreatedAt, &cart.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("create cart: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	} else {
		err = tx.QueryRow(ctx,
			`UPDATE carts SET last_activity_at = NOW(), updated_at = NOW() WHERE id = $1
			 RETURNING last_activity_at, created_at, updated_at`,
			cart.ID,
		).Scan(&cart.LastActivityAt, &cart.CreatedAt, &cart.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("touch cart: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
		return nil, fmt.Errorf("clear cart items: %w", err)
	}

	for i := range items {
		items[i].ID = uuid.New()
		items[i].CartID = cart.ID
		_, err := tx.Exec(ctx,
			`INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (cart_id, product_id, variant_id)
			 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
			items[i].ID, items[i].CartID, items[i].ProductID, items[i].VariantID, items[i].Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("insert cart item: %w", err)
		}
	}
	cart.Items = items

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return cart, nil
}

func (r *pgCartRepo) Delete(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (r *pgCartRepo) DeleteStaleGuestCarts(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx,
		`DELETE FROM carts WHERE session_id IS NOT NULL AND last_activity_at < $1`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale guest carts: %w", err)
	}
	return ct.RowsAffected(), nil
}
