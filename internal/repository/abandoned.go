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

type AbandonedCartRepository interface {
	GetByCartID(ctx context.Context, cartID uuid.UUID) (*model.AbandonedCart, error)
	// Upsert creates or updates the tracking record keyed by cart id and
	// refreshes its activity timestamp.
	Upsert(ctx context.Context, record *model.AbandonedCart) error
	DeleteByCartID(ctx context.Context, cartID uuid.UUID) error
	// Touch refreshes the activity timestamp of an active-stage record. No-op
	// for terminal stages and for carts with no record.
	Touch(ctx context.Context, cartID uuid.UUID) error
	// Reactivate moves an abandoned record back to an active stage and clears
	// the abandonment timestamp. No-op when the record is not abandoned.
	Reactivate(ctx context.Context, cartID uuid.UUID, stage model.FunnelStage) error
	// MarkStale flips active-stage records idle since before cutoff to the
	// abandoned stage. Idempotent: already-abandoned records never match.
	MarkStale(ctx context.Context, cutoff time.Time) (int64, error)
	ListAbandoned(ctx context.Context) ([]model.AbandonedCart, error)
}

type pgAbandonedRepo struct{ pool *pgxpool.Pool }

func NewAbandonedCartRepository(pool *pgxpool.Pool) AbandonedCartRepository {
	return &pgAbandonedRepo{pool: pool}
}

const abandonedColumns = `id, cart_id, email, phone, customer_name, shipping_address, city, postal_code,
	stage, last_activity_at, abandoned_at, created_at, updated_at`

func scanAbandoned(row pgx.Row, a *model.AbandonedCart) error {
	return row.Scan(&a.ID, &a.CartID, &a.Email, &a.Phone, &a.CustomerName, &a.ShippingAddress,
		&a.City, &a.PostalCode, &a.Stage, &a.LastActivityAt, &a.AbandonedAt, &a.CreatedAt, &a.UpdatedAt)
}

func (r *pgAbandonedRepo) GetByCartID(ctx context.Context, cartID uuid.UUID) (*model.AbandonedCart, error) {
	a := &model.AbandonedCart{}
	err := scanAbandoned(r.pool.QueryRow(ctx,
		`SELECT `+abandonedColumns+` FROM abandoned_carts WHERE cart_id = $1`, cartID), a)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get abandoned cart: %w", err)
	}
	return a, nil
}

func (r *pgAbandonedRepo) Upsert(ctx context.Context, record *model.AbandonedCart) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO abandoned_carts (id, cart_id, email, phone, customer_name, shipping_address, city,
		                              postal_code, stage, last_activity_at, abandoned_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NULL, NOW(), NOW())
		 ON CONFLICT (cart_id) DO UPDATE SET
		     email = EXCLUDED.email, phone = EXCLUDED.phone, customer_name = EXCLUDED.customer_name,
		     shipping_address = EXCLUDED.shipping_address, city = EXCLUDED.city,
		     postal_code = EXCLUDED.postal_code, stage = EXCLUDED.stage,
		     last_activity_at = NOW(), abandoned_at = NULL, updated_at = NOW()
		 RETURNING id, last_activity_at, created_at, updated_at`,
		record.ID, record.CartID, record.Email, record.Phone, record.CustomerName,
		record.ShippingAddress, record.City, record.PostalCode, record.Stage,
	).Scan(&record.ID, &record.LastActivityAt, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert abandoned cart: %w", err)
	}
	record.AbandonedAt = nil
	return nil
}

func (r *pgAbandonedRepo) DeleteByCartID(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM abandoned_carts WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("delete abandoned cart: %w", err)
	}
	return nil
}

func (r *pgAbandonedRepo) Touch(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE abandoned_carts
		 SET last_activity_at = NOW(), updated_at = NOW()
		 WHERE cart_id = $1 AND stage IN ($2, $3)`,
		cartID, model.StageCheckoutStarted, model.StageCheckoutInfoFilled,
	)
	if err != nil {
		return fmt.Errorf("touch abandoned cart: %w", err)
	}
	return nil
}

func (r *pgAbandonedRepo) Reactivate(ctx context.Context, cartID uuid.UUID, stage model.FunnelStage) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE abandoned_carts
		 SET stage = $2, abandoned_at = NULL, last_activity_at = NOW(), updated_at = NOW()
		 WHERE cart_id = $1 AND stage = $3`,
		cartID, stage, model.StageAbandoned,
	)
	if err != nil {
		return fmt.Errorf("reactivate abandoned cart: %w", err)
	}
	return nil
}

func (r *pgAbandonedRepo) MarkStale(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE abandoned_carts
		 SET stage = $1, abandoned_at = NOW(), updated_at = NOW()
		 WHERE stage IN ($2, $3) AND last_activity_at < $4`,
		model.StageAbandoned, model.StageCheckoutStarted, model.StageCheckoutInfoFilled, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale carts: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgAbandonedRepo) ListAbandoned(ctx context.Context) ([]model.AbandonedCart, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+abandonedColumns+` FROM abandoned_carts WHERE stage = $1 ORDER BY abandoned_at DESC`,
		model.StageAbandoned,
	)
	if err != nil {
		return nil, fmt.Errorf("list abandoned carts: %w", err)
	}
	defer rows.Close()

	var records []model.AbandonedCart
	for rows.Next() {
		var a model.AbandonedCart
		if err := scanAbandoned(rows, &a); err != nil {
			return nil, fmt.Errorf("scan abandoned cart: %w", err)
		}
		records = append(records, a)
	}
	return records, nil
}
