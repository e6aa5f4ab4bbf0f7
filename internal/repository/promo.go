package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercata/storefront-api/internal/model"
)

type PromoRepository interface {
	// GetByCode expects an already upper-cased code and returns nil when absent.
	GetByCode(ctx context.Context, code string) (*model.PromoCode, error)
	Create(ctx context.Context, promo *model.PromoCode) error
	Update(ctx context.Context, promo *model.PromoCode) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]model.PromoCode, error)
	// IncrementUsage counts one successful application. It respects the usage
	// limit so concurrent applications cannot overshoot it.
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

type pgPromoRepo struct{ pool *pgxpool.Pool }

func NewPromoRepository(pool *pgxpool.Pool) PromoRepository {
	return &pgPromoRepo{pool: pool}
}

const promoColumns = `id, code, discount_type, discount_value, min_order_total, max_discount,
	usage_limit, used_count, starts_at, expires_at, active, categories, created_at, updated_at`

func scanPromo(row pgx.Row, p *model.PromoCode) error {
	return row.Scan(&p.ID, &p.Code, &p.DiscountType, &p.DiscountValue, &p.MinOrderTotal,
		&p.MaxDiscount, &p.UsageLimit, &p.UsedCount, &p.StartsAt, &p.ExpiresAt, &p.Active,
		&p.Categories, &p.CreatedAt, &p.UpdatedAt)
}

func (r *pgPromoRepo) GetByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	p := &model.PromoCode{}
	err := scanPromo(r.pool.QueryRow(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get promo: %w", err)
	}
	return p, nil
}

func (r *pgPromoRepo) Create(ctx context.Context, promo *model.PromoCode) error {
	promo.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO promo_codes (id, code, discount_type, discount_value, min_order_total, max_discount,
		                          usage_limit, used_count, starts_at, expires_at, active, categories, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10, $11, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		promo.ID, promo.Code, promo.DiscountType, promo.DiscountValue, promo.MinOrderTotal,
		promo.MaxDiscount, promo.UsageLimit, promo.StartsAt, promo.ExpiresAt, promo.Active, promo.Categories,
	).Scan(&promo.CreatedAt, &promo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create promo: %w", err)
	}
	return nil
}

func (r *pgPromoRepo) Update(ctx context.Context, promo *model.PromoCode) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE promo_codes SET code=$2, discount_type=$3, discount_value=$4, min_order_total=$5,
		        max_discount=$6, usage_limit=$7, starts_at=$8, expires_at=$9, active=$10, categories=$11,
		        updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		promo.ID, promo.Code, promo.DiscountType, promo.DiscountValue, promo.MinOrderTotal,
		promo.MaxDiscount, promo.UsageLimit, promo.StartsAt, promo.ExpiresAt, promo.Active, promo.Categories,
	).Scan(&promo.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("promo %s: %w", promo.ID, ErrNotFound)
		}
		return fmt.Errorf("update promo: %w", err)
	}
	return nil
}

func (r *pgPromoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promo: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("promo %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *pgPromoRepo) List(ctx context.Context) ([]model.PromoCode, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	defer rows.Close()

	var promos []model.PromoCode
	for rows.Next() {
		var p model.PromoCode
		if err := scanPromo(rows, &p); err != nil {
			return nil, fmt.Errorf("scan promo: %w", err)
		}
		promos = append(promos, p)
	}
	return promos, nil
}

func (r *pgPromoRepo) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE promo_codes SET used_count = used_count + 1, updated_at = NOW()
		 WHERE id = $1 AND (usage_limit = 0 OR used_count < usage_limit)`, id,
	)
	if err != nil {
		return fmt.Errorf("increment promo usage: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("promo %s: usage limit reached", id)
	}
	return nil
}
