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

var (
	// ErrInsufficientStock is returned when a conditional stock decrement matches
	// no row, i.e. the variant no longer has enough stock.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNotFound is returned by writes that target a row which no longer exists.
	// Reads report absence as a nil result instead.
	ErrNotFound = errors.New("not found")
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, limit, offset int, search string) ([]model.Product, int, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*model.Variant, error)
	UpdateVariant(ctx context.Context, variant *model.Variant) error
	DecrementStock(ctx context.Context, tx pgx.Tx, productID, variantID uuid.UUID, quantity int) error
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	product.ID = uuid.New()
	err = tx.QueryRow(ctx,
		`INSERT INTO products (id, slug, name, description, category_id, images, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING created_at, updated_at`,
		product.ID, product.Slug, product.Name, product.Description, product.CategoryID, product.Images,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	for i := range product.Variants {
		v := &product.Variants[i]
		v.ID = uuid.New()
		v.ProductID = product.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO product_variants (id, product_id, sku, attributes, price, sale_price, stock, units_sold, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW()) RETURNING created_at, updated_at`,
			v.ID, v.ProductID, v.SKU, v.Attributes, v.Price, v.SalePrice, v.Stock,
		).Scan(&v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert variant: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p := &model.Product{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, slug, name, description, category_id, images, created_at, updated_at
		 FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.CategoryID, &p.Images, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	variants, err := r.loadVariants(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	p.Variants = variants[id]
	return p, nil
}

func (r *pgProductRepo) List(ctx context.Context, limit, offset int, search string) ([]model.Product, int, error) {
	var total int
	countQ := `SELECT COUNT(*) FROM products WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')`
	if err := r.pool.QueryRow(ctx, countQ, search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, slug, name, description, category_id, images, created_at, updated_at
		 FROM products
		 WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		search, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	var ids []uuid.UUID
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.CategoryID, &p.Images, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}

	if len(ids) > 0 {
		variants, err := r.loadVariants(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range products {
			products[i].Variants = variants[products[i].ID]
		}
	}
	return products, total, nil
}

func (r *pgProductRepo) loadVariants(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]model.Variant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, sku, attributes, price, sale_price, stock, units_sold, created_at, updated_at
		 FROM product_variants WHERE product_id = ANY($1) ORDER BY created_at`,
		productIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]model.Variant)
	for rows.Next() {
		var v model.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Attributes, &v.Price, &v.SalePrice, &v.Stock, &v.UnitsSold, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out[v.ProductID] = append(out[v.ProductID], v)
	}
	return out, nil
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE products SET slug=$2, name=$3, description=$4, category_id=$5, images=$6, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		product.ID, product.Slug, product.Name, product.Description, product.CategoryID, product.Images,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *pgProductRepo) FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*model.Variant, error) {
	v := &model.Variant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, product_id, sku, attributes, price, sale_price, stock, units_sold, created_at, updated_at
		 FROM product_variants WHERE id = $1 AND product_id = $2`,
		variantID, productID,
	).Scan(&v.ID, &v.ProductID, &v.SKU, &v.Attributes, &v.Price, &v.SalePrice, &v.Stock, &v.UnitsSold, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find variant: %w", err)
	}
	return v, nil
}

func (r *pgProductRepo) UpdateVariant(ctx context.Context, variant *model.Variant) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE product_variants SET sku=$2, attributes=$3, price=$4, sale_price=$5, stock=$6, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		variant.ID, variant.SKU, variant.Attributes, variant.Price, variant.SalePrice, variant.Stock,
	).Scan(&variant.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("variant %s: %w", variant.ID, ErrNotFound)
		}
		return fmt.Errorf("update variant: %w", err)
	}
	return nil
}

// DecrementStock conditionally takes quantity units from a variant's stock and
// adds them to its sold count in a single statement. The match is scoped to
// both product and variant id so concurrent purchases of sibling variants do
// not interfere.
func (r *pgProductRepo) DecrementStock(ctx context.Context, tx pgx.Tx, productID, variantID uuid.UUID, quantity int) error {
	ct, err := tx.Exec(ctx,
		`UPDATE product_variants
		 SET stock = stock - $3, units_sold = units_sold + $3, updated_at = NOW()
		 WHERE id = $1 AND product_id = $2 AND stock >= $3`,
		variantID, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("variant %s of product %s: %w", variantID, productID, ErrInsufficientStock)
	}
	return nil
}
