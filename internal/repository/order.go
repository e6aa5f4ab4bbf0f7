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

type OrderRepository interface {
	// Create persists the order with its snapshot items and initial status
	// history, assigns the daily sequential order number and decrements the
	// stock of every purchased variant, all in one transaction. It fails with
	// ErrInsufficientStock when any variant cannot cover its quantity.
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, note string) error
	UpdateCourier(ctx context.Context, id uuid.UUID, courierName, trackingNumber string) error
}

type pgOrderRepo struct {
	pool     *pgxpool.Pool
	products ProductRepository
	prefix   string
}

func NewOrderRepository(pool *pgxpool.Pool, products ProductRepository, prefix string) OrderRepository {
	return &pgOrderRepo{pool: pool, products: products, prefix: prefix}
}

// nextOrderNumber reserves the next sequence for the given day through an
// atomic upsert-and-increment on the counter row. Single round trip, so two
// concurrent checkouts can never observe the same sequence.
func (r *pgOrderRepo) nextOrderNumber(ctx context.Context, tx pgx.Tx, day time.Time) (string, error) {
	var seq int
	err := tx.QueryRow(ctx,
		`INSERT INTO order_counters (day, seq) VALUES ($1, 1)
		 ON CONFLICT (day) DO UPDATE SET seq = order_counters.seq + 1
		 RETURNING seq`,
		day.Format("2006-01-02"),
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next order sequence: %w", err)
	}
	return fmt.Sprintf("%s%s%04d", r.prefix, day.Format("20060102"), seq), nil
}

func (r *pgOrderRepo) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	order.ID = uuid.New()
	order.Status = model.OrderStatusPending

	order.OrderNumber, err = r.nextOrderNumber(ctx, tx, now)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, order_number, user_id, session_id, customer_name, email, phone,
		                     shipping_address, city, postal_code, subtotal, shipping_fee, discount,
		                     total, promo_code, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		order.ID, order.OrderNumber, order.UserID, order.SessionID, order.CustomerName, order.Email,
		order.Phone, order.ShippingAddress, order.City, order.PostalCode, order.Subtotal,
		order.ShippingFee, order.Discount, order.Total, order.PromoCode, order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New()
		item.OrderID = order.ID
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, variant_id, product_name, sku, unit_price, quantity, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			item.ID, item.OrderID, item.ProductID, item.VariantID, item.ProductName, item.SKU,
			item.UnitPrice, item.Quantity, item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		if err := r.products.DecrementStock(ctx, tx, item.ProductID, item.VariantID, item.Quantity); err != nil {
			return err
		}
	}

	initial := model.StatusChange{ID: uuid.New(), OrderID: order.ID, Status: order.Status, ChangedAt: now}
	_, err = tx.Exec(ctx,
		`INSERT INTO order_status_history (id, order_id, status, note, changed_at) VALUES ($1, $2, $3, $4, $5)`,
		initial.ID, initial.OrderID, initial.Status, initial.Note, initial.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	order.StatusHistory = []model.StatusChange{initial}

	return tx.Commit(ctx)
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order := &model.Order{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, order_number, user_id, session_id, customer_name, email, phone, shipping_address,
		        city, postal_code, subtotal, shipping_fee, discount, total, promo_code, status,
		        courier_name, tracking_number, created_at, updated_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.OrderNumber, &order.UserID, &order.SessionID, &order.CustomerName,
		&order.Email, &order.Phone, &order.ShippingAddress, &order.City, &order.PostalCode,
		&order.Subtotal, &order.ShippingFee, &order.Discount, &order.Total, &order.PromoCode,
		&order.Status, &order.CourierName, &order.TrackingNumber, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, variant_id, product_name, sku, unit_price, quantity, line_total
		 FROM order_items WHERE order_id = $1`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.VariantID, &item.ProductName, &item.SKU,
			&item.UnitPrice, &item.Quantity, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.OrderID = order.ID
		order.Items = append(order.Items, item)
	}

	histRows, err := r.pool.Query(ctx,
		`SELECT id, status, note, changed_at FROM order_status_history WHERE order_id = $1 ORDER BY changed_at`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get status history: %w", err)
	}
	defer histRows.Close()

	for histRows.Next() {
		var sc model.StatusChange
		if err := histRows.Scan(&sc.ID, &sc.Status, &sc.Note, &sc.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		sc.OrderID = order.ID
		order.StatusHistory = append(order.StatusHistory, sc)
	}

	return order, nil
}

func (r *pgOrderRepo) ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.Order, error) {
	clause, arg := ownerClause(owner)
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_number, status, subtotal, shipping_fee, discount, total, promo_code, created_at
		 FROM orders WHERE `+clause+` ORDER BY created_at DESC`, arg,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.Subtotal, &o.ShippingFee,
			&o.Discount, &o.Total, &o.PromoCode, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.UserID = owner.UserID
		o.SessionID = owner.SessionID
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, note string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_status_history (id, order_id, status, note, changed_at) VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), id, status, note,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *pgOrderRepo) UpdateCourier(ctx context.Context, id uuid.UUID, courierName, trackingNumber string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET courier_name = $2, tracking_number = $3, updated_at = NOW() WHERE id = $1`,
		id, courierName, trackingNumber,
	)
	if err != nil {
		return fmt.Errorf("update courier: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return nil
}
