package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/mercata/storefront-api/internal/dto"
	"github.com/mercata/storefront-api/internal/model"
	"github.com/mercata/storefront-api/internal/repository"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAccessDenied = errors.New("access denied")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// StockError names the exact line item that cannot be fulfilled so the client
// can fix the cart instead of guessing.
type StockError struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s variant %s: requested %d, available %d",
		e.ProductID, e.VariantID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return repository.ErrInsufficientStock }

// PromoViolationsError carries every violated promo rule at once.
type PromoViolationsError struct {
	Violations []string
}

func (e *PromoViolationsError) Error() string {
	return "promo code rejected: " + strings.Join(e.Violations, "; ")
}

type CheckoutService struct {
	orderRepo     repository.OrderRepository
	cartRepo      repository.CartRepository
	productRepo   repository.ProductRepository
	abandonedRepo repository.AbandonedCartRepository
	promos        *PromoService
	amqpCh        *amqp.Channel
	log           *slog.Logger
	shippingFee   decimal.Decimal
}

func NewCheckoutService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	abandonedRepo repository.AbandonedCartRepository,
	promos *PromoService,
	amqpCh *amqp.Channel,
	log *slog.Logger,
	shippingFee decimal.Decimal,
) *CheckoutService {
	return &CheckoutService{
		orderRepo:     orderRepo,
		cartRepo:      cartRepo,
		productRepo:   productRepo,
		abandonedRepo: abandonedRepo,
		promos:        promos,
		amqpCh:        amqpCh,
		log:           log,
		shippingFee:   shippingFee,
	}
}

// CreateOrder converts the owner's cart into an immutable, price-verified
// order. Prices and totals are re-derived from the catalog; nothing the
// client submits about money is trusted. The order insert and every stock
// decrement happen in one transaction, so a failed decrement means no order.
func (s *CheckoutService) CreateOrder(ctx context.Context, owner model.CartOwner, req dto.CreateOrderRequest) (*model.Order, error) {
	if !owner.HasIdentity() {
		return nil, ErrIdentityRequired
	}

	cart, err := s.cartRepo.GetByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	products := make(map[uuid.UUID]*model.Product)
	subtotal := decimal.Zero
	items := make([]model.OrderItem, 0, len(cart.Items))

	for _, line := range cart.Items {
		product, ok := products[line.ProductID]
		if !ok {
			product, err = s.productRepo.GetByID(ctx, line.ProductID)
			if err != nil {
				return nil, fmt.Errorf("get product: %w", err)
			}
			if product == nil {
				return nil, fmt.Errorf("product %s: %w", line.ProductID, ErrProductNotFound)
			}
			products[line.ProductID] = product
		}

		variant, err := s.productRepo.FindVariant(ctx, line.ProductID, line.VariantID)
		if err != nil {
			return nil, fmt.Errorf("find variant: %w", err)
		}
		if variant == nil {
			return nil, fmt.Errorf("product %s variant %s: %w", line.ProductID, line.VariantID, ErrVariantNotFound)
		}

		// Optimistic pre-check. The conditional decrement inside the order
		// transaction is the real enforcement point.
		if variant.Stock < line.Quantity {
			return nil, &StockError{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: variant.Stock,
			}
		}

		unitPrice := variant.EffectivePrice()
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, model.OrderItem{
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: product.Name,
			SKU:         variant.SKU,
			UnitPrice:   unitPrice,
			Quantity:    line.Quantity,
			LineTotal:   lineTotal,
		})
	}

	total := subtotal.Add(s.shippingFee)

	discount := decimal.Zero
	var promo *model.PromoCode
	if req.PromoCode != "" {
		validation, err := s.promos.Validate(ctx, req.PromoCode, total, cartCategories(products))
		if err != nil {
			return nil, err
		}
		if !validation.Valid {
			return nil, &PromoViolationsError{Violations: validation.Violations}
		}
		promo = validation.Promo
		discount = CalculateDiscount(promo, total)
		total = total.Sub(discount)
	}

	order := &model.Order{
		UserID:          owner.UserID,
		SessionID:       owner.SessionID,
		CustomerName:    req.CustomerName,
		Email:           req.Email,
		Phone:           req.Phone,
		ShippingAddress: req.ShippingAddress,
		City:            req.City,
		PostalCode:      req.PostalCode,
		Items:           items,
		Subtotal:        subtotal,
		ShippingFee:     s.shippingFee,
		Discount:        discount,
		Total:           total,
	}
	if promo != nil {
		order.PromoCode = promo.Code
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// The order is durable from here on. Cleanup failures are operational
	// noise to reconcile out of band, never a reason to fail the checkout.
	if promo != nil {
		if err := s.promos.Apply(ctx, promo.ID); err != nil {
			s.log.Error("record promo usage", "order_id", order.ID, "promo", promo.Code, "error", err)
		}
	}
	if err := s.abandonedRepo.DeleteByCartID(ctx, cart.ID); err != nil {
		s.log.Error("retire tracking record after conversion", "order_id", order.ID, "cart_id", cart.ID, "error", err)
	}
	if err := s.cartRepo.Delete(ctx, cart.ID); err != nil {
		s.log.Error("delete cart after conversion", "order_id", order.ID, "cart_id", cart.ID, "error", err)
	}

	s.publishNotification(ctx, model.NotificationOrderConfirmation, order.ID, order.Status)

	return order, nil
}

// UpdateStatus applies an admin status transition, appending to the order's
// history and notifying the customer. Cancelling does not restock.
func (s *CheckoutService) UpdateStatus(ctx context.Context, orderID uuid.UUID, next model.OrderStatus, note string) (*model.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", next, ErrInvalidTransition)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%s to %s: %w", order.Status, next, ErrInvalidTransition)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, next, note); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	order.Status = next

	s.publishNotification(ctx, model.NotificationShippingUpdate, order.ID, next)

	return order, nil
}

// SetCourier attaches courier metadata to a shipped order.
func (s *CheckoutService) SetCourier(ctx context.Context, orderID uuid.UUID, courierName, trackingNumber string) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return ErrOrderNotFound
	}
	return s.orderRepo.UpdateCourier(ctx, orderID, courierName, trackingNumber)
}

// GetForOwner returns an order only to its owner.
func (s *CheckoutService) GetForOwner(ctx context.Context, orderID uuid.UUID, owner model.CartOwner) (*model.Order, error) {
	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ownsOrder(order, owner) {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

func (s *CheckoutService) GetByID(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *CheckoutService) ListByOwner(ctx context.Context, owner model.CartOwner) ([]model.Order, error) {
	if !owner.HasIdentity() {
		return nil, ErrIdentityRequired
	}
	return s.orderRepo.ListByOwner(ctx, owner)
}

// cartCategories collects the distinct category ids of the products in the
// cart, so category-restricted promos validate against what is actually being
// bought rather than anything client-submitted.
func cartCategories(products map[uuid.UUID]*model.Product) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, p := range products {
		if p.CategoryID == nil || seen[*p.CategoryID] {
			continue
		}
		seen[*p.CategoryID] = true
		ids = append(ids, *p.CategoryID)
	}
	return ids
}

func ownsOrder(order *model.Order, owner model.CartOwner) bool {
	if owner.UserID != nil && order.UserID != nil && *owner.UserID == *order.UserID {
		return true
	}
	if owner.SessionID != nil && order.SessionID != nil && *owner.SessionID == *order.SessionID {
		return true
	}
	return false
}

// publishNotification hands the message to the notification worker. Failures
// are logged and swallowed: a slow or broken notification sink can never
// affect checkout.
func (s *CheckoutService) publishNotification(ctx context.Context, kind string, orderID uuid.UUID, status model.OrderStatus) {
	if s.amqpCh == nil {
		return
	}
	msg, _ := json.Marshal(model.NotificationMessage{
		MessageID: uuid.New(),
		Kind:      kind,
		OrderID:   orderID,
		Status:    status,
	})
	err := s.amqpCh.PublishWithContext(ctx, "", "notifications", false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		s.log.Error("publish notification", "kind", kind, "order_id", orderID, "error", err)
	}
}
