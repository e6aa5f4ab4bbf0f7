package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mercata/storefront-api/internal/dto"
	"github.com/mercata/storefront-api/internal/model"
	"github.com/mercata/storefront-api/internal/repository"
)

// AbandonedService runs the checkout funnel state machine. It observes cart
// and checkout activity, classifies records into funnel stages and feeds the
// recovery dashboard. It never gates checkout.
type AbandonedService struct {
	abandonedRepo  repository.AbandonedCartRepository
	cartRepo       repository.CartRepository
	productRepo    repository.ProductRepository
	log            *slog.Logger
	abandonAfter   time.Duration
	guestRetention time.Duration
}

func NewAbandonedService(
	abandonedRepo repository.AbandonedCartRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	log *slog.Logger,
	abandonAfter, guestRetention time.Duration,
) *AbandonedService {
	return &AbandonedService{
		abandonedRepo:  abandonedRepo,
		cartRepo:       cartRepo,
		productRepo:    productRepo,
		log:            log,
		abandonAfter:   abandonAfter,
		guestRetention: guestRetention,
	}
}

// MarkCheckoutStarted opens (or refreshes) the funnel record for the owner's
// cart. A record that already holds contact info keeps the further stage.
func (s *AbandonedService) MarkCheckoutStarted(ctx context.Context, owner model.CartOwner) error {
	cart, err := s.ownerCart(ctx, owner)
	if err != nil {
		return err
	}

	record, err := s.abandonedRepo.GetByCartID(ctx, cart.ID)
	if err != nil {
		return fmt.Errorf("get tracking record: %w", err)
	}
	if record == nil {
		record = &model.AbandonedCart{CartID: cart.ID}
	}
	record.Stage = model.StageCheckoutStarted
	if record.Email != "" || record.Phone != "" {
		record.Stage = model.StageCheckoutInfoFilled
	}

	if err := s.abandonedRepo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("upsert tracking record: %w", err)
	}
	return nil
}

// SaveCheckoutInfo snapshots the shopper's contact and shipping details and
// advances the funnel record to checkout_info_filled.
func (s *AbandonedService) SaveCheckoutInfo(ctx context.Context, owner model.CartOwner, req dto.CheckoutInfoRequest) error {
	cart, err := s.ownerCart(ctx, owner)
	if err != nil {
		return err
	}

	record := &model.AbandonedCart{
		CartID:          cart.ID,
		Email:           req.Email,
		Phone:           req.Phone,
		CustomerName:    req.CustomerName,
		ShippingAddress: req.ShippingAddress,
		City:            req.City,
		PostalCode:      req.PostalCode,
		Stage:           model.StageCheckoutInfoFilled,
	}
	if err := s.abandonedRepo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("upsert tracking record: %w", err)
	}
	return nil
}

// Sweep promotes stale active funnel records to abandoned and purges guest
// carts past the retention window. Idempotent and safe at any frequency:
// re-running only touches records that are still stale and still active.
func (s *AbandonedService) Sweep(ctx context.Context) (*dto.SweepResult, error) {
	now := time.Now()

	abandoned, err := s.abandonedRepo.MarkStale(ctx, now.Add(-s.abandonAfter))
	if err != nil {
		return nil, fmt.Errorf("mark stale records: %w", err)
	}

	purged, err := s.cartRepo.DeleteStaleGuestCarts(ctx, now.Add(-s.guestRetention))
	if err != nil {
		return nil, fmt.Errorf("purge guest carts: %w", err)
	}

	if abandoned > 0 || purged > 0 {
		s.log.Info("funnel sweep", "abandoned", abandoned, "purged_guest_carts", purged)
	}
	return &dto.SweepResult{Abandoned: abandoned, PurgedGuestCarts: purged}, nil
}

// Dashboard joins abandoned records back to their live carts and reprices
// every line at current catalog prices. A record whose cart is already gone
// is reported as no longer recoverable instead of failing the listing.
func (s *AbandonedService) Dashboard(ctx context.Context) (*dto.AbandonedDashboardResponse, error) {
	records, err := s.abandonedRepo.ListAbandoned(ctx)
	if err != nil {
		return nil, fmt.Errorf("list abandoned records: %w", err)
	}

	resp := &dto.AbandonedDashboardResponse{TotalValue: decimal.Zero}
	for _, record := range records {
		entry := dto.AbandonedCartEntry{
			CartID:       record.CartID,
			Email:        record.Email,
			Phone:        record.Phone,
			CustomerName: record.CustomerName,
			AbandonedAt:  record.AbandonedAt,
			CartValue:    decimal.Zero,
		}

		cart, err := s.cartRepo.GetByID(ctx, record.CartID)
		if err != nil {
			return nil, fmt.Errorf("get cart: %w", err)
		}
		if cart == nil {
			entry.CartAvailable = false
			resp.Entries = append(resp.Entries, entry)
			resp.Count++
			continue
		}

		entry.CartAvailable = true
		for _, item := range cart.Items {
			variant, err := s.productRepo.FindVariant(ctx, item.ProductID, item.VariantID)
			if err != nil {
				return nil, fmt.Errorf("find variant: %w", err)
			}
			if variant == nil {
				// Catalog drift since abandonment; the line no longer prices.
				continue
			}
			line := variant.EffectivePrice().Mul(decimal.NewFromInt(int64(item.Quantity)))
			entry.Items = append(entry.Items, dto.AbandonedItem{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
				UnitPrice: variant.EffectivePrice(),
				LineTotal: line,
			})
			entry.CartValue = entry.CartValue.Add(line)
		}
		resp.Entries = append(resp.Entries, entry)
		resp.Count++
		resp.TotalValue = resp.TotalValue.Add(entry.CartValue)
	}

	return resp, nil
}

func (s *AbandonedService) ownerCart(ctx context.Context, owner model.CartOwner) (*model.Cart, error) {
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
	return cart, nil
}
