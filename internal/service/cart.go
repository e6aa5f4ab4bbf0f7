package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mercata/storefront-api/internal/dto"
	"github.com/mercata/storefront-api/internal/model"
	"github.com/mercata/storefront-api/internal/repository"
)

var ErrIdentityRequired = errors.New("account or session identity required")

type CartService struct {
	cartRepo      repository.CartRepository
	productRepo   repository.ProductRepository
	abandonedRepo repository.AbandonedCartRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, abandonedRepo repository.AbandonedCartRepository) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo, abandonedRepo: abandonedRepo}
}

// Get returns the owner's cart, or an empty cart when none exists yet.
func (s *CartService) Get(ctx context.Context, owner model.CartOwner) (*model.Cart, error) {
	if !owner.HasIdentity() {
		return nil, ErrIdentityRequired
	}
	cart, err := s.cartRepo.GetByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return &model.Cart{UserID: owner.UserID, SessionID: owner.SessionID}, nil
	}
	return cart, nil
}

// Replace idempotently overwrites the cart's contents. Duplicate lines for
// the same product and variant are merged by summing quantities. An empty
// list deletes the cart and its tracking record: a cleared cart leaves no
// document behind.
func (s *CartService) Replace(ctx context.Context, owner model.CartOwner, lines []dto.CartLineRequest) (*model.Cart, error) {
	if !owner.HasIdentity() {
		return nil, ErrIdentityRequired
	}

	items := mergeLines(lines)

	if len(items) == 0 {
		if err := s.Clear(ctx, owner); err != nil {
			return nil, err
		}
		return &model.Cart{UserID: owner.UserID, SessionID: owner.SessionID}, nil
	}

	for _, item := range items {
		variant, err := s.productRepo.FindVariant(ctx, item.ProductID, item.VariantID)
		if err != nil {
			return nil, fmt.Errorf("find variant: %w", err)
		}
		if variant == nil {
			return nil, fmt.Errorf("product %s variant %s: %w", item.ProductID, item.VariantID, ErrVariantNotFound)
		}
	}

	cart, err := s.cartRepo.Replace(ctx, owner, items)
	if err != nil {
		return nil, fmt.Errorf("replace cart: %w", err)
	}

	if err := s.touchTracking(ctx, cart.ID); err != nil {
		return nil, err
	}
	return cart, nil
}

// Merge folds a guest session's cart into the account cart on first
// authenticated access. The merge is additive by product and variant so no
// line is lost from either side, and the guest cart is deleted only after the
// merged write is confirmed. Safe to call when the guest cart is absent and
// safe to repeat.
func (s *CartService) Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*model.Cart, error) {
	accountOwner := model.CartOwner{UserID: &userID}

	guest, err := s.cartRepo.GetByOwner(ctx, model.CartOwner{SessionID: &sessionID})
	if err != nil {
		return nil, fmt.Errorf("get guest cart: %w", err)
	}
	if guest == nil || len(guest.Items) == 0 {
		if guest != nil {
			if err := s.deleteCart(ctx, guest.ID); err != nil {
				return nil, err
			}
		}
		return s.Get(ctx, accountOwner)
	}

	account, err := s.cartRepo.GetByOwner(ctx, accountOwner)
	if err != nil {
		return nil, fmt.Errorf("get account cart: %w", err)
	}

	var lines []dto.CartLineRequest
	if account != nil {
		for _, item := range account.Items {
			lines = append(lines, dto.CartLineRequest{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity})
		}
	}
	for _, item := range guest.Items {
		lines = append(lines, dto.CartLineRequest{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity})
	}

	merged, err := s.cartRepo.Replace(ctx, accountOwner, mergeLines(lines))
	if err != nil {
		return nil, fmt.Errorf("merge carts: %w", err)
	}

	if err := s.deleteCart(ctx, guest.ID); err != nil {
		return nil, err
	}
	if err := s.touchTracking(ctx, merged.ID); err != nil {
		return nil, err
	}
	return merged, nil
}

// Clear deletes the cart and its abandonment tracking record.
func (s *CartService) Clear(ctx context.Context, owner model.CartOwner) error {
	if !owner.HasIdentity() {
		return ErrIdentityRequired
	}
	cart, err := s.cartRepo.GetByOwner(ctx, owner)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return nil
	}
	return s.deleteCart(ctx, cart.ID)
}

func (s *CartService) deleteCart(ctx context.Context, cartID uuid.UUID) error {
	if err := s.abandonedRepo.DeleteByCartID(ctx, cartID); err != nil {
		return fmt.Errorf("delete tracking record: %w", err)
	}
	if err := s.cartRepo.Delete(ctx, cartID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// touchTracking registers cart activity on the funnel record. An abandoned
// record returns to an active stage; an active record has its activity
// timestamp refreshed so the sweep never flags a cart that is being edited.
func (s *CartService) touchTracking(ctx context.Context, cartID uuid.UUID) error {
	record, err := s.abandonedRepo.GetByCartID(ctx, cartID)
	if err != nil {
		return fmt.Errorf("get tracking record: %w", err)
	}
	if record == nil {
		return nil
	}

	if record.Stage == model.StageAbandoned {
		stage := model.StageCheckoutStarted
		if record.Email != "" || record.Phone != "" {
			stage = model.StageCheckoutInfoFilled
		}
		if err := s.abandonedRepo.Reactivate(ctx, cartID, stage); err != nil {
			return fmt.Errorf("reactivate tracking record: %w", err)
		}
		return nil
	}
	if record.Stage.Terminal() {
		return nil
	}
	if err := s.abandonedRepo.Touch(ctx, cartID); err != nil {
		return fmt.Errorf("touch tracking record: %w", err)
	}
	return nil
}

// mergeLines collapses duplicate product+variant lines, summing quantities,
// and drops non-positive quantities.
func mergeLines(lines []dto.CartLineRequest) []model.CartItem {
	type key struct{ product, variant uuid.UUID }
	index := make(map[key]int)
	var items []model.CartItem
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		k := key{line.ProductID, line.VariantID}
		if i, ok := index[k]; ok {
			items[i].Quantity += line.Quantity
			continue
		}
		index[k] = len(items)
		items = append(items, model.CartItem{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		})
	}
	return items
}
