package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercata/storefront-api/internal/model"
	"github.com/mercata/storefront-api/internal/repository"
)

var (
	ErrPromoNotFound   = errors.New("promo code not found")
	ErrInvalidDiscount = errors.New("invalid discount type")
)

// PromoValidation lists every violated rule, not just the first, so a client
// can present all issues at once.
type PromoValidation struct {
	Valid      bool
	Violations []string
	Promo      *model.PromoCode
}

type PromoService struct {
	promoRepo repository.PromoRepository
}

func NewPromoService(promoRepo repository.PromoRepository) *PromoService {
	return &PromoService{promoRepo: promoRepo}
}

// Validate checks a promo code against an order total and the category ids of
// the products being bought. A category-restricted promo is satisfied when any
// of the given categories is on its list. It has no side effects; usage is
// only counted by Apply once an order is confirmed to proceed.
func (s *PromoService) Validate(ctx context.Context, code string, orderTotal decimal.Decimal, categories []uuid.UUID) (*PromoValidation, error) {
	promo, err := s.promoRepo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fmt.Errorf("get promo: %w", err)
	}
	if promo == nil {
		return nil, ErrPromoNotFound
	}

	now := time.Now()
	var violations []string
	if !promo.Active {
		violations = append(violations, "promo code is inactive")
	}
	if now.Before(promo.StartsAt) {
		violations = append(violations, "promo code is not active yet")
	}
	if now.After(promo.ExpiresAt) {
		violations = append(violations, "promo code has expired")
	}
	if promo.UsageLimit > 0 && promo.UsedCount >= promo.UsageLimit {
		violations = append(violations, "promo code usage limit reached")
	}
	if orderTotal.LessThan(promo.MinOrderTotal) {
		violations = append(violations,
			fmt.Sprintf("order total below the %s minimum", promo.MinOrderTotal.StringFixed(2)))
	}
	if len(promo.Categories) > 0 && !categoriesIntersect(promo.Categories, categories) {
		violations = append(violations, "promo code does not apply to these products")
	}

	return &PromoValidation{Valid: len(violations) == 0, Violations: violations, Promo: promo}, nil
}

func categoriesIntersect(restricted, given []uuid.UUID) bool {
	for _, r := range restricted {
		for _, g := range given {
			if r == g {
				return true
			}
		}
	}
	return false
}

// CalculateDiscount computes the discount a promo grants on an order total.
// The result is clamped to the promo's cap and to the order total itself, then
// rounded to two decimal places. Pure: no usage is recorded.
func CalculateDiscount(promo *model.PromoCode, orderTotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch promo.DiscountType {
	case model.DiscountPercentage:
		discount = orderTotal.Mul(promo.DiscountValue).Div(decimal.NewFromInt(100))
	case model.DiscountFixed:
		discount = promo.DiscountValue
	}

	if promo.MaxDiscount.IsPositive() && discount.GreaterThan(promo.MaxDiscount) {
		discount = promo.MaxDiscount
	}
	if discount.GreaterThan(orderTotal) {
		discount = orderTotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2)
}

// Apply records one successful use of the promo. Called only after the order
// is confirmed; validation alone never increments usage.
func (s *PromoService) Apply(ctx context.Context, promoID uuid.UUID) error {
	return s.promoRepo.IncrementUsage(ctx, promoID)
}

func (s *PromoService) Create(ctx context.Context, promo *model.PromoCode) error {
	if promo.DiscountType != model.DiscountPercentage && promo.DiscountType != model.DiscountFixed {
		return ErrInvalidDiscount
	}
	promo.Code = strings.ToUpper(strings.TrimSpace(promo.Code))
	if err := s.promoRepo.Create(ctx, promo); err != nil {
		return fmt.Errorf("create promo: %w", err)
	}
	return nil
}

func (s *PromoService) Update(ctx context.Context, promo *model.PromoCode) error {
	if promo.DiscountType != model.DiscountPercentage && promo.DiscountType != model.DiscountFixed {
		return ErrInvalidDiscount
	}
	promo.Code = strings.ToUpper(strings.TrimSpace(promo.Code))
	if err := s.promoRepo.Update(ctx, promo); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPromoNotFound
		}
		return fmt.Errorf("update promo: %w", err)
	}
	return nil
}

func (s *PromoService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.promoRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPromoNotFound
		}
		return err
	}
	return nil
}

func (s *PromoService) List(ctx context.Context) ([]model.PromoCode, error) {
	return s.promoRepo.List(ctx)
}
