package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mercata/storefront-api/internal/dto"
	"github.com/mercata/storefront-api/internal/model"
	"github.com/mercata/storefront-api/internal/repository"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
	ErrNoVariants      = errors.New("product requires at least one variant")
)

const productCacheTTL = 60 * time.Second

type ProductService struct {
	productRepo repository.ProductRepository
	redisClient *redis.Client
}

func NewProductService(productRepo repository.ProductRepository, redisClient *redis.Client) *ProductService {
	return &ProductService{productRepo: productRepo, redisClient: redisClient}
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	product := &model.Product{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Images:      req.Images,
	}
	for _, v := range req.Variants {
		product.Variants = append(product.Variants, model.Variant{
			SKU:        v.SKU,
			Attributes: v.Attributes,
			Price:      v.Price,
			SalePrice:  v.SalePrice,
			Stock:      v.Stock,
		})
	}
	// A product always has at least one variant. Attribute-less products are
	// submitted with a single default variant; the binding layer enforces
	// min=1 and this guards direct callers.
	if len(product.Variants) == 0 {
		return nil, ErrNoVariants
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := "product:" + id.String()

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product)

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}

	return &resp, nil
}

func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	offset := (req.Page - 1) * req.Limit
	products, total, err := s.productRepo.List(ctx, req.Limit, offset, req.Search)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	var items []dto.ProductResponse
	for i := range products {
		items = append(items, toProductResponse(&products[i]))
	}

	return &dto.ProductListResponse{Products: items, Total: total, Page: req.Page, Limit: req.Limit}, nil
}

func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.Slug != nil {
		product.Slug = *req.Slug
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.CategoryID != nil {
		product.CategoryID = req.CategoryID
	}
	if req.Images != nil {
		product.Images = req.Images
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.invalidateCache(ctx, id)
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) UpdateVariant(ctx context.Context, productID, variantID uuid.UUID, req dto.UpdateVariantRequest) error {
	variant, err := s.productRepo.FindVariant(ctx, productID, variantID)
	if err != nil {
		return fmt.Errorf("find variant: %w", err)
	}
	if variant == nil {
		return ErrVariantNotFound
	}

	if req.SKU != nil {
		variant.SKU = *req.SKU
	}
	if req.Attributes != nil {
		variant.Attributes = req.Attributes
	}
	if req.Price != nil {
		variant.Price = *req.Price
	}
	if req.SalePrice != nil {
		variant.SalePrice = *req.SalePrice
	}
	if req.Stock != nil {
		variant.Stock = *req.Stock
	}

	if err := s.productRepo.UpdateVariant(ctx, variant); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVariantNotFound
		}
		return fmt.Errorf("update variant: %w", err)
	}
	s.invalidateCache(ctx, productID)
	return nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *ProductService) invalidateCache(ctx context.Context, id uuid.UUID) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, "product:"+id.String())
	}
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	resp := dto.ProductResponse{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		Images:      p.Images,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, v := range p.Variants {
		resp.Variants = append(resp.Variants, dto.VariantResponse{
			ID:         v.ID,
			SKU:        v.SKU,
			Attributes: v.Attributes,
			Price:      v.Price,
			SalePrice:  v.SalePrice,
			Stock:      v.Stock,
			UnitsSold:  v.UnitsSold,
		})
	}
	return resp
}
