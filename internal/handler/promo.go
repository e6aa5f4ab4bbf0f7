package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercata/storefront-api/internal/dto"
	"github.com/mercata/storefront-api/internal/model"
	"github.com/mercata/storefront-api/internal/service"
)

type PromoHandler struct {
	promoService *service.PromoService
}

func NewPromoHandler(promoService *service.PromoService) *PromoHandler {
	return &PromoHandler{promoService: promoService}
}

// Validate checks a code against the pending order total and reports every
// violated rule, not just the first one.
func (h *PromoHandler) Validate(c *gin.Context) {
	var req dto.ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.promoService.Validate(c.Request.Context(), req.Code, req.OrderTotal, req.CategoryIDs)
	if err != nil {
		if errors.Is(err, service.ErrPromoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "promo code not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	resp := dto.ValidatePromoResponse{
		Valid:      result.Valid,
		Violations: result.Violations,
		Discount:   decimal.Zero,
	}
	if result.Valid {
		resp.Discount = service.CalculateDiscount(result.Promo, req.OrderTotal)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PromoHandler) Create(c *gin.Context) {
	var req dto.PromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	promo := promoFromRequest(req)
	if err := h.promoService.Create(c.Request.Context(), promo); err != nil {
		if errors.Is(err, service.ErrInvalidDiscount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, toPromoResponse(promo))
}

func (h *PromoHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid promo ID"})
		return
	}

	var req dto.PromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	promo := promoFromRequest(req)
	promo.ID = id
	if err := h.promoService.Update(c.Request.Context(), promo); err != nil {
		if errors.Is(err, service.ErrPromoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "promo code not found"})
			return
		}
		if errors.Is(err, service.ErrInvalidDiscount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toPromoResponse(promo))
}

func (h *PromoHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid promo ID"})
		return
	}

	if err := h.promoService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrPromoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "promo code not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *PromoHandler) List(c *gin.Context) {
	promos, err := h.promoService.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	items := []dto.PromoResponse{}
	for i := range promos {
		items = append(items, toPromoResponse(&promos[i]))
	}

	c.JSON(http.StatusOK, items)
}

func promoFromRequest(req dto.PromoRequest) *model.PromoCode {
	return &model.PromoCode{
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		MinOrderTotal: req.MinOrderTotal,
		MaxDiscount:   req.MaxDiscount,
		UsageLimit:    req.UsageLimit,
		StartsAt:      req.StartsAt,
		ExpiresAt:     req.ExpiresAt,
		Active:        req.Active,
		Categories:    req.Categories,
	}
}

func toPromoResponse(promo *model.PromoCode) dto.PromoResponse {
	return dto.PromoResponse{
		ID:            promo.ID,
		Code:          promo.Code,
		DiscountType:  promo.DiscountType,
		DiscountValue: promo.DiscountValue,
		MinOrderTotal: promo.MinOrderTotal,
		MaxDiscount:   promo.MaxDiscount,
		UsageLimit:    promo.UsageLimit,
		UsedCount:     promo.UsedCount,
		StartsAt:      promo.StartsAt,
		ExpiresAt:     promo.ExpiresAt,
		Active:        promo.Active,
		Categories:    promo.Categories,
	}
}
