package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mercata/storefront-api/internal/dto"
	"github.com/mercata/storefront-api/internal/middleware"
	"github.com/mercata/storefront-api/internal/model"
	"github.com/mercata/storefront-api/internal/service"
)

type CartHandler struct {
	cartService *service.CartService
}

func NewCartHandler(cartService *service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.cartService.Get(c.Request.Context(), middleware.GetOwner(c))
	if err != nil {
		if errors.Is(err, service.ErrIdentityRequired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session or login required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toCartResponse(cart))
}

// ReplaceCart overwrites the server cart with the submitted line list. The
// client owns cart composition; the server owns pricing.
func (h *CartHandler) ReplaceCart(c *gin.Context) {
	var req dto.ReplaceCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cart, err := h.cartService.Replace(c.Request.Context(), middleware.GetOwner(c), req.Items)
	if err != nil {
		if errors.Is(err, service.ErrIdentityRequired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session or login required"})
			return
		}
		if errors.Is(err, service.ErrVariantNotFound) || errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown product or variant in cart"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toCartResponse(cart))
}

// MergeCart folds the guest session cart into the logged-in user's cart,
// typically right after login.
func (h *CartHandler) MergeCart(c *gin.Context) {
	userID := middleware.GetUserID(c)
	sessionID := middleware.GetSessionID(c)
	if userID == uuid.Nil || sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "merge needs both a login and a session"})
		return
	}

	cart, err := h.cartService.Merge(c.Request.Context(), userID, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toCartResponse(cart))
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	if err := h.cartService.Clear(c.Request.Context(), middleware.GetOwner(c)); err != nil {
		if errors.Is(err, service.ErrIdentityRequired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session or login required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func toCartResponse(cart *model.Cart) dto.CartResponse {
	resp := dto.CartResponse{Items: []dto.CartItemResponse{}}
	if cart == nil {
		return resp
	}
	for _, item := range cart.Items {
		resp.Items = append(resp.Items, dto.CartItemResponse{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	if !cart.LastActivityAt.IsZero() {
		t := cart.LastActivityAt
		resp.LastActivityAt = &t
	}
	return resp
}
