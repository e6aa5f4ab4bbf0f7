package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mercata/storefront-api/internal/dto"
	"github.com/mercata/storefront-api/internal/middleware"
	"github.com/mercata/storefront-api/internal/service"
)

type AbandonedHandler struct {
	abandonedService *service.AbandonedService
}

func NewAbandonedHandler(abandonedService *service.AbandonedService) *AbandonedHandler {
	return &AbandonedHandler{abandonedService: abandonedService}
}

// CheckoutStart records that the shopper entered checkout, so the cart is
// trackable if they never finish.
func (h *AbandonedHandler) CheckoutStart(c *gin.Context) {
	err := h.abandonedService.MarkCheckoutStarted(c.Request.Context(), middleware.GetOwner(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIdentityRequired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session or login required"})
		case errors.Is(err, service.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "tracked"})
}

// CheckoutInfo snapshots the shopper's contact details mid-checkout so an
// abandoned cart can still be followed up.
func (h *AbandonedHandler) CheckoutInfo(c *gin.Context) {
	var req dto.CheckoutInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.abandonedService.SaveCheckoutInfo(c.Request.Context(), middleware.GetOwner(c), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIdentityRequired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session or login required"})
		case errors.Is(err, service.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (h *AbandonedHandler) Dashboard(c *gin.Context) {
	resp, err := h.abandonedService.Dashboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Sweep runs the abandonment pass on demand, in addition to the background
// sweeper.
func (h *AbandonedHandler) Sweep(c *gin.Context) {
	result, err := h.abandonedService.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, result)
}
