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

type OrderHandler struct {
	checkoutService *service.CheckoutService
}

func NewOrderHandler(checkoutService *service.CheckoutService) *OrderHandler {
	return &OrderHandler{checkoutService: checkoutService}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.checkoutService.CreateOrder(c.Request.Context(), middleware.GetOwner(c), req)
	if err != nil {
		var stockErr *service.StockError
		var promoErr *service.PromoViolationsError
		switch {
		case errors.Is(err, service.ErrIdentityRequired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session or login required"})
		case errors.Is(err, service.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		case errors.As(err, &stockErr):
			c.JSON(http.StatusConflict, gin.H{
				"error":      "insufficient stock",
				"product_id": stockErr.ProductID,
				"variant_id": stockErr.VariantID,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			})
		case errors.As(err, &promoErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":      "promo code rejected",
				"violations": promoErr.Violations,
			})
		case errors.Is(err, service.ErrVariantNotFound), errors.Is(err, service.ErrProductNotFound):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown product or variant in cart"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.checkoutService.ListByOwner(c.Request.Context(), middleware.GetOwner(c))
	if err != nil {
		if errors.Is(err, service.ErrIdentityRequired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session or login required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	var items []dto.OrderResponse
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}

	c.JSON(http.StatusOK, dto.OrderListResponse{Orders: items, Total: len(items)})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := h.checkoutService.GetForOwner(c.Request.Context(), orderID, middleware.GetOwner(c))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if errors.Is(err, service.ErrOrderAccessDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.checkoutService.UpdateStatus(c.Request.Context(), orderID, req.Status, req.Note)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if errors.Is(err, service.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) SetCourier(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	var req dto.SetCourierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.checkoutService.SetCourier(c.Request.Context(), orderID, req.CourierName, req.TrackingNumber); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	var items []dto.OrderItemResponse
	for _, item := range order.Items {
		items = append(items, dto.OrderItemResponse{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			SKU:         item.SKU,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	var history []dto.StatusChangeResponse
	for _, change := range order.StatusHistory {
		history = append(history, dto.StatusChangeResponse{
			Status:    change.Status,
			Note:      change.Note,
			ChangedAt: change.ChangedAt,
		})
	}
	return dto.OrderResponse{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		CustomerName:   order.CustomerName,
		Email:          order.Email,
		Items:          items,
		Subtotal:       order.Subtotal,
		ShippingFee:    order.ShippingFee,
		Discount:       order.Discount,
		Total:          order.Total,
		PromoCode:      order.PromoCode,
		StatusHistory:  history,
		CourierName:    order.CourierName,
		TrackingNumber: order.TrackingNumber,
		CreatedAt:      order.CreatedAt,
	}
}
