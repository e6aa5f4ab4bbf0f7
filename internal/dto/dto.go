package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercata/storefront-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
}

// --- Product ---

type CreateVariantRequest struct {
	SKU        string            `json:"sku" binding:"required"`
	Attributes map[string]string `json:"attributes"`
	Price      decimal.Decimal   `json:"price" binding:"required"`
	SalePrice  decimal.Decimal   `json:"sale_price"`
	Stock      int               `json:"stock" binding:"min=0"`
}

type CreateProductRequest struct {
	Slug        string                 `json:"slug" binding:"required"`
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description"`
	CategoryID  *uuid.UUID             `json:"category_id"`
	Images      []string               `json:"images"`
	Variants    []CreateVariantRequest `json:"variants" binding:"required,min=1,dive"`
}

type UpdateProductRequest struct {
	Slug        *string    `json:"slug"`
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	CategoryID  *uuid.UUID `json:"category_id"`
	Images      []string   `json:"images"`
}

type UpdateVariantRequest struct {
	SKU        *string           `json:"sku"`
	Attributes map[string]string `json:"attributes"`
	Price      *decimal.Decimal  `json:"price"`
	SalePrice  *decimal.Decimal  `json:"sale_price"`
	Stock      *int              `json:"stock"`
}

type ListProductsRequest struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search string `form:"search"`
}

type VariantResponse struct {
	ID         uuid.UUID         `json:"id"`
	SKU        string            `json:"sku"`
	Attributes map[string]string `json:"attributes"`
	Price      decimal.Decimal   `json:"price"`
	SalePrice  decimal.Decimal   `json:"sale_price"`
	Stock      int               `json:"stock"`
	UnitsSold  int               `json:"units_sold"`
}

type ProductResponse struct {
	ID          uuid.UUID         `json:"id"`
	Slug        string            `json:"slug"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	CategoryID  *uuid.UUID        `json:"category_id,omitempty"`
	Images      []string          `json:"images"`
	Variants    []VariantResponse `json:"variants"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// --- Cart ---

// CartLineRequest deliberately carries no price fields: unit prices are
// always re-derived from the catalog.
type CartLineRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type ReplaceCartRequest struct {
	Items []CartLineRequest `json:"items" binding:"dive"`
}

type CartItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

type CartResponse struct {
	Items          []CartItemResponse `json:"items"`
	LastActivityAt *time.Time         `json:"last_activity_at,omitempty"`
}

// --- Checkout / Orders ---

type CheckoutInfoRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone"`
	CustomerName    string `json:"customer_name" binding:"required"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
	City            string `json:"city"`
	PostalCode      string `json:"postal_code"`
}

type CreateOrderRequest struct {
	CustomerName    string `json:"customer_name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
	City            string `json:"city"`
	PostalCode      string `json:"postal_code"`
	PromoCode       string `json:"promo_code"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
	Note   string            `json:"note"`
}

type SetCourierRequest struct {
	CourierName    string `json:"courier_name" binding:"required"`
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

type OrderItemResponse struct {
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   uuid.UUID       `json:"variant_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type StatusChangeResponse struct {
	Status    model.OrderStatus `json:"status"`
	Note      string            `json:"note,omitempty"`
	ChangedAt time.Time         `json:"changed_at"`
}

type OrderResponse struct {
	ID             uuid.UUID              `json:"id"`
	OrderNumber    string                 `json:"order_number"`
	Status         model.OrderStatus      `json:"status"`
	CustomerName   string                 `json:"customer_name"`
	Email          string                 `json:"email"`
	Items          []OrderItemResponse    `json:"items"`
	Subtotal       decimal.Decimal        `json:"subtotal"`
	ShippingFee    decimal.Decimal        `json:"shipping_fee"`
	Discount       decimal.Decimal        `json:"discount"`
	Total          decimal.Decimal        `json:"total"`
	PromoCode      string                 `json:"promo_code,omitempty"`
	StatusHistory  []StatusChangeResponse `json:"status_history,omitempty"`
	CourierName    string                 `json:"courier_name,omitempty"`
	TrackingNumber string                 `json:"tracking_number,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

// --- Promo ---

type ValidatePromoRequest struct {
	Code        string          `json:"code" binding:"required"`
	OrderTotal  decimal.Decimal `json:"order_total" binding:"required"`
	CategoryIDs []uuid.UUID     `json:"category_ids"`
}

type ValidatePromoResponse struct {
	Valid      bool            `json:"valid"`
	Violations []string        `json:"violations,omitempty"`
	Discount   decimal.Decimal `json:"discount"`
}

type PromoRequest struct {
	Code          string             `json:"code" binding:"required"`
	DiscountType  model.DiscountType `json:"discount_type" binding:"required"`
	DiscountValue decimal.Decimal    `json:"discount_value" binding:"required"`
	MinOrderTotal decimal.Decimal    `json:"min_order_total"`
	MaxDiscount   decimal.Decimal    `json:"max_discount"`
	UsageLimit    int                `json:"usage_limit"`
	StartsAt      time.Time          `json:"starts_at" binding:"required"`
	ExpiresAt     time.Time          `json:"expires_at" binding:"required"`
	Active        bool               `json:"active"`
	Categories    []uuid.UUID        `json:"categories"`
}

type PromoResponse struct {
	ID            uuid.UUID          `json:"id"`
	Code          string             `json:"code"`
	DiscountType  model.DiscountType `json:"discount_type"`
	DiscountValue decimal.Decimal    `json:"discount_value"`
	MinOrderTotal decimal.Decimal    `json:"min_order_total"`
	MaxDiscount   decimal.Decimal    `json:"max_discount"`
	UsageLimit    int                `json:"usage_limit"`
	UsedCount     int                `json:"used_count"`
	StartsAt      time.Time          `json:"starts_at"`
	ExpiresAt     time.Time          `json:"expires_at"`
	Active        bool               `json:"active"`
	Categories    []uuid.UUID        `json:"categories,omitempty"`
}

// --- Abandonment ---

type SweepResult struct {
	Abandoned        int64 `json:"abandoned"`
	PurgedGuestCarts int64 `json:"purged_guest_carts"`
}

type AbandonedItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	VariantID uuid.UUID       `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type AbandonedCartEntry struct {
	CartID        uuid.UUID       `json:"cart_id"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	AbandonedAt   *time.Time      `json:"abandoned_at,omitempty"`
	CartAvailable bool            `json:"cart_available"`
	Items         []AbandonedItem `json:"items,omitempty"`
	CartValue     decimal.Decimal `json:"cart_value"`
}

type AbandonedDashboardResponse struct {
	Count      int                  `json:"count"`
	TotalValue decimal.Decimal      `json:"total_value"`
	Entries    []AbandonedCartEntry `json:"entries"`
}
