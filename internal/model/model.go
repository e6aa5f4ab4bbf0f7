package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID          uuid.UUID
	Slug        string
	Name        string
	Description string
	CategoryID  *uuid.UUID
	Images      []string
	Variants    []Variant
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Variant is a purchasable configuration of a product. A product always has
// at least one variant; products without real attribute dimensions get a
// single default variant. Variant stock is the sole source of truth for
// availability.
type Variant struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	SKU        string
	Attributes map[string]string
	Price      decimal.Decimal
	SalePrice  decimal.Decimal
	Stock      int
	UnitsSold  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EffectivePrice returns the sale price when set, otherwise the regular price.
func (v *Variant) EffectivePrice() decimal.Decimal {
	if v.SalePrice.IsPositive() {
		return v.SalePrice
	}
	return v.Price
}

// CartOwner identifies who a cart belongs to: an authenticated account or an
// anonymous session, never both at lookup time. Both fields are populated only
// while merging a guest cart into an account cart.
type CartOwner struct {
	UserID    *uuid.UUID
	SessionID *string
}

func (o CartOwner) HasIdentity() bool {
	return o.UserID != nil || (o.SessionID != nil && *o.SessionID != "")
}

type Cart struct {
	ID             uuid.UUID
	UserID         *uuid.UUID
	SessionID      *string
	Items          []CartItem
	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	VariantID uuid.UUID
	Quantity  int
}

// Order is immutable once created except for status transitions, the
// append-only status history and courier metadata.
type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          *uuid.UUID
	SessionID       *string
	CustomerName    string
	Email           string
	Phone           string
	ShippingAddress string
	City            string
	PostalCode      string
	Items           []OrderItem
	Subtotal        decimal.Decimal
	ShippingFee     decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	PromoCode       string
	Status          OrderStatus
	StatusHistory   []StatusChange
	CourierName     string
	TrackingNumber  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is a snapshot taken at order time, not a live catalog reference.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	VariantID   uuid.UUID
	ProductName string
	SKU         string
	UnitPrice   decimal.Decimal
	Quantity    int
	LineTotal   decimal.Decimal
}

type StatusChange struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Status    OrderStatus
	Note      string
	ChangedAt time.Time
}

type PromoCode struct {
	ID            uuid.UUID
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MinOrderTotal decimal.Decimal
	// MaxDiscount zero means no cap.
	MaxDiscount decimal.Decimal
	// UsageLimit zero means unlimited.
	UsageLimit int
	UsedCount  int
	StartsAt   time.Time
	ExpiresAt  time.Time
	Active     bool
	// Categories empty means the code applies to any category.
	Categories []uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AbandonedCart tracks how far a shopper progressed through checkout. It is
// one-to-one with a cart while the cart exists and is retired on conversion.
type AbandonedCart struct {
	ID              uuid.UUID
	CartID          uuid.UUID
	Email           string
	Phone           string
	CustomerName    string
	ShippingAddress string
	City            string
	PostalCode      string
	Stage           FunnelStage
	LastActivityAt  time.Time
	AbandonedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NotificationMessage is the payload published for the notification worker.
type NotificationMessage struct {
	MessageID uuid.UUID   `json:"message_id"`
	Kind      string      `json:"kind"`
	OrderID   uuid.UUID   `json:"order_id"`
	Status    OrderStatus `json:"status,omitempty"`
}

const (
	NotificationOrderConfirmation = "order_confirmation"
	NotificationShippingUpdate    = "shipping_update"
)
