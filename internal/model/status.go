package model

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusReturned},
}

// CanTransitionTo reports whether next is a legal status change.
// Delivered, cancelled and returned are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

type FunnelStage string

const (
	StageCheckoutStarted    FunnelStage = "checkout_started"
	StageCheckoutInfoFilled FunnelStage = "checkout_info_filled"
	StageConverted          FunnelStage = "converted"
	StageAbandoned          FunnelStage = "abandoned"
)

// Terminal reports whether the stage ends funnel tracking. Abandoned is
// terminal for the sweep but may be reactivated by new cart activity.
func (s FunnelStage) Terminal() bool {
	return s == StageConverted || s == StageAbandoned
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)
