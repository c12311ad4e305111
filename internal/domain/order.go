package domain

import "time"

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPlaced indicates the order has been confirmed and paid for
	// (or accepted for cash on delivery).
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order has reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancellationPending indicates the customer requested a
	// cancellation that requires admin approval.
	OrderStatusCancellationPending OrderStatus = "cancellation_pending"
	// OrderStatusCancelled indicates the order has been cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded indicates the order has been cancelled and refunded.
	OrderStatusRefunded OrderStatus = "refunded"
)

// orderTransitions is the closed transition table for the order lifecycle.
// A cancellation request may be approved into cancelled/refunded or denied
// back into the state it was raised from.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:              {OrderStatusProcessing, OrderStatusCancellationPending, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing:          {OrderStatusShipped, OrderStatusCancellationPending, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:             {OrderStatusDelivered, OrderStatusCancellationPending, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusCancellationPending: {OrderStatusPlaced, OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusDelivered:           nil,
	OrderStatusCancelled:           nil,
	OrderStatusRefunded:            nil,
}

// IsValid reports whether the status is a known lifecycle state.
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the transition table permits moving from
// the receiver to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CancellationOutcome describes what a customer-initiated cancellation does
// for a given order state.
type CancellationOutcome int

const (
	// CancellationNotAllowed means the customer cannot cancel the order.
	CancellationNotAllowed CancellationOutcome = iota
	// CancellationDirect means the order is cancelled immediately.
	CancellationDirect
	// CancellationRequiresApproval means the order moves to
	// cancellation_pending and awaits an admin decision.
	CancellationRequiresApproval
)

// CustomerCancellation returns the self-service cancellation outcome for the
// status: direct cancel only while placed, approval-gated while processing or
// shipped, otherwise not allowed.
func (s OrderStatus) CustomerCancellation() CancellationOutcome {
	switch s {
	case OrderStatusPlaced:
		return CancellationDirect
	case OrderStatusProcessing, OrderStatusShipped:
		return CancellationRequiresApproval
	default:
		return CancellationNotAllowed
	}
}

// StatusHistoryEntry is one immutable record in an order's status history.
// History entries are append-only and never edited or truncated.
type StatusHistoryEntry struct {
	Status  OrderStatus
	At      time.Time
	Comment string
}

// PaymentMethod enumerates supported payment methods for an order.
type PaymentMethod string

const (
	// PaymentMethodCard settles through the payment gateway.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodCOD settles as cash on delivery.
	PaymentMethodCOD PaymentMethod = "cod"
)

// OrderSummary is the frozen monetary tuple persisted at order creation.
// It is never recomputed afterwards, even if customization configs or coupon
// definitions later change: historical orders must display what the customer
// actually paid.
type OrderSummary struct {
	Subtotal        int64
	TotalMRP        int64
	ProductDiscount int64
	ShippingFee     int64
	CouponDiscount  int64
	CouponCode      string
	TotalDiscount   int64
	GrandTotal      int64
	PaymentMethod   PaymentMethod
}

// OrderLineItem mirrors a cart line item at the time of checkout, with the
// effective unit price resolved against the configs in force at that moment.
type OrderLineItem struct {
	ProductID      string
	Name           string
	ProductType    string
	Quantity       int
	UnitPrice      int64
	UnitMRP        int64
	Customizations CustomizationSelection
	Total          int64
}

// OrderContact stores the customer contact snapshot for notifications.
type OrderContact struct {
	Email string
	Phone string
}

// Order captures a placed order with its frozen summary and status history.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Currency        string
	Status          OrderStatus
	StatusHistory   []StatusHistoryEntry
	Items           []OrderLineItem
	Summary         OrderSummary
	ShippingAddress *Address
	Contact         *OrderContact
	PaymentRef      string
	Notes           string
	CancelReason    *string
	PlacedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}
