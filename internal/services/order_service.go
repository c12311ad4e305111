package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/payments"
	"github.com/fluteatelier/api/internal/repositories"
)

const maxCancelReasonLength = 500

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid input.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderUnavailable indicates the order backend cannot be reached.
	ErrOrderUnavailable = errors.New("order service: unavailable")
	// ErrOrderNotFound indicates the requested order does not exist or the
	// caller is not allowed to see it.
	ErrOrderNotFound = errors.New("order service: not found")
	// ErrOrderTransitionDenied indicates the requested status change is not
	// permitted from the order's current state.
	ErrOrderTransitionDenied = errors.New("order service: transition not allowed")
	// ErrOrderCancelDenied indicates the customer cannot cancel the order in
	// its current state.
	ErrOrderCancelDenied = errors.New("order service: cancellation not allowed")
)

// OrderServiceDeps wires persistence, payments, and eventing behind the
// order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Gateway     payments.Gateway
	Events      OrderEventPublisher
	Clock       func() time.Time
	SellerName  string
	SellerTaxID string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders      repositories.OrderRepository
	gateway     payments.Gateway
	events      OrderEventPublisher
	now         func() time.Time
	sellerName  string
	sellerTaxID string
	logger      func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs an OrderService validating its dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders:      deps.Orders,
		gateway:     deps.Gateway,
		events:      deps.Events,
		now:         func() time.Time { return clock().UTC() },
		sellerName:  strings.TrimSpace(deps.SellerName),
		sellerTaxID: strings.TrimSpace(deps.SellerTaxID),
		logger:      logger,
	}, nil
}

// GetOrder loads an order. Non-admin callers only see their own orders;
// foreign orders read as not found rather than forbidden.
func (s *orderService) GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if !opts.Admin && order.UserID != strings.TrimSpace(opts.UserID) {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders lists orders matching the filter.
func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if s == nil || s.orders == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, filter.Status)
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:      strings.TrimSpace(filter.UserID),
		Status:      filter.Status,
		PlacedFrom:  cloneTimePointer(filter.PlacedFrom),
		PlacedUntil: cloneTimePointer(filter.PlacedUntil),
		Sort:        filter.Sort,
		Pager:       filter.Pager,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}
	return page, nil
}

// TransitionStatus moves an order along the lifecycle on behalf of staff.
// The transition table is closed; history is append-only. Transitioning a
// card order to refunded also issues the gateway refund.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}
	if !cmd.Next.IsValid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Next)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if !order.Status.CanTransitionTo(cmd.Next) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderTransitionDenied, order.Status, cmd.Next)
	}

	if cmd.Next == domain.OrderStatusRefunded {
		if err := s.refundPayment(ctx, order); err != nil {
			return Order{}, err
		}
	}

	updated, err := s.append(ctx, order, cmd.Next, strings.TrimSpace(cmd.Comment), nil)
	if err != nil {
		return Order{}, err
	}
	s.logger(ctx, "order.status_changed", map[string]any{
		"orderID": updated.ID,
		"from":    string(order.Status),
		"to":      string(cmd.Next),
		"actor":   cmd.Actor,
	})
	return updated, nil
}

// Cancel is the customer-facing cancellation. While placed the order cancels
// immediately; while processing or shipped it raises a cancellation request
// for staff to approve; otherwise it is refused.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(cmd.OrderID)
	uid := strings.TrimSpace(cmd.UserID)
	if id == "" || uid == "" {
		return Order{}, ErrOrderInvalidInput
	}
	reason := strings.TrimSpace(cmd.Reason)
	if len(reason) > maxCancelReasonLength {
		return Order{}, fmt.Errorf("%w: reason must be %d characters or fewer", ErrOrderInvalidInput, maxCancelReasonLength)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if order.UserID != uid {
		return Order{}, ErrOrderNotFound
	}

	var next domain.OrderStatus
	switch order.Status.CustomerCancellation() {
	case domain.CancellationDirect:
		next = domain.OrderStatusCancelled
	case domain.CancellationRequiresApproval:
		next = domain.OrderStatusCancellationPending
	default:
		return Order{}, ErrOrderCancelDenied
	}

	var cancelReason *string
	if reason != "" {
		cancelReason = &reason
	}
	updated, err := s.append(ctx, order, next, reason, cancelReason)
	if err != nil {
		return Order{}, err
	}
	s.logger(ctx, "order.cancel_requested", map[string]any{
		"orderID": updated.ID,
		"from":    string(order.Status),
		"to":      string(next),
	})
	return updated, nil
}

// Invoice projects an order into its printable invoice. Every amount comes
// from the frozen summary.
func (s *orderService) Invoice(ctx context.Context, orderID string, opts OrderReadOptions) (InvoicePayload, error) {
	order, err := s.GetOrder(ctx, orderID, opts)
	if err != nil {
		return InvoicePayload{}, err
	}
	return InvoicePayload{
		Order:       order,
		IssuedAt:    s.now(),
		InvoiceNo:   "INV-" + order.OrderNumber,
		SellerName:  s.sellerName,
		SellerTaxID: s.sellerTaxID,
	}, nil
}

// DashboardStats aggregates order counts and revenue per day over the range.
// Cancelled and refunded orders count as orders but contribute no revenue.
func (s *orderService) DashboardStats(ctx context.Context, from, until time.Time) (DashboardStats, error) {
	if s == nil || s.orders == nil {
		return DashboardStats{}, ErrOrderUnavailable
	}
	from = from.UTC().Truncate(24 * time.Hour)
	until = until.UTC()
	if !until.After(from) {
		return DashboardStats{}, fmt.Errorf("%w: empty date range", ErrOrderInvalidInput)
	}

	orders, err := s.orders.ListPlacedBetween(ctx, from, until)
	if err != nil {
		return DashboardStats{}, ErrOrderUnavailable
	}

	stats := DashboardStats{From: from, Until: until}
	byDay := make(map[time.Time]int)
	for _, order := range orders {
		day := order.PlacedAt.UTC().Truncate(24 * time.Hour)
		idx, ok := byDay[day]
		if !ok {
			idx = len(stats.Buckets)
			byDay[day] = idx
			stats.Buckets = append(stats.Buckets, DashboardBucket{Day: day})
		}
		stats.Buckets[idx].Orders++
		stats.TotalOrders++
		if order.Status != domain.OrderStatusCancelled && order.Status != domain.OrderStatusRefunded {
			stats.Buckets[idx].Revenue += order.Summary.GrandTotal
			stats.TotalRevenue += order.Summary.GrandTotal
		}
	}
	return stats, nil
}

func (s *orderService) append(ctx context.Context, order domain.Order, next domain.OrderStatus, comment string, cancelReason *string) (domain.Order, error) {
	updated, err := s.orders.AppendStatusHistory(ctx, order.ID, next, domain.StatusHistoryEntry{
		Status:  next,
		At:      s.now(),
		Comment: comment,
	}, cancelReason)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	s.publish(ctx, updated, order.Status)
	return updated, nil
}

func (s *orderService) refundPayment(ctx context.Context, order domain.Order) error {
	if order.Summary.PaymentMethod != domain.PaymentMethodCard || strings.TrimSpace(order.PaymentRef) == "" {
		return nil
	}
	if s.gateway == nil {
		return ErrOrderUnavailable
	}
	if _, err := s.gateway.RefundIntent(ctx, order.PaymentRef, "requested_by_customer"); err != nil {
		s.logger(ctx, "order.refund_failed", map[string]any{"orderID": order.ID, "error": err.Error()})
		return ErrOrderUnavailable
	}
	return nil
}

func (s *orderService) publish(ctx context.Context, order domain.Order, previous domain.OrderStatus) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, OrderEvent{
		Type:        "order.status_changed",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		Previous:    previous,
		GrandTotal:  order.Summary.GrandTotal,
		OccurredAt:  s.now(),
	}); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{"orderID": order.ID, "error": err.Error()})
	}
}

func (s *orderService) translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return ErrOrderNotFound
	default:
		return ErrOrderUnavailable
	}
}
