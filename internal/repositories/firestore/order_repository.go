package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fluteatelier/api/internal/domain"
	pfirestore "github.com/fluteatelier/api/internal/platform/firestore"
	"github.com/fluteatelier/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders in Firestore. An order's summary and line
// items are written once at insert and never mutated; only the status,
// history, and cancellation fields change afterwards.
type OrderRepository struct {
	coll     *pfirestore.Collection[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs the Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		coll:     pfirestore.NewCollection[orderDocument](provider, orderCollection),
		provider: provider,
	}, nil
}

// Insert creates the order document. Inserting an existing ID is a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	id := strings.TrimSpace(order.ID)
	ref, err := r.coll.Doc(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := ref.Create(ctx, encodeOrderDocument(order)); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}
	saved := order
	saved.ID = id
	return saved, nil
}

// FindByID loads an order by document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.coll.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(doc.ID, doc.Data), nil
}

// FindByPaymentRef loads the order referencing a gateway payment intent.
func (r *OrderRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Order, error) {
	ref := strings.TrimSpace(paymentRef)
	if ref == "" {
		return domain.Order{}, pfirestore.NotFoundError("orders.findByPaymentRef", errors.New("payment ref is required"))
	}
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("paymentRef", "==", ref).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NotFoundError("orders.findByPaymentRef", fmt.Errorf("payment ref %q not found", ref))
	}
	return decodeOrderDocument(docs[0].ID, docs[0].Data), nil
}

// List pages through orders, most recently placed first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	limit := filter.Pager.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pager.PageToken); token != "" {
		ts, id, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{ts, id}
	}

	direction := firestore.Desc
	if filter.Sort == domain.SortAsc {
		direction = firestore.Asc
	}
	userID := strings.TrimSpace(filter.UserID)

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		if filter.PlacedFrom != nil {
			q = q.Where("placedAt", ">=", filter.PlacedFrom.UTC())
		}
		if filter.PlacedUntil != nil {
			q = q.Where("placedAt", "<", filter.PlacedUntil.UTC())
		}
		q = q.OrderBy("placedAt", direction).OrderBy(firestore.DocumentID, direction)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeListToken(last.Data.PlacedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data))
	}
	return domain.CursorPage[domain.Order]{Items: items, NextPageToken: nextToken}, nil
}

// ListPlacedBetween returns all orders placed within [from, until), oldest
// first. Used by dashboard aggregation, which needs the full window.
func (r *OrderRepository) ListPlacedBetween(ctx context.Context, from, until time.Time) ([]domain.Order, error) {
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("placedAt", ">=", from.UTC()).
			Where("placedAt", "<", until.UTC()).
			OrderBy("placedAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrderDocument(doc.ID, doc.Data))
	}
	return orders, nil
}

// AppendStatusHistory atomically sets the new status and appends the history
// entry inside a transaction. History is append-only; prior entries are
// never rewritten.
func (r *OrderRepository) AppendStatusHistory(ctx context.Context, orderID string, newStatus domain.OrderStatus, entry domain.StatusHistoryEntry, cancelReason *string) (domain.Order, error) {
	id := strings.TrimSpace(orderID)
	ref, err := r.coll.Doc(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	var saved domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return pfirestore.NotFoundError("orders.appendStatusHistory", fmt.Errorf("order %s not found", id))
		}
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}

		at := entry.At.UTC()
		doc.Status = string(newStatus)
		doc.StatusHistory = append(doc.StatusHistory, statusHistoryDocument{
			Status:  string(entry.Status),
			At:      at,
			Comment: entry.Comment,
		})
		doc.UpdatedAt = at
		if cancelReason != nil {
			reason := strings.TrimSpace(*cancelReason)
			doc.CancelReason = &reason
		}
		switch newStatus {
		case domain.OrderStatusDelivered:
			doc.DeliveredAt = &at
		case domain.OrderStatusCancelled, domain.OrderStatusRefunded:
			if doc.CancelledAt == nil {
				doc.CancelledAt = &at
			}
		}

		saved = decodeOrderDocument(id, doc)
		return tx.Set(ref, doc)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return saved, nil
}

type orderDocument struct {
	OrderNumber     string                  `firestore:"orderNumber"`
	UserID          string                  `firestore:"userId"`
	Currency        string                  `firestore:"currency"`
	Status          string                  `firestore:"status"`
	StatusHistory   []statusHistoryDocument `firestore:"statusHistory"`
	Items           []orderLineDocument     `firestore:"items"`
	Summary         orderSummaryDocument    `firestore:"summary"`
	ShippingAddress *addressDocument        `firestore:"shippingAddress,omitempty"`
	ContactEmail    string                  `firestore:"contactEmail,omitempty"`
	ContactPhone    string                  `firestore:"contactPhone,omitempty"`
	PaymentRef      string                  `firestore:"paymentRef,omitempty"`
	Notes           string                  `firestore:"notes,omitempty"`
	CancelReason    *string                 `firestore:"cancelReason,omitempty"`
	PlacedAt        time.Time               `firestore:"placedAt"`
	CreatedAt       time.Time               `firestore:"createdAt"`
	UpdatedAt       time.Time               `firestore:"updatedAt"`
	DeliveredAt     *time.Time              `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time              `firestore:"cancelledAt,omitempty"`
}

type statusHistoryDocument struct {
	Status  string    `firestore:"status"`
	At      time.Time `firestore:"at"`
	Comment string    `firestore:"comment,omitempty"`
}

type orderLineDocument struct {
	ProductID      string         `firestore:"productId"`
	Name           string         `firestore:"name"`
	ProductType    string         `firestore:"productType,omitempty"`
	Quantity       int            `firestore:"quantity"`
	UnitPrice      int64          `firestore:"unitPrice"`
	UnitMRP        int64          `firestore:"unitMrp"`
	Customizations map[string]any `firestore:"customizations,omitempty"`
	Total          int64          `firestore:"total"`
}

type orderSummaryDocument struct {
	Subtotal        int64  `firestore:"subtotal"`
	TotalMRP        int64  `firestore:"totalMrp"`
	ProductDiscount int64  `firestore:"productDiscount"`
	ShippingFee     int64  `firestore:"shippingFee"`
	CouponDiscount  int64  `firestore:"couponDiscount"`
	CouponCode      string `firestore:"couponCode,omitempty"`
	TotalDiscount   int64  `firestore:"totalDiscount"`
	GrandTotal      int64  `firestore:"grandTotal"`
	PaymentMethod   string `firestore:"paymentMethod"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	history := make([]statusHistoryDocument, 0, len(order.StatusHistory))
	for _, entry := range order.StatusHistory {
		history = append(history, statusHistoryDocument{
			Status:  string(entry.Status),
			At:      entry.At.UTC(),
			Comment: entry.Comment,
		})
	}
	items := make([]orderLineDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderLineDocument{
			ProductID:      item.ProductID,
			Name:           item.Name,
			ProductType:    item.ProductType,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			UnitMRP:        item.UnitMRP,
			Customizations: map[string]any(item.Customizations),
			Total:          item.Total,
		})
	}
	doc := orderDocument{
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Currency:    order.Currency,
		Status:      string(order.Status),
		StatusHistory: history,
		Items:       items,
		Summary: orderSummaryDocument{
			Subtotal:        order.Summary.Subtotal,
			TotalMRP:        order.Summary.TotalMRP,
			ProductDiscount: order.Summary.ProductDiscount,
			ShippingFee:     order.Summary.ShippingFee,
			CouponDiscount:  order.Summary.CouponDiscount,
			CouponCode:      order.Summary.CouponCode,
			TotalDiscount:   order.Summary.TotalDiscount,
			GrandTotal:      order.Summary.GrandTotal,
			PaymentMethod:   string(order.Summary.PaymentMethod),
		},
		PaymentRef:   order.PaymentRef,
		Notes:        order.Notes,
		CancelReason: order.CancelReason,
		PlacedAt:     order.PlacedAt.UTC(),
		CreatedAt:    order.CreatedAt.UTC(),
		UpdatedAt:    order.UpdatedAt.UTC(),
		DeliveredAt:  order.DeliveredAt,
		CancelledAt:  order.CancelledAt,
	}
	if order.ShippingAddress != nil {
		address := encodeAddressDocument(*order.ShippingAddress)
		doc.ShippingAddress = &address
	}
	if order.Contact != nil {
		doc.ContactEmail = order.Contact.Email
		doc.ContactPhone = order.Contact.Phone
	}
	return doc
}

func decodeOrderDocument(id string, doc orderDocument) domain.Order {
	history := make([]domain.StatusHistoryEntry, 0, len(doc.StatusHistory))
	for _, entry := range doc.StatusHistory {
		history = append(history, domain.StatusHistoryEntry{
			Status:  domain.OrderStatus(entry.Status),
			At:      entry.At,
			Comment: entry.Comment,
		})
	}
	items := make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderLineItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			ProductType:    item.ProductType,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			UnitMRP:        item.UnitMRP,
			Customizations: domain.CustomizationSelection(item.Customizations),
			Total:          item.Total,
		})
	}
	order := domain.Order{
		ID:            id,
		OrderNumber:   doc.OrderNumber,
		UserID:        doc.UserID,
		Currency:      doc.Currency,
		Status:        domain.OrderStatus(doc.Status),
		StatusHistory: history,
		Items:         items,
		Summary: domain.OrderSummary{
			Subtotal:        doc.Summary.Subtotal,
			TotalMRP:        doc.Summary.TotalMRP,
			ProductDiscount: doc.Summary.ProductDiscount,
			ShippingFee:     doc.Summary.ShippingFee,
			CouponDiscount:  doc.Summary.CouponDiscount,
			CouponCode:      doc.Summary.CouponCode,
			TotalDiscount:   doc.Summary.TotalDiscount,
			GrandTotal:      doc.Summary.GrandTotal,
			PaymentMethod:   domain.PaymentMethod(doc.Summary.PaymentMethod),
		},
		PaymentRef:   doc.PaymentRef,
		Notes:        doc.Notes,
		CancelReason: doc.CancelReason,
		PlacedAt:     doc.PlacedAt,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		DeliveredAt:  doc.DeliveredAt,
		CancelledAt:  doc.CancelledAt,
	}
	if doc.ShippingAddress != nil {
		address := decodeAddressDocument("", *doc.ShippingAddress)
		order.ShippingAddress = &address
	}
	if doc.ContactEmail != "" || doc.ContactPhone != "" {
		order.Contact = &domain.OrderContact{Email: doc.ContactEmail, Phone: doc.ContactPhone}
	}
	return order
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
