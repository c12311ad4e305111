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

const cartCollection = "carts"

// CartRepository persists cart documents keyed by user ID.
type CartRepository struct {
	coll     *pfirestore.Collection[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs the Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		coll:     pfirestore.NewCollection[cartDocument](provider, cartCollection),
		provider: provider,
	}, nil
}

// GetCart loads the cart for the given user.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	doc, err := r.coll.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCartDocument(doc.ID, doc.Data), nil
}

// UpsertCart writes the full cart document. When expectedUpdate is supplied
// the write runs in a transaction and fails with a conflict if the stored
// updatedAt no longer matches, so concurrent mutations cannot silently
// overwrite each other.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error) {
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		uid = strings.TrimSpace(cart.ID)
	}
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc := encodeCartDocument(cart)
	saved := cart
	saved.ID = uid
	saved.UserID = uid

	if expectedUpdate == nil || expectedUpdate.IsZero() {
		result, err := r.coll.Set(ctx, uid, doc)
		if err != nil {
			return domain.Cart{}, err
		}
		saved.UpdatedAt = result.UpdateTime
		return saved, nil
	}

	ref, err := r.coll.Doc(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	expected := expectedUpdate.UTC().Truncate(time.Microsecond)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
			return pfirestore.ConflictError("carts.upsert", fmt.Errorf("cart %s was deleted concurrently", uid))
		case codes.OK:
		default:
			return err
		}
		var stored cartDocument
		if err := snap.DataTo(&stored); err != nil {
			return err
		}
		if !stored.UpdatedAt.UTC().Truncate(time.Microsecond).Equal(expected) {
			return pfirestore.ConflictError("carts.upsert", fmt.Errorf("cart %s changed concurrently", uid))
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	saved.UpdatedAt = doc.UpdatedAt
	return saved, nil
}

// DeleteCart removes the cart document for the user.
func (r *CartRepository) DeleteCart(ctx context.Context, userID string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}
	return r.coll.Delete(ctx, uid)
}

type cartDocument struct {
	Currency          string               `firestore:"currency"`
	Items             []cartItemDocument   `firestore:"items,omitempty"`
	Coupon            *cartCouponDocument  `firestore:"coupon,omitempty"`
	ShippingAddressID string               `firestore:"shippingAddressId,omitempty"`
	ShippingAddress   *addressDocument     `firestore:"shippingAddress,omitempty"`
	Estimate          *cartEstimateDocument `firestore:"estimate,omitempty"`
	Metadata          map[string]any       `firestore:"metadata,omitempty"`
	CreatedAt         time.Time            `firestore:"createdAt"`
	UpdatedAt         time.Time            `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID             string         `firestore:"id"`
	ProductID      string         `firestore:"productId"`
	Quantity       int            `firestore:"quantity"`
	Customizations map[string]any `firestore:"customizations,omitempty"`
	AddedAt        time.Time      `firestore:"addedAt"`
	UpdatedAt      *time.Time     `firestore:"updatedAt,omitempty"`
}

type cartCouponDocument struct {
	Code           string `firestore:"code"`
	DiscountAmount int64  `firestore:"discountAmount"`
	Applied        bool   `firestore:"applied"`
}

type cartEstimateDocument struct {
	Subtotal        int64 `firestore:"subtotal"`
	TotalMRP        int64 `firestore:"totalMrp"`
	ProductDiscount int64 `firestore:"productDiscount"`
	ShippingFee     int64 `firestore:"shippingFee"`
	CouponDiscount  int64 `firestore:"couponDiscount"`
	GrandTotal      int64 `firestore:"grandTotal"`
}

func encodeCartDocument(cart domain.Cart) cartDocument {
	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemDocument{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			Customizations: map[string]any(item.Customizations),
			AddedAt:        item.AddedAt.UTC(),
			UpdatedAt:      item.UpdatedAt,
		})
	}
	doc := cartDocument{
		Currency:          strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:             items,
		ShippingAddressID: strings.TrimSpace(cart.ShippingAddressID),
		Metadata:          cart.Metadata,
		CreatedAt:         cart.CreatedAt.UTC(),
		UpdatedAt:         cart.UpdatedAt.UTC(),
	}
	if cart.Coupon != nil {
		doc.Coupon = &cartCouponDocument{
			Code:           cart.Coupon.Code,
			DiscountAmount: cart.Coupon.DiscountAmount,
			Applied:        cart.Coupon.Applied,
		}
	}
	if cart.ShippingAddress != nil {
		address := encodeAddressDocument(*cart.ShippingAddress)
		doc.ShippingAddress = &address
	}
	if cart.Estimate != nil {
		doc.Estimate = &cartEstimateDocument{
			Subtotal:        cart.Estimate.Subtotal,
			TotalMRP:        cart.Estimate.TotalMRP,
			ProductDiscount: cart.Estimate.ProductDiscount,
			ShippingFee:     cart.Estimate.ShippingFee,
			CouponDiscount:  cart.Estimate.CouponDiscount,
			GrandTotal:      cart.Estimate.GrandTotal,
		}
	}
	return doc
}

func decodeCartDocument(id string, doc cartDocument) domain.Cart {
	items := make([]domain.CartLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.CartLineItem{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			Customizations: domain.CustomizationSelection(item.Customizations),
			AddedAt:        item.AddedAt,
			UpdatedAt:      item.UpdatedAt,
		})
	}
	cart := domain.Cart{
		ID:                id,
		UserID:            id,
		Currency:          doc.Currency,
		Items:             items,
		ShippingAddressID: doc.ShippingAddressID,
		Metadata:          doc.Metadata,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
	if doc.Coupon != nil {
		cart.Coupon = &domain.CartCoupon{
			Code:           doc.Coupon.Code,
			DiscountAmount: doc.Coupon.DiscountAmount,
			Applied:        doc.Coupon.Applied,
		}
	}
	if doc.ShippingAddress != nil {
		address := decodeAddressDocument("", *doc.ShippingAddress)
		cart.ShippingAddress = &address
	}
	if doc.Estimate != nil {
		cart.Estimate = &domain.CartEstimate{
			Subtotal:        doc.Estimate.Subtotal,
			TotalMRP:        doc.Estimate.TotalMRP,
			ProductDiscount: doc.Estimate.ProductDiscount,
			ShippingFee:     doc.Estimate.ShippingFee,
			CouponDiscount:  doc.Estimate.CouponDiscount,
			GrandTotal:      doc.Estimate.GrandTotal,
		}
	}
	return cart
}

var _ repositories.CartRepository = (*CartRepository)(nil)
