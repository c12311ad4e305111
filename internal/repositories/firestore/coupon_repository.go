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

const (
	couponCollection      = "coupons"
	couponUsageCollection = "couponUsage"
)

// CouponRepository persists coupon definitions in Firestore.
type CouponRepository struct {
	coll *pfirestore.Collection[couponDocument]
}

// NewCouponRepository constructs the Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		coll: pfirestore.NewCollection[couponDocument](provider, couponCollection),
	}, nil
}

// Insert creates a new coupon document. Inserting an existing ID is a
// conflict.
func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) error {
	ref, err := r.coll.Doc(ctx, strings.TrimSpace(coupon.ID))
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeCouponDocument(coupon)); err != nil {
		return pfirestore.WrapError("coupons.insert", err)
	}
	return nil
}

// Update replaces an existing coupon document.
func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	id := strings.TrimSpace(coupon.ID)
	if id == "" {
		return errors.New("coupon repository: coupon id is required")
	}
	if _, err := r.coll.Get(ctx, id); err != nil {
		return err
	}
	_, err := r.coll.Set(ctx, id, encodeCouponDocument(coupon))
	return err
}

// Delete removes a coupon document. The document must exist.
func (r *CouponRepository) Delete(ctx context.Context, couponID string) error {
	id := strings.TrimSpace(couponID)
	if id == "" {
		return errors.New("coupon repository: coupon id is required")
	}
	if _, err := r.coll.Get(ctx, id); err != nil {
		return err
	}
	return r.coll.Delete(ctx, id)
}

// FindByCode loads a coupon by its normalised code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.Coupon{}, pfirestore.NotFoundError("coupons.findByCode", errors.New("code is required"))
	}
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Coupon{}, err
	}
	if len(docs) == 0 {
		return domain.Coupon{}, pfirestore.NotFoundError("coupons.findByCode", fmt.Errorf("code %q not found", code))
	}
	return decodeCouponDocument(docs[0].ID, docs[0].Data), nil
}

// List pages through coupon definitions ordered by creation time.
func (r *CouponRepository) List(ctx context.Context, filter repositories.CouponListFilter) (domain.CursorPage[domain.Coupon], error) {
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
			return domain.CursorPage[domain.Coupon]{}, fmt.Errorf("coupon repository: invalid page token: %w", err)
		}
		startAfter = []any{ts, id}
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		if !filter.IncludeHidden {
			q = q.Where("isHidden", "==", false)
		}
		if !filter.IncludeInactive {
			q = q.Where("isActive", "==", true)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Coupon]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeListToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Coupon, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeCouponDocument(doc.ID, doc.Data))
	}
	return domain.CursorPage[domain.Coupon]{Items: items, NextPageToken: nextToken}, nil
}

// CouponUsageRepository tracks per-user redemption counters keyed by
// "<CODE>_<userID>".
type CouponUsageRepository struct {
	coll     *pfirestore.Collection[couponUsageDocument]
	provider *pfirestore.Provider
}

// NewCouponUsageRepository constructs the Firestore-backed usage repository.
func NewCouponUsageRepository(provider *pfirestore.Provider) (*CouponUsageRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon usage repository requires firestore provider")
	}
	return &CouponUsageRepository{
		coll:     pfirestore.NewCollection[couponUsageDocument](provider, couponUsageCollection),
		provider: provider,
	}, nil
}

// Count returns how many times the user has redeemed the code. A missing
// counter document counts as zero.
func (r *CouponUsageRepository) Count(ctx context.Context, code string, userID string) (int, error) {
	id, err := couponUsageDocKey(code, userID)
	if err != nil {
		return 0, err
	}
	doc, err := r.coll.Get(ctx, id)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return 0, nil
		}
		return 0, err
	}
	return doc.Data.Times, nil
}

// Record increments the redemption counter inside a transaction so
// concurrent checkouts cannot lose an increment.
func (r *CouponUsageRepository) Record(ctx context.Context, code string, userID string, usedAt time.Time) error {
	id, err := couponUsageDocKey(code, userID)
	if err != nil {
		return err
	}
	ref, err := r.coll.Doc(ctx, id)
	if err != nil {
		return err
	}
	normalisedCode := strings.ToUpper(strings.TrimSpace(code))
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc := couponUsageDocument{
			Code:     normalisedCode,
			UserID:   strings.TrimSpace(userID),
			Times:    1,
			LastUsed: usedAt.UTC(),
		}
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
		case codes.OK:
			var existing couponUsageDocument
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			doc.Times = existing.Times + 1
		default:
			return err
		}
		return tx.Set(ref, doc)
	})
}

func couponUsageDocKey(code string, userID string) (string, error) {
	normalisedCode := strings.ToUpper(strings.TrimSpace(code))
	uid := strings.TrimSpace(userID)
	if normalisedCode == "" || uid == "" {
		return "", errors.New("coupon usage repository: code and user id are required")
	}
	return normalisedCode + "_" + uid, nil
}

type couponDocument struct {
	Code           string     `firestore:"code"`
	Description    string     `firestore:"description,omitempty"`
	DiscountType   string     `firestore:"discountType"`
	DiscountValue  int64      `firestore:"discountValue"`
	MinOrderAmount int64      `firestore:"minOrderAmount,omitempty"`
	MaxUsesPerUser int        `firestore:"maxUsesPerUser,omitempty"`
	ValidFrom      *time.Time `firestore:"validFrom,omitempty"`
	ValidUntil     *time.Time `firestore:"validUntil,omitempty"`
	IsActive       bool       `firestore:"isActive"`
	IsHidden       bool       `firestore:"isHidden"`
	CreatedAt      time.Time  `firestore:"createdAt"`
	UpdatedAt      time.Time  `firestore:"updatedAt"`
}

type couponUsageDocument struct {
	Code     string    `firestore:"code"`
	UserID   string    `firestore:"userId"`
	Times    int       `firestore:"times"`
	LastUsed time.Time `firestore:"lastUsed"`
}

func encodeCouponDocument(coupon domain.Coupon) couponDocument {
	return couponDocument{
		Code:           strings.ToUpper(strings.TrimSpace(coupon.Code)),
		Description:    coupon.Description,
		DiscountType:   string(coupon.DiscountType),
		DiscountValue:  coupon.DiscountValue,
		MinOrderAmount: coupon.MinOrderAmount,
		MaxUsesPerUser: coupon.MaxUsesPerUser,
		ValidFrom:      coupon.ValidFrom,
		ValidUntil:     coupon.ValidUntil,
		IsActive:       coupon.IsActive,
		IsHidden:       coupon.IsHidden,
		CreatedAt:      coupon.CreatedAt.UTC(),
		UpdatedAt:      coupon.UpdatedAt.UTC(),
	}
}

func decodeCouponDocument(id string, doc couponDocument) domain.Coupon {
	return domain.Coupon{
		ID:             id,
		Code:           doc.Code,
		Description:    doc.Description,
		DiscountType:   domain.DiscountType(doc.DiscountType),
		DiscountValue:  doc.DiscountValue,
		MinOrderAmount: doc.MinOrderAmount,
		MaxUsesPerUser: doc.MaxUsesPerUser,
		ValidFrom:      doc.ValidFrom,
		ValidUntil:     doc.ValidUntil,
		IsActive:       doc.IsActive,
		IsHidden:       doc.IsHidden,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

var (
	_ repositories.CouponRepository      = (*CouponRepository)(nil)
	_ repositories.CouponUsageRepository = (*CouponUsageRepository)(nil)
)
