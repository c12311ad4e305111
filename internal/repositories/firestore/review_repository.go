package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/fluteatelier/api/internal/domain"
	pfirestore "github.com/fluteatelier/api/internal/platform/firestore"
	"github.com/fluteatelier/api/internal/repositories"
)

const reviewCollection = "reviews"

// ReviewRepository persists product reviews and their moderation state.
type ReviewRepository struct {
	coll *pfirestore.Collection[reviewDocument]
}

// NewReviewRepository constructs the Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	return &ReviewRepository{
		coll: pfirestore.NewCollection[reviewDocument](provider, reviewCollection),
	}, nil
}

// Insert creates a review document. Inserting an existing ID is a conflict.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	ref, err := r.coll.Doc(ctx, strings.TrimSpace(review.ID))
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeReviewDocument(review)); err != nil {
		return pfirestore.WrapError("reviews.insert", err)
	}
	return nil
}

// Update replaces an existing review document.
func (r *ReviewRepository) Update(ctx context.Context, review domain.Review) error {
	id := strings.TrimSpace(review.ID)
	if id == "" {
		return errors.New("review repository: review id is required")
	}
	if _, err := r.coll.Get(ctx, id); err != nil {
		return err
	}
	_, err := r.coll.Set(ctx, id, encodeReviewDocument(review))
	return err
}

// FindByID loads a review by document ID.
func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	doc, err := r.coll.Get(ctx, strings.TrimSpace(reviewID))
	if err != nil {
		return domain.Review{}, err
	}
	return decodeReviewDocument(doc.ID, doc.Data), nil
}

// FindByOrderAndProduct loads the review a user left for a product within a
// specific order, enforcing the one-review-per-line rule.
func (r *ReviewRepository) FindByOrderAndProduct(ctx context.Context, orderID string, productID string) (domain.Review, error) {
	orderID = strings.TrimSpace(orderID)
	productID = strings.TrimSpace(productID)
	if orderID == "" || productID == "" {
		return domain.Review{}, pfirestore.NotFoundError("reviews.findByOrderAndProduct", errors.New("order and product ids are required"))
	}
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).Where("productId", "==", productID).Limit(1)
	})
	if err != nil {
		return domain.Review{}, err
	}
	if len(docs) == 0 {
		return domain.Review{}, pfirestore.NotFoundError("reviews.findByOrderAndProduct", fmt.Errorf("no review for order %s product %s", orderID, productID))
	}
	return decodeReviewDocument(docs[0].ID, docs[0].Data), nil
}

// List pages through reviews, newest first.
func (r *ReviewRepository) List(ctx context.Context, filter repositories.ReviewListFilter) (domain.CursorPage[domain.Review], error) {
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
			return domain.CursorPage[domain.Review]{}, fmt.Errorf("review repository: invalid page token: %w", err)
		}
		startAfter = []any{ts, id}
	}
	productID := strings.TrimSpace(filter.ProductID)
	userID := strings.TrimSpace(filter.UserID)

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		if productID != "" {
			q = q.Where("productId", "==", productID)
		}
		if userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
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
		return domain.CursorPage[domain.Review]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeListToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeReviewDocument(doc.ID, doc.Data))
	}
	return domain.CursorPage[domain.Review]{Items: items, NextPageToken: nextToken}, nil
}

type reviewDocument struct {
	ProductID   string               `firestore:"productId"`
	OrderID     string               `firestore:"orderId"`
	UserID      string               `firestore:"userId"`
	Rating      int                  `firestore:"rating"`
	Comment     string               `firestore:"comment,omitempty"`
	Status      string               `firestore:"status"`
	ModeratedBy *string              `firestore:"moderatedBy,omitempty"`
	ModeratedAt *time.Time           `firestore:"moderatedAt,omitempty"`
	Reply       *reviewReplyDocument `firestore:"reply,omitempty"`
	CreatedAt   time.Time            `firestore:"createdAt"`
	UpdatedAt   time.Time            `firestore:"updatedAt"`
}

type reviewReplyDocument struct {
	Message   string    `firestore:"message"`
	AuthorRef string    `firestore:"authorRef,omitempty"`
	Visible   bool      `firestore:"visible"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func encodeReviewDocument(review domain.Review) reviewDocument {
	doc := reviewDocument{
		ProductID:   review.ProductID,
		OrderID:     review.OrderID,
		UserID:      review.UserID,
		Rating:      review.Rating,
		Comment:     review.Comment,
		Status:      string(review.Status),
		ModeratedBy: review.ModeratedBy,
		ModeratedAt: review.ModeratedAt,
		CreatedAt:   review.CreatedAt.UTC(),
		UpdatedAt:   review.UpdatedAt.UTC(),
	}
	if review.Reply != nil {
		doc.Reply = &reviewReplyDocument{
			Message:   review.Reply.Message,
			AuthorRef: review.Reply.AuthorRef,
			Visible:   review.Reply.Visible,
			CreatedAt: review.Reply.CreatedAt.UTC(),
			UpdatedAt: review.Reply.UpdatedAt.UTC(),
		}
	}
	return doc
}

func decodeReviewDocument(id string, doc reviewDocument) domain.Review {
	review := domain.Review{
		ID:          id,
		ProductID:   doc.ProductID,
		OrderID:     doc.OrderID,
		UserID:      doc.UserID,
		Rating:      doc.Rating,
		Comment:     doc.Comment,
		Status:      domain.ReviewStatus(doc.Status),
		ModeratedBy: doc.ModeratedBy,
		ModeratedAt: doc.ModeratedAt,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if doc.Reply != nil {
		review.Reply = &domain.ReviewReply{
			Message:   doc.Reply.Message,
			AuthorRef: doc.Reply.AuthorRef,
			Visible:   doc.Reply.Visible,
			CreatedAt: doc.Reply.CreatedAt,
			UpdatedAt: doc.Reply.UpdatedAt,
		}
	}
	return review
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)
