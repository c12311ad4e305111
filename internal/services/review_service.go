package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/fluteatelier/api/internal/domain"
	"github.com/fluteatelier/api/internal/repositories"
)

const maxReviewCommentLength = 4000

var (
	// ErrReviewInvalidInput indicates the caller supplied invalid input.
	ErrReviewInvalidInput = errors.New("review service: invalid input")
	// ErrReviewUnavailable indicates the review backend cannot be reached.
	ErrReviewUnavailable = errors.New("review service: unavailable")
	// ErrReviewNotFound indicates the requested review does not exist.
	ErrReviewNotFound = errors.New("review service: not found")
	// ErrReviewNotEligible indicates the caller has no delivered order
	// containing the product.
	ErrReviewNotEligible = errors.New("review service: purchase not eligible for review")
	// ErrReviewAlreadyExists indicates the product was already reviewed for
	// this order.
	ErrReviewAlreadyExists = errors.New("review service: already reviewed")
)

// ReviewServiceDeps wires persistence behind the review service.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Orders      repositories.OrderRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type reviewService struct {
	reviews   repositories.ReviewRepository
	orders    repositories.OrderRepository
	now       func() time.Time
	newID     func() string
	logger    func(ctx context.Context, event string, fields map[string]any)
	sanitizer *bluemonday.Policy
}

// NewReviewService constructs a ReviewService validating its dependencies.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("review service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &reviewService{
		reviews:   deps.Reviews,
		orders:    deps.Orders,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// Create submits a review. The caller must own a delivered order containing
// the product, and each (order, product) pair is reviewable once. Reviews
// start pending and become visible only after approval.
func (s *reviewService) Create(ctx context.Context, cmd CreateReviewCommand) (Review, error) {
	if s == nil || s.reviews == nil {
		return Review{}, ErrReviewUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	orderID := strings.TrimSpace(cmd.OrderID)
	productID := strings.TrimSpace(cmd.ProductID)
	if uid == "" || orderID == "" || productID == "" {
		return Review{}, ErrReviewInvalidInput
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrReviewInvalidInput)
	}
	comment := s.sanitizer.Sanitize(strings.TrimSpace(cmd.Comment))
	if len(comment) > maxReviewCommentLength {
		return Review{}, fmt.Errorf("%w: comment must be %d characters or fewer", ErrReviewInvalidInput, maxReviewCommentLength)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return Review{}, ErrReviewNotEligible
		}
		return Review{}, ErrReviewUnavailable
	}
	if order.UserID != uid || order.Status != domain.OrderStatusDelivered {
		return Review{}, ErrReviewNotEligible
	}
	purchased := false
	for _, item := range order.Items {
		if item.ProductID == productID {
			purchased = true
			break
		}
	}
	if !purchased {
		return Review{}, ErrReviewNotEligible
	}

	if _, err := s.reviews.FindByOrderAndProduct(ctx, orderID, productID); err == nil {
		return Review{}, ErrReviewAlreadyExists
	} else if !isRepoNotFound(err) {
		return Review{}, ErrReviewUnavailable
	}

	now := s.now()
	review := domain.Review{
		ID:        s.newID(),
		ProductID: productID,
		OrderID:   orderID,
		UserID:    uid,
		Rating:    cmd.Rating,
		Comment:   comment,
		Status:    domain.ReviewStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reviews.Insert(ctx, review); err != nil {
		if isRepoConflict(err) {
			return Review{}, ErrReviewAlreadyExists
		}
		return Review{}, ErrReviewUnavailable
	}
	s.logger(ctx, "review.created", map[string]any{"reviewId": review.ID, "productId": productID})
	return review, nil
}

// ListApprovedByProduct lists publicly visible reviews for a product.
func (s *reviewService) ListApprovedByProduct(ctx context.Context, productID string, pager Pagination) (domain.CursorPage[Review], error) {
	if s == nil || s.reviews == nil {
		return domain.CursorPage[Review]{}, ErrReviewUnavailable
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.CursorPage[Review]{}, ErrReviewInvalidInput
	}
	page, err := s.reviews.List(ctx, repositories.ReviewListFilter{
		ProductID:  id,
		Status:     domain.ReviewStatusApproved,
		OnlyPublic: true,
		Pager:      pager,
	})
	if err != nil {
		return domain.CursorPage[Review]{}, ErrReviewUnavailable
	}
	// Staff replies marked invisible stay internal.
	for i := range page.Items {
		if page.Items[i].Reply != nil && !page.Items[i].Reply.Visible {
			page.Items[i].Reply = nil
		}
	}
	return page, nil
}

// List lists reviews for moderation and customer history surfaces.
func (s *reviewService) List(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[Review], error) {
	if s == nil || s.reviews == nil {
		return domain.CursorPage[Review]{}, ErrReviewUnavailable
	}
	page, err := s.reviews.List(ctx, repositories.ReviewListFilter{
		ProductID: strings.TrimSpace(filter.ProductID),
		UserID:    strings.TrimSpace(filter.UserID),
		Status:    filter.Status,
		Pager:     filter.Pager,
	})
	if err != nil {
		return domain.CursorPage[Review]{}, ErrReviewUnavailable
	}
	return page, nil
}

// Moderate approves or rejects a pending review.
func (s *reviewService) Moderate(ctx context.Context, cmd ModerateReviewCommand) (Review, error) {
	if s == nil || s.reviews == nil {
		return Review{}, ErrReviewUnavailable
	}
	id := strings.TrimSpace(cmd.ReviewID)
	actor := strings.TrimSpace(cmd.Actor)
	if id == "" || actor == "" {
		return Review{}, ErrReviewInvalidInput
	}

	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return Review{}, s.translateRepoError(err)
	}

	now := s.now()
	if cmd.Approve {
		review.Status = domain.ReviewStatusApproved
	} else {
		review.Status = domain.ReviewStatusRejected
	}
	review.ModeratedBy = &actor
	review.ModeratedAt = &now
	review.UpdatedAt = now

	if err := s.reviews.Update(ctx, review); err != nil {
		return Review{}, s.translateRepoError(err)
	}
	s.logger(ctx, "review.moderated", map[string]any{
		"reviewId": review.ID,
		"status":   string(review.Status),
		"actor":    actor,
	})
	return review, nil
}

// StoreReply stores or replaces the staff reply beneath a review.
func (s *reviewService) StoreReply(ctx context.Context, cmd ReviewReplyCommand) (Review, error) {
	if s == nil || s.reviews == nil {
		return Review{}, ErrReviewUnavailable
	}
	id := strings.TrimSpace(cmd.ReviewID)
	actor := strings.TrimSpace(cmd.Actor)
	message := s.sanitizer.Sanitize(strings.TrimSpace(cmd.Message))
	if id == "" || actor == "" || message == "" {
		return Review{}, ErrReviewInvalidInput
	}

	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return Review{}, s.translateRepoError(err)
	}

	now := s.now()
	created := now
	if review.Reply != nil {
		created = review.Reply.CreatedAt
	}
	review.Reply = &domain.ReviewReply{
		Message:   message,
		AuthorRef: actor,
		Visible:   cmd.Visible,
		CreatedAt: created,
		UpdatedAt: now,
	}
	review.UpdatedAt = now

	if err := s.reviews.Update(ctx, review); err != nil {
		return Review{}, s.translateRepoError(err)
	}
	s.logger(ctx, "review.reply_stored", map[string]any{"reviewId": review.ID, "actor": actor})
	return review, nil
}

func (s *reviewService) translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case isRepoNotFound(err):
		return ErrReviewNotFound
	default:
		return ErrReviewUnavailable
	}
}
