package domain

import "time"

// ReviewStatus indicates the moderation state of a review.
type ReviewStatus string

const (
	// ReviewStatusPending indicates the review awaits moderation.
	ReviewStatusPending ReviewStatus = "pending"
	// ReviewStatusApproved indicates the review has been approved and is visible.
	ReviewStatusApproved ReviewStatus = "approved"
	// ReviewStatusRejected indicates the review has been rejected and is hidden.
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Review captures customer feedback on a purchased product.
type Review struct {
	ID          string
	ProductID   string
	OrderID     string
	UserID      string
	Rating      int
	Comment     string
	Status      ReviewStatus
	ModeratedBy *string
	ModeratedAt *time.Time
	Reply       *ReviewReply
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReviewReply stores a staff response shown beneath an approved review.
type ReviewReply struct {
	Message   string
	AuthorRef string
	Visible   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
