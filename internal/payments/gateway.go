// Package payments adapts the payment service provider behind a small
// gateway interface. Amounts are in the smallest currency unit throughout.
package payments

import (
	"context"
	"errors"
	"time"
)

// Status enumerates the normalised payment states the storefront cares about.
type Status string

const (
	// StatusPending indicates the payment awaits customer action or PSP confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the PSP captured the payment.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the payment failed terminally.
	StatusFailed Status = "failed"
	// StatusCanceled indicates the intent was canceled before capture.
	StatusCanceled Status = "canceled"
)

// ErrGatewayUnavailable is returned when the PSP cannot be reached.
var ErrGatewayUnavailable = errors.New("payments: gateway unavailable")

// ErrIntentNotFound is returned when the referenced intent does not exist.
var ErrIntentNotFound = errors.New("payments: intent not found")

// IntentRequest captures the payload required to open a payment intent.
type IntentRequest struct {
	Amount         int64
	Currency       string
	Description    string
	CustomerEmail  string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the normalised PSP payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       Status
	Amount       int64
	Currency     string
	CreatedAt    time.Time
}

// Succeeded reports whether the intent reached a captured state.
func (i Intent) Succeeded() bool {
	return i.Status == StatusSucceeded
}

// Gateway is the contract PSP adapters implement.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (Intent, error)
	RefundIntent(ctx context.Context, intentID string, reason string) (Intent, error)
}
