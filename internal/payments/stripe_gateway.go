package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/fluteatelier/api/internal/platform/textutil"
)

// StripeLogger defines the logging contract for Stripe gateway operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// StripeGatewayConfig configures the StripeGateway.
type StripeGatewayConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   StripeLogger
	Clock    func() time.Time

	// Intents and Refunds override the API clients, used in tests.
	Intents stripeIntentAPI
	Refunds stripeRefundAPI
}

// StripeGateway implements Gateway on top of Stripe payment intents.
type StripeGateway struct {
	intents stripeIntentAPI
	refunds stripeRefundAPI
	clock   func() time.Time
	logger  StripeLogger
}

// NewStripeGateway constructs a Stripe-backed Gateway.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	intents := cfg.Intents
	refunds := cfg.Refunds
	if intents == nil || refunds == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sc := client.New(apiKey, cfg.Backends)
		if intents == nil {
			intents = sc.PaymentIntents
		}
		if refunds == nil {
			refunds = sc.Refunds
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeGateway{
		intents: intents,
		refunds: refunds,
		clock:   func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

// CreateIntent opens a payment intent for the quoted amount.
func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if g == nil || g.intents == nil {
		return Intent{}, ErrGatewayUnavailable
	}
	if req.Amount <= 0 {
		return Intent{}, errors.New("stripe: amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return Intent{}, errors.New("stripe: currency is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if desc := strings.TrimSpace(req.Description); desc != "" {
		params.Description = stripe.String(desc)
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.ReceiptEmail = stripe.String(email)
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if metadata := textutil.NormalizeStringMap(req.Metadata); len(metadata) > 0 {
		params.Metadata = metadata
	}

	intent, err := g.intents.New(params)
	if err != nil {
		g.logger(ctx, "payments.intent_create_failed", map[string]any{"error": err.Error()})
		return Intent{}, translateStripeError(err)
	}
	g.logger(ctx, "payments.intent_created", map[string]any{
		"intentId": intent.ID,
		"amount":   intent.Amount,
		"currency": string(intent.Currency),
	})
	return normaliseIntent(intent), nil
}

// RetrieveIntent fetches the current state of a payment intent.
func (g *StripeGateway) RetrieveIntent(ctx context.Context, intentID string) (Intent, error) {
	if g == nil || g.intents == nil {
		return Intent{}, ErrGatewayUnavailable
	}
	id := strings.TrimSpace(intentID)
	if id == "" {
		return Intent{}, ErrIntentNotFound
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.intents.Get(id, params)
	if err != nil {
		return Intent{}, translateStripeError(err)
	}
	return normaliseIntent(intent), nil
}

// RefundIntent issues a full refund for a captured intent.
func (g *StripeGateway) RefundIntent(ctx context.Context, intentID string, reason string) (Intent, error) {
	if g == nil || g.refunds == nil {
		return Intent{}, ErrGatewayUnavailable
	}
	id := strings.TrimSpace(intentID)
	if id == "" {
		return Intent{}, ErrIntentNotFound
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(id)}
	params.Context = ctx
	switch strings.TrimSpace(reason) {
	case "requested_by_customer", "duplicate", "fraudulent":
		params.Reason = stripe.String(reason)
	}
	if _, err := g.refunds.New(params); err != nil {
		g.logger(ctx, "payments.refund_failed", map[string]any{"intentId": id, "error": err.Error()})
		return Intent{}, translateStripeError(err)
	}
	g.logger(ctx, "payments.refund_issued", map[string]any{"intentId": id})
	return g.RetrieveIntent(ctx, id)
}

func normaliseIntent(intent *stripe.PaymentIntent) Intent {
	if intent == nil {
		return Intent{}
	}
	return Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       normaliseStatus(intent.Status),
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		CreatedAt:    time.Unix(intent.Created, 0).UTC(),
	}
}

func normaliseStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return StatusCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusProcessing:
		return StatusPending
	default:
		return StatusFailed
	}
}

func translateStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == 404 {
			return ErrIntentNotFound
		}
		return err
	}
	return ErrGatewayUnavailable
}
