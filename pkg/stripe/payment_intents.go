package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgcheckout "github.com/etherloops/ether-backend/pkg/checkout"
)

// PaymentIntentAPI exposes the subset of Stripe PaymentIntent calls used at checkout.
type PaymentIntentAPI interface {
	New(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Capture(ctx context.Context, id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type paymentIntentWrapper struct{}

func (paymentIntentWrapper) New(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

func (paymentIntentWrapper) Capture(ctx context.Context, id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.Capture(id, params)
}

func (paymentIntentWrapper) Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.Cancel(id, params)
}

var errMissingPaymentRef = errors.New("payment intent id is required")

// PaymentIntents authorizes with manual capture so a hold can be voided if
// the order cannot be completed.
type PaymentIntents struct {
	api PaymentIntentAPI
}

// NewPaymentIntents wraps the initialized client. A nil client yields nil.
func NewPaymentIntents(client *Client) *PaymentIntents {
	if client == nil {
		return nil
	}
	return &PaymentIntents{api: paymentIntentWrapper{}}
}

// NewPaymentIntentsWithAPI is used by tests to inject a stub API.
func NewPaymentIntentsWithAPI(api PaymentIntentAPI) *PaymentIntents {
	return &PaymentIntents{api: api}
}

// Authorize creates and confirms a PaymentIntent without capturing funds.
func (p *PaymentIntents) Authorize(ctx context.Context, req pkgcheckout.AuthorizationRequest) (string, error) {
	if p == nil || p.api == nil {
		return "", errors.New("stripe payment intents not configured")
	}
	amount := pkgcheckout.MinorUnits(req.Amount)
	if amount <= 0 {
		return "", fmt.Errorf("authorization amount must be positive, got %s", req.Amount.StringFixed(2))
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		PaymentMethod:      stripe.String(req.Details.PaymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:            stripe.Bool(true),
		ReceiptEmail:       stripe.String(req.Details.Email),
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	intent, err := p.api.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	if intent == nil || intent.ID == "" {
		return "", errors.New("stripe returned empty payment intent")
	}
	if intent.Status != stripe.PaymentIntentStatusRequiresCapture {
		return intent.ID, fmt.Errorf("payment intent %s not authorized (status %s)", intent.ID, intent.Status)
	}
	return intent.ID, nil
}

// Capture settles a previously authorized PaymentIntent.
func (p *PaymentIntents) Capture(ctx context.Context, paymentRef string) error {
	if strings.TrimSpace(paymentRef) == "" {
		return errMissingPaymentRef
	}
	intent, err := p.api.Capture(ctx, paymentRef, &stripe.PaymentIntentCaptureParams{})
	if err != nil {
		return fmt.Errorf("capture payment intent %s: %w", paymentRef, err)
	}
	if intent != nil && intent.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("payment intent %s capture ended in status %s", paymentRef, intent.Status)
	}
	return nil
}

// Void releases the hold on an authorized PaymentIntent.
func (p *PaymentIntents) Void(ctx context.Context, paymentRef string) error {
	if strings.TrimSpace(paymentRef) == "" {
		return errMissingPaymentRef
	}
	_, err := p.api.Cancel(ctx, paymentRef, &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	})
	if err != nil {
		return fmt.Errorf("cancel payment intent %s: %w", paymentRef, err)
	}
	return nil
}
