// Package checkout moves a shopper's cart through payment to a completed order.
package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/etherloops/ether-backend/internal/cart"
	"github.com/etherloops/ether-backend/internal/orders"
	pkgcheckout "github.com/etherloops/ether-backend/pkg/checkout"
	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/metrics"
)

const (
	DefaultProcessingTimeout = 30 * time.Second
	compensationTimeout      = 10 * time.Second
)

// OrderCreator persists the order produced by a checkout.
type OrderCreator interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
	CompleteOrder(ctx context.Context, orderID uuid.UUID, paymentRef string) (*models.Order, error)
	FailOrder(ctx context.Context, orderID uuid.UUID, reason string) error
}

// View is the externally visible checkout state.
type View struct {
	Step      enums.CheckoutStep `json:"step"`
	Total     string             `json:"total"`
	ItemCount int                `json:"item_count"`
	Error     string             `json:"error,omitempty"`
	OrderID   *uuid.UUID         `json:"order_id,omitempty"`
}

// Result describes a successful checkout.
type Result struct {
	OrderID    uuid.UUID       `json:"order_id"`
	PaymentRef string          `json:"payment_ref"`
	Total      string          `json:"total"`
	Order      orders.OrderDTO `json:"order"`
}

// FlowParams groups dependencies for a checkout flow.
type FlowParams struct {
	BuyerID   uuid.UUID
	Cart      *cart.Store
	Processor PaymentProcessor
	Orders    OrderCreator
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	Timeout   time.Duration
	Currency  string
	Now       func() time.Time
}

// Flow is the per-session checkout state machine:
// cart -> payment -> processing -> complete, with payment -> cart and
// processing -> payment on failure. The processing step itself is the
// in-flight guard, so the lock is released during remote calls.
type Flow struct {
	mu        sync.Mutex
	step      enums.CheckoutStep
	lastError string
	orderID   *uuid.UUID
	snapshot  decimal.Decimal
	itemCount int
	cancel    context.CancelFunc

	buyerID   uuid.UUID
	cart      *cart.Store
	processor PaymentProcessor
	orders    OrderCreator
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	timeout   time.Duration
	currency  string
	now       func() time.Time
}

// NewFlow builds a flow positioned at the cart step.
func NewFlow(params FlowParams) (*Flow, error) {
	if params.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	if params.Processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment processor is required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order creator is required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultProcessingTimeout
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	return &Flow{
		step:      enums.CheckoutStepCart,
		buyerID:   params.BuyerID,
		cart:      params.Cart,
		processor: params.Processor,
		orders:    params.Orders,
		metrics:   params.Metrics,
		logg:      logg,
		timeout:   timeout,
		currency:  currency,
		now:       now,
	}, nil
}

func (f *Flow) Step() enums.CheckoutStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := View{Step: f.step, Error: f.lastError}
	switch f.step {
	case enums.CheckoutStepProcessing, enums.CheckoutStepComplete:
		v.Total = f.snapshot.StringFixed(2)
		v.ItemCount = f.itemCount
	default:
		v.Total = f.cart.Total().StringFixed(2)
		v.ItemCount = f.cart.ItemCount()
	}
	if f.orderID != nil {
		id := *f.orderID
		v.OrderID = &id
	}
	return v
}

// Proceed moves cart -> payment when the cart has items.
func (f *Flow) Proceed() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != enums.CheckoutStepCart {
		return f.conflict("proceed")
	}
	if f.cart.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	f.step = enums.CheckoutStepPayment
	f.lastError = ""
	return nil
}

// Back returns payment -> cart without touching the cart.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != enums.CheckoutStepPayment {
		return f.conflict("back")
	}
	f.step = enums.CheckoutStepCart
	f.lastError = ""
	return nil
}

// Reset starts a new shopping round after a completed checkout.
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != enums.CheckoutStepComplete {
		return f.conflict("reset")
	}
	f.resetLocked()
	return nil
}

// Cancel aborts an in-flight payment. The flow reverts to payment once processing unwinds.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != enums.CheckoutStepProcessing || f.cancel == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no checkout in progress")
	}
	f.cancel()
	return nil
}

// MutateCart applies fn to the cart unless a payment is processing. A cart
// change after a completed checkout starts a new round, and emptying the cart
// during payment returns the flow to cart.
func (f *Flow) MutateCart(fn func(*cart.Store) bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step == enums.CheckoutStepProcessing {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is locked while payment is processing")
	}
	if f.step == enums.CheckoutStepComplete {
		f.resetLocked()
	}
	changed := fn(f.cart)
	if f.step == enums.CheckoutStepPayment && f.cart.IsEmpty() {
		f.step = enums.CheckoutStepCart
		f.lastError = ""
	}
	return changed, nil
}

// Submit runs payment -> processing and resolves to complete or back to payment.
func (f *Flow) Submit(ctx context.Context, details pkgcheckout.PaymentDetails, idempotencyKey string) (*Result, error) {
	f.mu.Lock()
	if f.step != enums.CheckoutStepPayment {
		err := f.conflict("submit")
		f.mu.Unlock()
		return nil, err
	}
	if err := pkgcheckout.ValidatePaymentDetails(details); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	items := f.cart.Items()
	if len(items) == 0 {
		f.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	total := f.cart.Total()

	procCtx, cancel := context.WithTimeout(ctx, f.timeout)
	f.step = enums.CheckoutStepProcessing
	f.lastError = ""
	f.snapshot = total
	f.itemCount = len(items)
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	started := f.now()
	logCtx := f.logg.WithFields(ctx, map[string]any{
		"buyer_id": f.buyerID.String(),
		"total":    total.StringFixed(2),
		"items":    len(items),
	})
	f.logg.Info(logCtx, "checkout processing started")

	order, ref, err := f.process(procCtx, details.Normalize(), items, total, idempotencyKey)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancel = nil
	elapsed := f.now().Sub(started)

	if err != nil {
		outcome, message := classifyFailure(procCtx, err)
		f.step = enums.CheckoutStepPayment
		f.lastError = message
		f.metrics.Observe(outcome, elapsed)
		f.logg.Error(f.logg.WithField(logCtx, "outcome", outcome), "checkout failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
	}

	f.step = enums.CheckoutStepComplete
	f.orderID = &order.ID
	f.cart.Clear()
	f.metrics.Observe(metrics.OutcomeSuccess, elapsed)
	f.logg.Info(f.logg.WithField(logCtx, "order_id", order.ID.String()), "checkout complete")

	return &Result{
		OrderID:    order.ID,
		PaymentRef: ref,
		Total:      total.StringFixed(2),
		Order:      orders.NewOrderDTO(*order),
	}, nil
}

func (f *Flow) process(ctx context.Context, details pkgcheckout.PaymentDetails, items []cart.Item, total decimal.Decimal, idempotencyKey string) (*models.Order, string, error) {
	ref, err := f.processor.Authorize(ctx, pkgcheckout.AuthorizationRequest{
		Amount:         total,
		Currency:       f.currency,
		Details:        details,
		IdempotencyKey: idempotencyKey,
		Metadata:       map[string]string{"buyer_id": f.buyerID.String()},
	})
	if err != nil {
		f.compensate(ctx, ref, nil, err)
		return nil, "", err
	}

	lines := make([]orders.LineInput, 0, len(items))
	for _, item := range items {
		lines = append(lines, orders.LineInput{
			ProductID: item.Product.ID,
			VendorID:  item.Product.VendorID,
			Title:     item.Product.Title,
			Price:     item.Subtotal(),
		})
	}
	order, err := f.orders.CreateOrder(ctx, orders.CreateOrderInput{
		BuyerID:         f.buyerID,
		Items:           lines,
		Total:           total,
		Currency:        f.currency,
		PaymentIntentID: ref,
	})
	if err != nil {
		f.compensate(ctx, ref, nil, err)
		return nil, "", err
	}

	if err := f.processor.Capture(ctx, ref); err != nil {
		f.compensate(ctx, ref, &order.ID, err)
		return nil, "", err
	}

	// Funds are captured; finishing the order must not be abandoned halfway.
	completed, err := f.orders.CompleteOrder(context.WithoutCancel(ctx), order.ID, ref)
	if err != nil {
		f.logg.Error(f.logg.WithFields(ctx, map[string]any{
			"order_id":    order.ID.String(),
			"payment_ref": ref,
		}), "payment captured but order completion failed", err)
		f.compensate(ctx, "", &order.ID, err)
		return nil, "", err
	}
	return completed, ref, nil
}

// compensate releases the hold and fails the order, detached from the
// caller's cancellation so a timed out checkout still cleans up.
func (f *Flow) compensate(ctx context.Context, ref string, orderID *uuid.UUID, cause error) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if ref != "" {
		if err := f.processor.Void(cleanupCtx, ref); err != nil {
			f.logg.Error(f.logg.WithField(cleanupCtx, "payment_ref", ref), "void payment", err)
		}
	}
	if orderID != nil {
		_, reason := classifyFailure(ctx, cause)
		if err := f.orders.FailOrder(cleanupCtx, *orderID, reason); err != nil {
			f.logg.Error(f.logg.WithField(cleanupCtx, "order_id", orderID.String()), "mark order failed", err)
		}
	}
}

func (f *Flow) resetLocked() {
	f.step = enums.CheckoutStepCart
	f.lastError = ""
	f.orderID = nil
	f.snapshot = decimal.Zero
	f.itemCount = 0
}

func (f *Flow) conflict(action string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot "+action+" during "+string(f.step)).
		WithDetails(map[string]any{"step": f.step})
}

func classifyFailure(ctx context.Context, err error) (string, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return metrics.OutcomeTimeout, "payment processing timed out"
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return metrics.OutcomeCanceled, "checkout was canceled"
	default:
		if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
			return metrics.OutcomeFailed, typed.Message()
		}
		return metrics.OutcomeFailed, "payment failed"
	}
}
