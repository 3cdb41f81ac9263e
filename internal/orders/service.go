package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/etherloops/ether-backend/pkg/auth"
	dbpkg "github.com/etherloops/ether-backend/pkg/db"
	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/outbox"
	"github.com/etherloops/ether-backend/pkg/outbox/payloads"
	"github.com/etherloops/ether-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order lifecycle operations used by checkout and the dashboards.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	CompleteOrder(ctx context.Context, orderID uuid.UUID, paymentRef string) (*models.Order, error)
	FailOrder(ctx context.Context, orderID uuid.UUID, reason string) error
	Get(ctx context.Context, orderID uuid.UUID, viewer auth.Identity) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*BuyerOrderList, error)
	ListCommissionsForVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*CommissionList, error)
}

// LineInput is a cart line frozen into an order item.
type LineInput struct {
	ProductID uuid.UUID
	VendorID  uuid.UUID
	Title     string
	Price     decimal.Decimal
}

// CreateOrderInput captures the cart snapshot handed over by checkout.
type CreateOrderInput struct {
	BuyerID         uuid.UUID
	Items           []LineInput
	Total           decimal.Decimal
	Currency        string
	PaymentIntentID string
}

// ServiceParams groups dependencies for the order service.
type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Outbox      outboxPublisher
	PlatformBPS int
	Currency    string
	Now         func() time.Time
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	platformBPS int
	currency    string
	now         func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order repo is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox publisher is required")
	}
	if params.PlatformBPS < 0 || params.PlatformBPS > bpsDenominator {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform commission must be between 0 and 10000 bps")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		platformBPS: params.PlatformBPS,
		currency:    currency,
		now:         now,
	}, nil
}

// CreateOrder persists the cart snapshot as an order in processing.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}

	sum := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, line := range input.Items {
		if line.ProductID == uuid.Nil || line.VendorID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item requires product and vendor")
		}
		if line.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item price must not be negative")
		}
		sum = sum.Add(line.Price)
		items = append(items, models.OrderItem{
			ProductID:       line.ProductID,
			VendorID:        line.VendorID,
			Title:           line.Title,
			PriceAtPurchase: line.Price,
		})
	}
	if !sum.Equal(input.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total does not match items").
			WithDetails(map[string]any{"expected": sum.StringFixed(2), "received": input.Total.StringFixed(2)})
	}

	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.currency
	}

	order := &models.Order{
		BuyerID:     input.BuyerID,
		TotalAmount: input.Total,
		Currency:    currency,
		Status:      enums.OrderStatusProcessing,
		Items:       items,
	}
	if ref := strings.TrimSpace(input.PaymentIntentID); ref != "" {
		order.PaymentIntentID = &ref
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, classify(err, "create order")
	}
	return order, nil
}

// CompleteOrder marks a processing order completed, records commissions and
// emits order.completed in one transaction. Completing twice is a no-op.
func (s *service) CompleteOrder(ctx context.Context, orderID uuid.UUID, paymentRef string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var completed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCompleted {
			completed = order
			return nil
		}

		now := s.now().UTC()
		fields := map[string]any{"updated_at": now}
		if ref := strings.TrimSpace(paymentRef); ref != "" {
			fields["stripe_payment_intent_id"] = ref
			order.PaymentIntentID = &ref
		}
		if err := repo.TransitionStatus(ctx, orderID, []enums.OrderStatus{enums.OrderStatusProcessing}, enums.OrderStatusCompleted, fields); err != nil {
			return err
		}

		commissions := buildCommissions(order, s.platformBPS)
		if err := repo.InsertCommissions(ctx, commissions); err != nil {
			return err
		}

		order.Status = enums.OrderStatusCompleted
		order.UpdatedAt = now
		if err := s.outbox.Emit(ctx, tx, completedEvent(order, commissions, now)); err != nil {
			return err
		}
		completed = order
		return nil
	})
	if err != nil {
		return nil, classify(err, "complete order")
	}
	return completed, nil
}

// FailOrder marks the order failed and emits order.failed. Failing an already failed order is a no-op.
func (s *service) FailOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payment failed"
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusFailed {
			return nil
		}

		now := s.now().UTC()
		if err := repo.TransitionStatus(ctx, orderID,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing},
			enums.OrderStatusFailed,
			map[string]any{"failure_reason": reason, "updated_at": now},
		); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.BuyerID, Role: string(enums.UserRoleUser)},
			OccurredAt:    now,
			Data: payloads.OrderFailedEvent{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				TotalAmount: order.TotalAmount,
				Currency:    order.Currency,
				Reason:      reason,
				FailedAt:    now,
			},
		})
	})
	if err != nil {
		return classify(err, "fail order")
	}
	return nil
}

// Get returns the order to its buyer or an admin.
func (s *service) Get(ctx context.Context, orderID uuid.UUID, viewer auth.Identity) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, classify(err, "load order")
	}
	if order.BuyerID != viewer.UserID() && !viewer.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// ListForBuyer returns a page of the buyer's orders.
func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*BuyerOrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByBuyer(ctx, buyerID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	rows, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	list := &BuyerOrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Orders = append(list.Orders, NewOrderDTO(row))
	}
	return list, nil
}

// ListCommissionsForVendor returns a page of the vendor's earnings.
func (s *service) ListCommissionsForVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*CommissionList, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListCommissionsByVendor(ctx, vendorID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commissions")
	}

	rows, next := pagination.Trim(rows, params.Limit, func(c models.Commission) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	list := &CommissionList{Commissions: make([]CommissionDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Commissions = append(list.Commissions, newCommissionDTO(row))
	}
	return list, nil
}

func completedEvent(order *models.Order, commissions []models.Commission, now time.Time) outbox.DomainEvent {
	items := make([]payloads.OrderCompletedItem, 0, len(order.Items))
	for i, item := range order.Items {
		items = append(items, payloads.OrderCompletedItem{
			OrderItemID:    item.ID,
			ProductID:      item.ProductID,
			VendorID:       item.VendorID,
			Price:          item.PriceAtPurchase,
			AmountPlatform: commissions[i].AmountPlatform,
			AmountVendor:   commissions[i].AmountVendor,
		})
	}
	ref := ""
	if order.PaymentIntentID != nil {
		ref = *order.PaymentIntentID
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.BuyerID, Role: string(enums.UserRoleUser)},
		OccurredAt:    now,
		Data: payloads.OrderCompletedEvent{
			OrderID:         order.ID,
			BuyerID:         order.BuyerID,
			TotalAmount:     order.TotalAmount,
			Currency:        order.Currency,
			PaymentIntentID: ref,
			Items:           items,
			CompletedAt:     now,
		},
	}
}

func classify(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
	}
	if duplicatePaymentIntent(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment intent already belongs to another order")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

// duplicatePaymentIntent matches the postgres constraint name and the column
// sqlite reports for the same unique index.
func duplicatePaymentIntent(err error) bool {
	return dbpkg.IsUniqueViolation(err, "ux_orders_payment_intent") ||
		dbpkg.IsUniqueViolation(err, "orders.stripe_payment_intent_id")
}
