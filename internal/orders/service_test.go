package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/etherloops/ether-backend/pkg/auth"
	dbpkg "github.com/etherloops/ether-backend/pkg/db"
	"github.com/etherloops/ether-backend/pkg/db/dbtest"
	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/outbox"
	"github.com/etherloops/ether-backend/pkg/outbox/payloads"
	"github.com/etherloops/ether-backend/pkg/pagination"
)

type failingOutbox struct{}

func (failingOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

type fixture struct {
	client *dbpkg.Client
	svc    Service
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.OpenClient(t)
	f := &fixture{client: client, now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(client.DB()),
		Tx:          client,
		Outbox:      outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop()),
		PlatformBPS: 2000,
		Now:         func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func sampleInput(buyer uuid.UUID) CreateOrderInput {
	return CreateOrderInput{
		BuyerID: buyer,
		Items: []LineInput{
			{ProductID: uuid.New(), VendorID: uuid.New(), Title: "Cosmic Nebula Explosion", Price: decimal.RequireFromString("59.90")},
			{ProductID: uuid.New(), VendorID: uuid.New(), Title: "Liquid Gold Flow", Price: decimal.RequireFromString("44.90")},
		},
		Total: decimal.RequireFromString("104.80"),
	}
}

func TestNewServiceValidatesParams(t *testing.T) {
	client := dbtest.OpenClient(t)
	_, err := NewService(ServiceParams{Tx: client, Outbox: failingOutbox{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Repo: NewRepository(client.DB()), Tx: client, Outbox: failingOutbox{}, PlatformBPS: 20000})
	assert.Error(t, err)
}

func TestCreateOrderValidatesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := sampleInput(uuid.New())
	input.Total = decimal.RequireFromString("100.00")
	_, err := f.svc.CreateOrder(ctx, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{BuyerID: uuid.New()})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestCreateOrderRejectsReusedPaymentIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := sampleInput(uuid.New())
	input.PaymentIntentID = "pi_once"
	_, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err)

	again := sampleInput(uuid.New())
	again.PaymentIntentID = "pi_once"
	_, err = f.svc.CreateOrder(ctx, again)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestCompleteOrderRecordsCommissionsAndEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()

	input := sampleInput(buyer)
	order, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	assert.Equal(t, "usd", order.Currency)

	completed, err := f.svc.CompleteOrder(ctx, order.ID, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, completed.Status)
	require.NotNil(t, completed.PaymentIntentID)
	assert.Equal(t, "pi_123", *completed.PaymentIntentID)

	var commission models.Commission
	require.NoError(t, f.client.DB().First(&commission, "order_id = ? AND vendor_id = ?", order.ID, input.Items[0].VendorID).Error)
	assert.Equal(t, "11.98", commission.AmountPlatform.StringFixed(2))
	assert.Equal(t, "47.92", commission.AmountVendor.StringFixed(2))

	var events []models.OutboxEvent
	require.NoError(t, f.client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCompleted, events[0].EventType)
	assert.Equal(t, order.ID, events[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.OrderCompletedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "pi_123", payload.PaymentIntentID)
	require.Len(t, payload.Items, 2)
	assert.True(t, payload.TotalAmount.Equal(decimal.RequireFromString("104.80")))

	again, err := f.svc.CompleteOrder(ctx, order.ID, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, again.Status)
	var count int64
	f.client.DB().Model(&models.OutboxEvent{}).Count(&count)
	assert.Equal(t, int64(1), count)
	f.client.DB().Model(&models.Commission{}).Count(&count)
	assert.Equal(t, int64(2), count)

	err = f.svc.FailOrder(ctx, order.ID, "late failure")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestCompleteOrderRollsBackWhenOutboxFails(t *testing.T) {
	client := dbtest.OpenClient(t)
	svc, err := NewService(ServiceParams{Repo: NewRepository(client.DB()), Tx: client, Outbox: failingOutbox{}, PlatformBPS: 2000})
	require.NoError(t, err)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, sampleInput(uuid.New()))
	require.NoError(t, err)

	_, err = svc.CompleteOrder(ctx, order.ID, "pi_1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRetryable(err))

	reloaded, err := NewRepository(client.DB()).FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, reloaded.Status)

	var count int64
	client.DB().Model(&models.Commission{}).Count(&count)
	assert.Zero(t, count)
}

func TestFailOrderEmitsEventOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, sampleInput(uuid.New()))
	require.NoError(t, err)

	require.NoError(t, f.svc.FailOrder(ctx, order.ID, "card declined"))
	require.NoError(t, f.svc.FailOrder(ctx, order.ID, "card declined"))

	reloaded, err := NewRepository(f.client.DB()).FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, reloaded.Status)
	require.NotNil(t, reloaded.FailureReason)
	assert.Equal(t, "card declined", *reloaded.FailureReason)

	var events []models.OutboxEvent
	require.NoError(t, f.client.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderFailed, events[0].EventType)

	_, err = f.svc.CompleteOrder(ctx, order.ID, "pi_1")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	assert.True(t, pkgerrors.Is(f.svc.FailOrder(ctx, uuid.New(), "x"), pkgerrors.CodeNotFound))
}

func TestGetRestrictsToBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	order, err := f.svc.CreateOrder(ctx, sampleInput(buyer))
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, order.ID, auth.NewIdentity(buyer, enums.UserRoleUser))
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)

	_, err = f.svc.Get(ctx, order.ID, auth.NewIdentity(uuid.New(), enums.UserRoleUser))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Get(ctx, order.ID, auth.NewIdentity(uuid.New(), enums.UserRoleAdmin))
	assert.NoError(t, err)
}

func TestListForBuyerPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	repo := NewRepository(f.client.DB())

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		order := &models.Order{
			BuyerID:     buyer,
			TotalAmount: decimal.RequireFromString("39.90"),
			Currency:    "usd",
			Status:      enums.OrderStatusCompleted,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			Items: []models.OrderItem{{
				ProductID:       uuid.New(),
				VendorID:        uuid.New(),
				Title:           "Neon City Skyline",
				PriceAtPurchase: decimal.RequireFromString("39.90"),
			}},
		}
		require.NoError(t, repo.Create(ctx, order))
	}

	first, err := f.svc.ListForBuyer(ctx, buyer, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, "39.90", first.Orders[0].TotalAmount)
	assert.True(t, first.Orders[0].CreatedAt.After(first.Orders[1].CreatedAt))

	second, err := f.svc.ListForBuyer(ctx, buyer, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Empty(t, second.NextCursor)

	_, err = f.svc.ListForBuyer(ctx, buyer, pagination.Params{Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestListCommissionsForVendor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	input := sampleInput(uuid.New())
	vendor := input.Items[0].VendorID

	order, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err)
	_, err = f.svc.CompleteOrder(ctx, order.ID, "pi_9")
	require.NoError(t, err)

	list, err := f.svc.ListCommissionsForVendor(ctx, vendor, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Commissions, 1)
	assert.Equal(t, "47.92", list.Commissions[0].AmountVendor)
	assert.Equal(t, enums.CommissionStatusPending, list.Commissions[0].Status)
}
