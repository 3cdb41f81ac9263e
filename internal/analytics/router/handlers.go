package router

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/etherloops/ether-backend/internal/analytics/types"
	analyticswriter "github.com/etherloops/ether-backend/internal/analytics/writer"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/outbox/payloads"
)

type productDecisionHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *productDecisionHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ProductDecisionEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"product_id": event.ProductID.String(),
		"vendor_id":  event.VendorID.String(),
		"status":     event.Status,
	})
	row, err := baseRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace row", err)
		return err
	}
	row.VendorID = idPtr(event.VendorID)
	row.Amount = ratPtr(event.Price)
	return insert(logCtx, h.writer, h.logg, row)
}

type orderCompletedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *orderCompletedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderCompletedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID.String(),
		"buyer_id":   event.BuyerID.String(),
		"items":      len(event.Items),
	})
	row, err := baseRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace row", err)
		return err
	}
	row.BuyerID = idPtr(event.BuyerID)
	row.VendorID = singleVendor(event.Items)
	row.Amount = ratPtr(event.TotalAmount)
	return insert(logCtx, h.writer, h.logg, row)
}

type orderFailedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *orderFailedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderFailedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID.String(),
		"buyer_id":   event.BuyerID.String(),
		"reason":     event.Reason,
	})
	row, err := baseRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build marketplace row", err)
		return err
	}
	row.BuyerID = idPtr(event.BuyerID)
	row.Amount = ratPtr(event.TotalAmount)
	return insert(logCtx, h.writer, h.logg, row)
}

func baseRow(envelope types.Envelope, event any) (types.MarketplaceEventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(event)
	if err != nil {
		return types.MarketplaceEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.MarketplaceEventRow{
		EventID:     envelope.EventID,
		EventType:   string(envelope.EventType),
		AggregateID: envelope.AggregateID,
		OccurredAt:  envelope.OccurredAt,
		Payload:     payloadJSON,
	}, nil
}

func insert(ctx context.Context, writer Writer, logg *logger.Logger, row types.MarketplaceEventRow) error {
	if err := writer.InsertMarketplace(ctx, row); err != nil {
		logg.Error(ctx, "failed to insert marketplace row", err)
		return err
	}
	logg.Info(ctx, "marketplace row inserted")
	return nil
}

// singleVendor returns the vendor when every item in the order shares one.
func singleVendor(items []payloads.OrderCompletedItem) *string {
	if len(items) == 0 {
		return nil
	}
	vendor := items[0].VendorID
	for _, item := range items[1:] {
		if item.VendorID != vendor {
			return nil
		}
	}
	return idPtr(vendor)
}

func idPtr(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	value := id.String()
	return &value
}

func ratPtr(amount decimal.Decimal) *big.Rat {
	return amount.Rat()
}
