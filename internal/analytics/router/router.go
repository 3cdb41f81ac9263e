package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/etherloops/ether-backend/internal/analytics/types"
	"github.com/etherloops/ether-backend/pkg/enums"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertMarketplace(ctx context.Context, row types.MarketplaceEventRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type handlerEntry struct {
	factory func() any
	handler Handler
}

// Router dispatches analytics envelopes to the configured handler per event type.
type Router struct {
	handlers map[enums.OutboxEventType]handlerEntry
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	decisions := &productDecisionHandler{writer: writer, logg: logg}
	entries := map[enums.OutboxEventType]handlerEntry{
		enums.EventProductApproved: {
			factory: func() any { return &payloads.ProductDecisionEvent{} },
			handler: decisions,
		},
		enums.EventProductRejected: {
			factory: func() any { return &payloads.ProductDecisionEvent{} },
			handler: decisions,
		},
		enums.EventOrderCompleted: {
			factory: func() any { return &payloads.OrderCompletedEvent{} },
			handler: &orderCompletedHandler{writer: writer, logg: logg},
		},
		enums.EventOrderFailed: {
			factory: func() any { return &payloads.OrderFailedEvent{} },
			handler: &orderFailedHandler{writer: writer, logg: logg},
		},
	}

	for event, custom := range overrides {
		entry, ok := entries[event]
		if !ok || custom == nil {
			continue
		}
		entry.handler = custom
		entries[event] = entry
	}

	return &Router{
		handlers: entries,
		logg:     logg,
	}, nil
}

// Handle dispatches the incoming envelope to the configured handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	entry, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	payload := entry.factory()
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}
	return entry.handler.Handle(ctx, envelope, payload)
}
