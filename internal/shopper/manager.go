package shopper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/etherloops/ether-backend/internal/cart"
	"github.com/etherloops/ether-backend/internal/checkout"
	"github.com/etherloops/ether-backend/internal/wishlist"
	"github.com/etherloops/ether-backend/pkg/auth"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/metrics"
	"github.com/etherloops/ether-backend/pkg/redis"
)

const DefaultSnapshotTTL = 720 * time.Hour

// SnapshotStore persists session snapshots. *redis.Client satisfies it.
type SnapshotStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ShopperKey(userID string) string
}

// ManagerParams wires the collaborators every session's checkout flow needs.
type ManagerParams struct {
	Store           SnapshotStore
	Processor       checkout.PaymentProcessor
	Orders          checkout.OrderCreator
	Metrics         *metrics.CheckoutMetrics
	Logger          *logger.Logger
	TTL             time.Duration
	CheckoutTimeout time.Duration
	Currency        string
}

// Manager tracks the live session of every shopper.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	store           SnapshotStore
	processor       checkout.PaymentProcessor
	orders          checkout.OrderCreator
	metrics         *metrics.CheckoutMetrics
	logg            *logger.Logger
	ttl             time.Duration
	checkoutTimeout time.Duration
	currency        string
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.Processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment processor is required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order creator is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Manager{
		sessions:        make(map[uuid.UUID]*Session),
		store:           params.Store,
		processor:       params.Processor,
		orders:          params.Orders,
		metrics:         params.Metrics,
		logg:            logg,
		ttl:             ttl,
		checkoutTimeout: params.CheckoutTimeout,
		currency:        params.Currency,
	}, nil
}

// Open returns the shopper's live session, restoring it from the snapshot
// store on first use. A missing or unreadable snapshot starts an empty session.
func (m *Manager) Open(ctx context.Context, identity auth.Identity) (*Session, error) {
	if identity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity is required")
	}
	userID := identity.UserID()

	if s, ok := m.Get(ctx, userID); ok {
		return s, nil
	}

	// Loaded without m.mu; a concurrent Open for the same user may win below.
	s, err := m.newSession(userID)
	if err != nil {
		return nil, err
	}
	snap, found, err := m.load(ctx, userID)
	if err != nil {
		s.degraded = true
		m.logg.Warn(m.logg.WithFields(ctx, map[string]any{
			"user_id": userID.String(),
			"error":   err.Error(),
		}), "shopper snapshot unavailable, starting empty session")
	} else if found {
		s.Cart.Restore(snap.Cart)
		s.Wishlist.Restore(snap.Wishlist)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[userID]; ok {
		return existing, nil
	}
	m.sessions[userID] = s
	return s, nil
}

// Get returns an already open session.
func (m *Manager) Get(_ context.Context, userID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// End tears down the session: any in-flight payment is canceled and the
// stored snapshot is removed.
func (m *Manager) End(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		_ = s.Checkout.Cancel()
	}
	if m.store == nil {
		return nil
	}
	if err := m.store.Del(ctx, m.store.ShopperKey(userID.String())); err != nil {
		m.logg.Warn(m.logg.WithFields(ctx, map[string]any{
			"user_id": userID.String(),
			"error":   err.Error(),
		}), "delete shopper snapshot failed")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "end shopper session")
	}
	return nil
}

// Persist writes the session snapshot. Failures mark the session degraded
// and are logged; they are never returned to shoppers.
func (m *Manager) Persist(ctx context.Context, s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked(ctx)
}

// Close persists every open session and cancels any in-flight payment.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	var errs error
	for _, s := range sessions {
		_ = s.Checkout.Cancel()
		s.mu.Lock()
		if err := m.write(ctx, s); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("persist session %s: %w", s.UserID, err))
		}
		s.mu.Unlock()
	}
	return errs
}

func (m *Manager) newSession(userID uuid.UUID) (*Session, error) {
	c := cart.NewStore()
	flow, err := checkout.NewFlow(checkout.FlowParams{
		BuyerID:   userID,
		Cart:      c,
		Processor: m.processor,
		Orders:    m.orders,
		Metrics:   m.metrics,
		Logger:    m.logg,
		Timeout:   m.checkoutTimeout,
		Currency:  m.currency,
	})
	if err != nil {
		return nil, err
	}
	return &Session{
		UserID:   userID,
		Cart:     c,
		Wishlist: wishlist.NewStore(),
		Checkout: flow,
		persist:  m.persistHook,
	}, nil
}

func (m *Manager) persistHook(ctx context.Context, s *Session) error {
	if err := m.write(ctx, s); err != nil {
		m.logg.Warn(m.logg.WithFields(ctx, map[string]any{
			"user_id": s.UserID.String(),
			"error":   err.Error(),
		}), "persist shopper snapshot failed, session continues in memory")
		return err
	}
	return nil
}

func (m *Manager) write(ctx context.Context, s *Session) error {
	if m.store == nil {
		return nil
	}
	payload, err := json.Marshal(s.snapshot())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return m.store.Set(ctx, m.store.ShopperKey(s.UserID.String()), string(payload), m.ttl)
}

func (m *Manager) load(ctx context.Context, userID uuid.UUID) (snapshot, bool, error) {
	var snap snapshot
	if m.store == nil {
		return snap, false, nil
	}
	raw, err := m.store.Get(ctx, m.store.ShopperKey(userID.String()))
	if redis.IsNil(err) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return snap, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}
