package review

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/etherloops/ether-backend/internal/products"
	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/metrics"
	"github.com/etherloops/ether-backend/pkg/outbox"
	"github.com/etherloops/ether-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type pendingLister interface {
	ListPending(ctx context.Context) ([]models.Product, error)
}

// StatusRepository applies guarded review transitions.
type StatusRepository interface {
	UpdateStatus(ctx context.Context, update products.StatusUpdate) (*models.Product, error)
}

// QueueView is the admin facing snapshot of a queue.
type QueueView struct {
	Current *products.ProductDTO `json:"current,omitempty"`
	Index   int                  `json:"index"`
	Total   int                  `json:"total"`
	Empty   bool                 `json:"empty"`
}

// DecisionResult reports the product a decision applied to and the queue afterwards.
type DecisionResult struct {
	Outcome Outcome              `json:"outcome"`
	Product *products.ProductDTO `json:"product,omitempty"`
	Queue   QueueView            `json:"queue"`
}

// ServiceParams groups dependencies for the review service.
type ServiceParams struct {
	Products  pendingLister
	Tx        txRunner
	Repo      func(tx *gorm.DB) StatusRepository
	Outbox    outboxPublisher
	Metrics   *metrics.ReviewMetrics
	Logger    *logger.Logger
	Threshold float64
	Now       func() time.Time
}

// Service keeps one review queue per admin.
type Service struct {
	products  pendingLister
	tx        txRunner
	repo      func(tx *gorm.DB) StatusRepository
	outbox    outboxPublisher
	metrics   *metrics.ReviewMetrics
	logg      *logger.Logger
	threshold float64
	now       func() time.Time

	mu     sync.Mutex
	queues map[uuid.UUID]*Queue
}

// NewService builds a review service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product lister is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product repo is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox publisher is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		products:  params.Products,
		tx:        params.Tx,
		repo:      params.Repo,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      logg,
		threshold: params.Threshold,
		now:       now,
		queues:    map[uuid.UUID]*Queue{},
	}, nil
}

// ProductRepoFactory adapts a products.Repository for transactional use.
func ProductRepoFactory(repo *products.Repository) func(tx *gorm.DB) StatusRepository {
	return func(tx *gorm.DB) StatusRepository {
		return repo.WithTx(tx)
	}
}

// Load replaces the admin's queue with the current pending backlog.
func (s *Service) Load(ctx context.Context, adminID uuid.UUID) (QueueView, error) {
	q, err := s.load(ctx, adminID, true)
	if err != nil {
		return QueueView{}, err
	}
	return viewOf(q), nil
}

// State returns the admin's queue, loading it on first use.
func (s *Service) State(ctx context.Context, adminID uuid.UUID) (QueueView, error) {
	q, err := s.queue(ctx, adminID)
	if err != nil {
		return QueueView{}, err
	}
	return viewOf(q), nil
}

func (s *Service) Approve(ctx context.Context, adminID uuid.UUID) (DecisionResult, error) {
	q, err := s.queue(ctx, adminID)
	if err != nil {
		return DecisionResult{}, err
	}
	p, err := q.Approve(ctx)
	s.record(ctx, adminID, enums.ReviewDecisionApprove, err)
	if err != nil {
		return DecisionResult{}, err
	}
	return result(OutcomeApproved, p, q), nil
}

func (s *Service) Reject(ctx context.Context, adminID uuid.UUID, reason string) (DecisionResult, error) {
	q, err := s.queue(ctx, adminID)
	if err != nil {
		return DecisionResult{}, err
	}
	p, err := q.Reject(ctx, reason)
	s.record(ctx, adminID, enums.ReviewDecisionReject, err)
	if err != nil {
		return DecisionResult{}, err
	}
	return result(OutcomeRejected, p, q), nil
}

func (s *Service) Navigate(ctx context.Context, adminID uuid.UUID, direction Direction) (QueueView, error) {
	q, err := s.queue(ctx, adminID)
	if err != nil {
		return QueueView{}, err
	}
	if err := q.Navigate(direction); err != nil {
		return QueueView{}, err
	}
	return viewOf(q), nil
}

// Swipe applies a gesture displacement to the admin's queue.
func (s *Service) Swipe(ctx context.Context, adminID uuid.UUID, displacement float64, reason string) (DecisionResult, error) {
	q, err := s.queue(ctx, adminID)
	if err != nil {
		return DecisionResult{}, err
	}
	outcome, p, err := q.Signal(ctx, displacement, reason)
	if decision, ok := q.gesture(displacement); ok {
		s.record(ctx, adminID, decision, err)
	}
	if err != nil {
		return DecisionResult{}, err
	}
	if outcome == OutcomeReverted {
		return DecisionResult{Outcome: outcome, Queue: viewOf(q)}, nil
	}
	return result(outcome, p, q), nil
}

// Forget drops the admin's cached queue.
func (s *Service) Forget(adminID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, adminID)
}

func (s *Service) queue(ctx context.Context, adminID uuid.UUID) (*Queue, error) {
	s.mu.Lock()
	q, ok := s.queues[adminID]
	s.mu.Unlock()
	if ok {
		return q, nil
	}
	return s.load(ctx, adminID, false)
}

// load fetches the pending backlog. Without replace, a queue another request
// installed in the meantime wins so its cursor is kept.
func (s *Service) load(ctx context.Context, adminID uuid.UUID, replace bool) (*Queue, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id is required")
	}
	pending, err := s.products.ListPending(ctx)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending products")
	}
	q := NewQueue(pending, &adminUpdater{svc: s, adminID: adminID}, s.threshold)

	s.mu.Lock()
	if existing, ok := s.queues[adminID]; ok && !replace {
		s.mu.Unlock()
		return existing, nil
	}
	s.queues[adminID] = q
	s.mu.Unlock()

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"admin_id": adminID.String(),
		"pending":  q.Len(),
	}), "review queue loaded")
	return q, nil
}

func (s *Service) record(ctx context.Context, adminID uuid.UUID, decision enums.ReviewDecision, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case pkgerrors.Is(err, pkgerrors.CodeValidation):
		outcome = "invalid"
	case pkgerrors.Is(err, pkgerrors.CodeStateConflict):
		outcome = "conflict"
	default:
		outcome = "failed"
		s.logg.Error(s.logg.WithField(ctx, "admin_id", adminID.String()), "review decision failed", err)
	}
	s.metrics.IncDecision(string(decision), outcome)
}

// adminUpdater persists decisions on behalf of one admin.
type adminUpdater struct {
	svc     *Service
	adminID uuid.UUID
}

func (u *adminUpdater) UpdateProductStatus(ctx context.Context, decision Decision) error {
	s := u.svc
	now := s.now().UTC()
	target := decision.Decision.TargetStatus()

	var reason *string
	if decision.Decision == enums.ReviewDecisionReject {
		r := decision.Reason
		reason = &r
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := s.repo(tx).UpdateStatus(ctx, products.StatusUpdate{
			ProductID:  decision.ProductID,
			From:       enums.ProductStatusPending,
			To:         target,
			Reason:     reason,
			ReviewerID: u.adminID,
			ReviewedAt: now,
		})
		if err != nil {
			return err
		}

		eventType := enums.EventProductApproved
		if target == enums.ProductStatusRejected {
			eventType = enums.EventProductRejected
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Actor:         &outbox.ActorRef{UserID: u.adminID, Role: string(enums.UserRoleAdmin)},
			OccurredAt:    now,
			Data: payloads.ProductDecisionEvent{
				ProductID:  product.ID,
				VendorID:   product.VendorID,
				Title:      product.Title,
				Price:      product.Price,
				Status:     target,
				Reason:     decision.Reason,
				ReviewedBy: u.adminID,
				ReviewedAt: now,
			},
		})
	})
}

func viewOf(q *Queue) QueueView {
	current, index, total := q.position()
	view := QueueView{Index: index, Total: total, Empty: total == 0}
	if total == 0 {
		return view
	}
	dto := products.NewProductDTO(current)
	view.Current = &dto
	return view
}

func result(outcome Outcome, p models.Product, q *Queue) DecisionResult {
	dto := products.NewProductDTO(p)
	return DecisionResult{Outcome: outcome, Product: &dto, Queue: viewOf(q)}
}
