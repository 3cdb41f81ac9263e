// Package review drives the admin approval queue for pending loops.
package review

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
)

const (
	// MinRejectReasonLength is the shortest trimmed rejection reason accepted.
	MinRejectReasonLength = 5
	// DefaultSwipeThreshold is the displacement needed to commit a gesture.
	DefaultSwipeThreshold = 100.0
)

// Direction moves the queue cursor.
type Direction string

const (
	DirectionPrev Direction = "prev"
	DirectionNext Direction = "next"
)

// Outcome reports what a gesture did.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeReverted Outcome = "reverted"
)

// Decision is the remote status change requested for a single product.
type Decision struct {
	ProductID uuid.UUID
	Decision  enums.ReviewDecision
	Reason    string
}

// StatusUpdater persists a review decision.
type StatusUpdater interface {
	UpdateProductStatus(ctx context.Context, decision Decision) error
}

// Queue is an ordered list of pending products with a cursor. Decisions are
// persisted before the local state changes, so a failed update leaves the
// queue exactly as it was.
type Queue struct {
	mu        sync.Mutex
	items     []models.Product
	index     int
	updater   StatusUpdater
	threshold float64
}

// NewQueue copies items into a queue positioned at the first product.
func NewQueue(items []models.Product, updater StatusUpdater, threshold float64) *Queue {
	if threshold <= 0 {
		threshold = DefaultSwipeThreshold
	}
	q := &Queue{updater: updater, threshold: threshold}
	q.items = append(q.items, items...)
	return q
}

// Current returns the product under the cursor.
func (q *Queue) Current() (models.Product, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.Product{}, false
	}
	return q.items[q.index], true
}

func (q *Queue) Index() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Items returns a copy of the remaining products.
func (q *Queue) Items() []models.Product {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Product, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) position() (models.Product, int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.Product{}, 0, 0
	}
	return q.items[q.index], q.index, len(q.items)
}

// Approve persists approval of the current product and removes it.
func (q *Queue) Approve(ctx context.Context) (models.Product, error) {
	return q.decide(ctx, enums.ReviewDecisionApprove, "")
}

// Reject persists rejection of the current product and removes it.
func (q *Queue) Reject(ctx context.Context, reason string) (models.Product, error) {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) < MinRejectReasonLength {
		return models.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is too short").
			WithDetails(map[string]any{"field": "reason", "min_length": MinRejectReasonLength})
	}
	return q.decide(ctx, enums.ReviewDecisionReject, reason)
}

// Navigate moves the cursor one step. Moving past either end is a no-op.
func (q *Queue) Navigate(direction Direction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch direction {
	case DirectionPrev:
		if q.index > 0 {
			q.index--
		}
	case DirectionNext:
		if q.index < len(q.items)-1 {
			q.index++
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "direction must be prev or next")
	}
	return nil
}

// Signal interprets a horizontal gesture. A displacement beyond the threshold
// approves (positive) or rejects (negative); anything up to it reverts.
func (q *Queue) Signal(ctx context.Context, displacement float64, reason string) (Outcome, models.Product, error) {
	decision, ok := q.gesture(displacement)
	if !ok {
		return OutcomeReverted, models.Product{}, nil
	}
	if decision == enums.ReviewDecisionApprove {
		p, err := q.Approve(ctx)
		if err != nil {
			return OutcomeReverted, models.Product{}, err
		}
		return OutcomeApproved, p, nil
	}
	p, err := q.Reject(ctx, reason)
	if err != nil {
		return OutcomeReverted, models.Product{}, err
	}
	return OutcomeRejected, p, nil
}

// gesture maps a displacement to the decision it commits, if any. Exactly
// the threshold does not commit.
func (q *Queue) gesture(displacement float64) (enums.ReviewDecision, bool) {
	switch {
	case displacement > q.threshold:
		return enums.ReviewDecisionApprove, true
	case displacement < -q.threshold:
		return enums.ReviewDecisionReject, true
	default:
		return "", false
	}
}

// Drop removes a product that is no longer pending elsewhere.
func (q *Queue) Drop(productID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, p := range q.items {
		if p.ID == productID {
			q.removeAt(i)
			return true
		}
	}
	return false
}

// The lock is held across the remote update so decisions on one queue are serialized.
func (q *Queue) decide(ctx context.Context, decision enums.ReviewDecision, reason string) (models.Product, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return models.Product{}, pkgerrors.New(pkgerrors.CodeStateConflict, "review queue is empty")
	}
	current := q.items[q.index]

	if q.updater != nil {
		err := q.updater.UpdateProductStatus(ctx, Decision{
			ProductID: current.ID,
			Decision:  decision,
			Reason:    reason,
		})
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil {
				// Conflict or missing means the product is no longer pending anywhere.
				if typed.Code() == pkgerrors.CodeStateConflict || typed.Code() == pkgerrors.CodeNotFound {
					q.removeAt(q.index)
				}
				return models.Product{}, typed
			}
			return models.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist review decision")
		}
	}

	q.removeAt(q.index)
	return current, nil
}

func (q *Queue) removeAt(i int) {
	q.items = append(q.items[:i], q.items[i+1:]...)
	if i < q.index {
		q.index--
	}
	if q.index >= len(q.items) {
		q.index = len(q.items) - 1
	}
	if q.index < 0 {
		q.index = 0
	}
}
