package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/etherloops/ether-backend/api/middleware"
	"github.com/etherloops/ether-backend/api/responses"
	"github.com/etherloops/ether-backend/api/validators"
	"github.com/etherloops/ether-backend/internal/review"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/logger"
)

const maxRejectReasonLength = 500

type reviewQueues interface {
	State(ctx context.Context, adminID uuid.UUID) (review.QueueView, error)
	Load(ctx context.Context, adminID uuid.UUID) (review.QueueView, error)
	Approve(ctx context.Context, adminID uuid.UUID) (review.DecisionResult, error)
	Reject(ctx context.Context, adminID uuid.UUID, reason string) (review.DecisionResult, error)
	Navigate(ctx context.Context, adminID uuid.UUID, direction review.Direction) (review.QueueView, error)
	Swipe(ctx context.Context, adminID uuid.UUID, displacement float64, reason string) (review.DecisionResult, error)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type navigateRequest struct {
	Direction review.Direction `json:"direction" validate:"required,oneof=prev next"`
}

type swipeRequest struct {
	Displacement *float64 `json:"displacement" validate:"required"`
	Reason       string   `json:"reason"`
}

func reviewHandler(svc reviewQueues, logg *logger.Logger, fn func(r *http.Request, adminID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}
		adminID := middleware.IdentityFromContext(r.Context()).UserID()
		out, err := fn(r, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminReviewState returns the admin's queue, loading pending loops on first use.
func AdminReviewState(svc reviewQueues, logg *logger.Logger) http.HandlerFunc {
	return reviewHandler(svc, logg, func(r *http.Request, adminID uuid.UUID) (any, error) {
		return svc.State(r.Context(), adminID)
	})
}

// AdminReviewReload refetches the pending backlog and resets the cursor.
func AdminReviewReload(svc reviewQueues, logg *logger.Logger) http.HandlerFunc {
	return reviewHandler(svc, logg, func(r *http.Request, adminID uuid.UUID) (any, error) {
		return svc.Load(r.Context(), adminID)
	})
}

func AdminReviewApprove(svc reviewQueues, logg *logger.Logger) http.HandlerFunc {
	return reviewHandler(svc, logg, func(r *http.Request, adminID uuid.UUID) (any, error) {
		return svc.Approve(r.Context(), adminID)
	})
}

func AdminReviewReject(svc reviewQueues, logg *logger.Logger) http.HandlerFunc {
	return reviewHandler(svc, logg, func(r *http.Request, adminID uuid.UUID) (any, error) {
		var payload rejectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Reject(r.Context(), adminID, validators.SanitizeString(payload.Reason, maxRejectReasonLength))
	})
}

func AdminReviewNavigate(svc reviewQueues, logg *logger.Logger) http.HandlerFunc {
	return reviewHandler(svc, logg, func(r *http.Request, adminID uuid.UUID) (any, error) {
		var payload navigateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Navigate(r.Context(), adminID, payload.Direction)
	})
}

// AdminReviewSwipe commits a gesture: far enough right approves, far enough
// left rejects with the supplied reason, anything shorter snaps back.
func AdminReviewSwipe(svc reviewQueues, logg *logger.Logger) http.HandlerFunc {
	return reviewHandler(svc, logg, func(r *http.Request, adminID uuid.UUID) (any, error) {
		var payload swipeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		reason := validators.SanitizeString(payload.Reason, maxRejectReasonLength)
		return svc.Swipe(r.Context(), adminID, *payload.Displacement, reason)
	})
}
