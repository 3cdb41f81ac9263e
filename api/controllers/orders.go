package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/etherloops/ether-backend/api/middleware"
	"github.com/etherloops/ether-backend/api/responses"
	"github.com/etherloops/ether-backend/api/validators"
	"github.com/etherloops/ether-backend/internal/orders"
	"github.com/etherloops/ether-backend/pkg/auth"
	"github.com/etherloops/ether-backend/pkg/db/models"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/pagination"
)

type buyerOrders interface {
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*orders.BuyerOrderList, error)
	Get(ctx context.Context, orderID uuid.UUID, viewer auth.Identity) (*models.Order, error)
}

// OrdersList returns the caller's orders, newest first.
func OrdersList(svc buyerOrders, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		identity := middleware.IdentityFromContext(r.Context())
		if identity.IsZero() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForBuyer(r.Context(), identity.UserID(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func OrderGet(svc buyerOrders, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders.NewOrderDTO(*order))
	}
}
