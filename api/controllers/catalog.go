package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/etherloops/ether-backend/api/middleware"
	"github.com/etherloops/ether-backend/api/responses"
	"github.com/etherloops/ether-backend/api/validators"
	"github.com/etherloops/ether-backend/internal/catalog"
	"github.com/etherloops/ether-backend/internal/products"
	"github.com/etherloops/ether-backend/pkg/auth"
	"github.com/etherloops/ether-backend/pkg/db/models"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/logger"
)

type catalogBrowser interface {
	Browse(ctx context.Context, query catalog.Query) (products.BrowseResult, error)
}

type productReader interface {
	Get(ctx context.Context, id uuid.UUID, viewer auth.Identity) (*models.Product, error)
}

// ProductsBrowse returns approved loops filtered and sorted by the query string.
func ProductsBrowse(svc catalogBrowser, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		query, err := catalog.ParseQuery(r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Browse(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ProductGet returns a single loop. Unapproved loops are only visible to
// admins and their vendor.
func ProductGet(svc productReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), productID, middleware.IdentityFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products.NewProductDTO(*product))
	}
}
