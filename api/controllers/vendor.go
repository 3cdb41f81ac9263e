package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/etherloops/ether-backend/api/middleware"
	"github.com/etherloops/ether-backend/api/responses"
	"github.com/etherloops/ether-backend/api/validators"
	"github.com/etherloops/ether-backend/internal/orders"
	"github.com/etherloops/ether-backend/internal/products"
	"github.com/etherloops/ether-backend/pkg/db/models"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/pagination"
)

type vendorCatalog interface {
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error)
}

type vendorEarnings interface {
	ListCommissionsForVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*orders.CommissionList, error)
}

type vendorProductsResponse struct {
	Products []products.ProductDTO `json:"products"`
	Total    int                   `json:"total"`
}

// VendorProducts lists every loop the vendor uploaded, in any review state.
func VendorProducts(svc vendorCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		rows, err := svc.ListByVendor(r.Context(), middleware.IdentityFromContext(r.Context()).UserID())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vendorProductsResponse{Products: products.NewProductDTOs(rows), Total: len(rows)})
	}
}

func VendorCommissions(svc vendorEarnings, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListCommissionsForVendor(r.Context(), middleware.IdentityFromContext(r.Context()).UserID(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
