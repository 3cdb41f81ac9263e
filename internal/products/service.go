package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/etherloops/ether-backend/internal/catalog"
	"github.com/etherloops/ether-backend/pkg/auth"
	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
)

type productStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListApproved(ctx context.Context) ([]models.Product, error)
	ListPending(ctx context.Context) ([]models.Product, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error)
}

// Service exposes catalog read paths.
type Service interface {
	Browse(ctx context.Context, query catalog.Query) (BrowseResult, error)
	Get(ctx context.Context, id uuid.UUID, viewer auth.Identity) (*models.Product, error)
	GetPurchasable(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListPending(ctx context.Context) ([]models.Product, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error)
}

type service struct {
	repo productStore
}

// NewService builds a product service with the required dependencies.
func NewService(repo productStore) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product repo is required")
	}
	return &service{repo: repo}, nil
}

// Browse runs the catalog engine over approved loops. Facets describe the
// whole approved catalog so the sidebar stays stable while filtering.
func (s *service) Browse(ctx context.Context, query catalog.Query) (BrowseResult, error) {
	rows, err := s.repo.ListApproved(ctx)
	if err != nil {
		return BrowseResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	filtered := catalog.Apply(rows, query.Filters, query.Sort, query.Text)
	return BrowseResult{
		Products: NewProductDTOs(filtered),
		Facets:   catalog.BuildFacets(rows),
		Total:    len(filtered),
	}, nil
}

// Get returns approved loops to everyone. Pending or rejected loops are only
// visible to admins and the owning vendor.
func (s *service) Get(ctx context.Context, id uuid.UUID, viewer auth.Identity) (*models.Product, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Status == enums.ProductStatusApproved {
		return product, nil
	}
	if viewer.IsAdmin() || (viewer.IsVendor() && viewer.UserID() == product.VendorID) {
		return product, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

// GetPurchasable returns the product only when it may be added to a cart or wishlist.
func (s *service) GetPurchasable(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Status != enums.ProductStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) ListPending(ctx context.Context) ([]models.Product, error) {
	rows, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending products")
	}
	return rows, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	rows, err := s.repo.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor products")
	}
	return rows, nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}
