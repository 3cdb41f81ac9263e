package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
)

// StatusUpdate describes a review transition of a single product.
type StatusUpdate struct {
	ProductID  uuid.UUID
	From       enums.ProductStatus
	To         enums.ProductStatus
	Reason     *string
	ReviewerID uuid.UUID
	ReviewedAt time.Time
}

// Repository wires together product persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the product together with its assets.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// FindByID loads the product with its assets.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Assets", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListApproved returns every approved loop, newest first.
func (r *Repository) ListApproved(ctx context.Context) ([]models.Product, error) {
	return r.listByStatus(ctx, enums.ProductStatusApproved, "created_at DESC")
}

// ListPending returns the review backlog, oldest submission first.
func (r *Repository) ListPending(ctx context.Context) ([]models.Product, error) {
	return r.listByStatus(ctx, enums.ProductStatusPending, "created_at ASC")
}

func (r *Repository) listByStatus(ctx context.Context, status enums.ProductStatus, order string) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Assets").
		Where("status = ?", status).
		Order(order).
		Order("id ASC").
		Find(&rows).
		Error
	return rows, err
}

// ListByVendor lists every product a vendor submitted regardless of status.
func (r *Repository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Assets").
		Where("vendor_id = ?", vendorID).
		Order("created_at DESC").
		Find(&rows).
		Error
	return rows, err
}

// UpdateStatus applies a review transition guarded by the current status.
// A product that is missing yields CodeNotFound; one that already left the
// expected status yields CodeStateConflict.
func (r *Repository) UpdateStatus(ctx context.Context, update StatusUpdate) (*models.Product, error) {
	if !update.From.CanTransitionTo(update.To) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move product from %s to %s", update.From, update.To))
	}
	if update.ReviewedAt.IsZero() {
		update.ReviewedAt = time.Now().UTC()
	}

	reviewer := update.ReviewerID
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND status = ?", update.ProductID, update.From).
		Updates(map[string]any{
			"status":           update.To,
			"rejection_reason": update.Reason,
			"reviewed_by":      &reviewer,
			"reviewed_at":      update.ReviewedAt,
			"updated_at":       update.ReviewedAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		current, err := r.FindByID(ctx, update.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
			}
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product already reviewed").
			WithDetails(map[string]any{"status": current.Status})
	}

	return r.FindByID(ctx, update.ProductID)
}
