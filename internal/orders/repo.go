package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

// Create inserts the order and its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID loads the order with its items.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		First(&order, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByBuyer returns a buyer's orders newest first using keyset pagination.
// limit rows are returned; callers pass pagination.LimitWithBuffer to detect a next page.
func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items").
		Where("buyer_id = ?", buyerID).
		Scopes(pagination.Keyset(cursor, limit))

	var rows []models.Order
	err := query.Find(&rows).Error
	return rows, err
}

// TransitionStatus moves the order to `to` only when it currently sits in one of `from`.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, fields map[string]any) error {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var current models.Order
	if err := r.db.WithContext(ctx).Select("id", "status").First(&current, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
		}
		return err
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", current.Status)).
		WithDetails(map[string]any{"status": current.Status, "target": to})
}

// InsertCommissions stores one commission row per order item.
func (r *repository) InsertCommissions(ctx context.Context, rows []models.Commission) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// ListCommissionsByVendor returns a vendor's commissions newest first using keyset pagination.
func (r *repository) ListCommissionsByVendor(ctx context.Context, vendorID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Commission, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Where("vendor_id = ?", vendorID).
		Scopes(pagination.Keyset(cursor, limit))

	var rows []models.Commission
	err := query.Find(&rows).Error
	return rows, err
}
