package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
)

// OrderDTO is the buyer facing order summary.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	Status          enums.OrderStatus `json:"status"`
	TotalAmount     string            `json:"total_amount"`
	Currency        string            `json:"currency"`
	PaymentIntentID *string           `json:"payment_intent_id,omitempty"`
	FailureReason   *string           `json:"failure_reason,omitempty"`
	Items           []OrderItemDTO    `json:"items"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// OrderItemDTO is a purchased loop at its frozen price.
type OrderItemDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Title     string    `json:"title"`
	Price     string    `json:"price"`
}

// BuyerOrderList is a page of buyer orders.
type BuyerOrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// CommissionDTO is a vendor earnings line.
type CommissionDTO struct {
	ID             uuid.UUID              `json:"id"`
	OrderID        uuid.UUID              `json:"order_id"`
	OrderItemID    uuid.UUID              `json:"order_item_id"`
	AmountPlatform string                 `json:"amount_platform"`
	AmountVendor   string                 `json:"amount_vendor"`
	Status         enums.CommissionStatus `json:"status"`
	PaidAt         *time.Time             `json:"paid_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// CommissionList is a page of vendor commissions.
type CommissionList struct {
	Commissions []CommissionDTO `json:"commissions"`
	NextCursor  string          `json:"next_cursor,omitempty"`
}

// NewOrderDTO maps an order model onto the API shape.
func NewOrderDTO(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		Currency:        o.Currency,
		PaymentIntentID: o.PaymentIntentID,
		FailureReason:   o.FailureReason,
		Items:           make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			VendorID:  item.VendorID,
			Title:     item.Title,
			Price:     item.PriceAtPurchase.StringFixed(2),
		})
	}
	return dto
}

func newCommissionDTO(c models.Commission) CommissionDTO {
	return CommissionDTO{
		ID:             c.ID,
		OrderID:        c.OrderID,
		OrderItemID:    c.OrderItemID,
		AmountPlatform: c.AmountPlatform.StringFixed(2),
		AmountVendor:   c.AmountVendor.StringFixed(2),
		Status:         c.Status,
		PaidAt:         c.PaidAt,
		CreatedAt:      c.CreatedAt,
	}
}
