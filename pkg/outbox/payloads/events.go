package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/etherloops/ether-backend/pkg/enums"
)

// ProductDecisionEvent is emitted when an admin approves or rejects a loop.
type ProductDecisionEvent struct {
	ProductID  uuid.UUID           `json:"product_id"`
	VendorID   uuid.UUID           `json:"vendor_id"`
	Title      string              `json:"title"`
	Price      decimal.Decimal     `json:"price"`
	Status     enums.ProductStatus `json:"status"`
	Reason     string              `json:"reason,omitempty"`
	ReviewedBy uuid.UUID           `json:"reviewed_by"`
	ReviewedAt time.Time           `json:"reviewed_at"`
}

// OrderCompletedItem is one purchased loop with its commission split.
type OrderCompletedItem struct {
	OrderItemID    uuid.UUID       `json:"order_item_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	VendorID       uuid.UUID       `json:"vendor_id"`
	Price          decimal.Decimal `json:"price"`
	AmountPlatform decimal.Decimal `json:"amount_platform"`
	AmountVendor   decimal.Decimal `json:"amount_vendor"`
}

// OrderCompletedEvent is emitted once payment has been captured and commissions recorded.
type OrderCompletedEvent struct {
	OrderID         uuid.UUID            `json:"order_id"`
	BuyerID         uuid.UUID            `json:"buyer_id"`
	TotalAmount     decimal.Decimal      `json:"total_amount"`
	Currency        string               `json:"currency"`
	PaymentIntentID string               `json:"payment_intent_id,omitempty"`
	Items           []OrderCompletedItem `json:"items"`
	CompletedAt     time.Time            `json:"completed_at"`
}

// OrderFailedEvent is emitted when a checkout could not be completed.
type OrderFailedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	Reason      string          `json:"reason"`
	FailedAt    time.Time       `json:"failed_at"`
}
