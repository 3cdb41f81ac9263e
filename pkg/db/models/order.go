package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/etherloops/ether-backend/pkg/enums"
)

// Order is a buyer purchase produced by a completed checkout.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency        string            `gorm:"column:currency;not null;default:'usd'"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentIntentID *string           `gorm:"column:stripe_payment_intent_id"`
	FailureReason   *string           `gorm:"column:failure_reason"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem freezes the price of a loop at purchase time.
type OrderItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VendorID        uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null"`
	Title           string          `gorm:"column:title;not null"`
	PriceAtPurchase decimal.Decimal `gorm:"column:price_at_purchase;type:numeric(10,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Commission splits an order item between the platform and the vendor.
type Commission struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	VendorID       uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null"`
	OrderID        uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	OrderItemID    uuid.UUID              `gorm:"column:order_item_id;type:uuid;not null"`
	AmountPlatform decimal.Decimal        `gorm:"column:amount_platform;type:numeric(10,2);not null"`
	AmountVendor   decimal.Decimal        `gorm:"column:amount_vendor;type:numeric(10,2);not null"`
	Status         enums.CommissionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaidAt         *time.Time             `gorm:"column:paid_at"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (c *Commission) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
