package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatus tracks the lifecycle of a payment request.
// Transitions are monotonic: unpaid -> (pending ->)? paid.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Payment represents a single money-collection intent. Amount and currency
// are immutable after creation; only status, paid_via and tip_amount are
// written at verification time.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// ShortID is the public slug used in shareable links. It is the only
	// identifier ever exposed to payers.
	ShortID   string `gorm:"type:varchar(32);uniqueIndex" json:"short_id"`
	AccountID uint   `gorm:"index" json:"account_id"`

	Amount      float64       `gorm:"type:decimal(15,2)" json:"amount"`
	Currency    string        `gorm:"type:varchar(10)" json:"currency"`
	Description string        `gorm:"type:varchar(500)" json:"description"`
	Status      PaymentStatus `gorm:"type:varchar(20);default:'unpaid'" json:"status"`
	PaidVia     string        `gorm:"type:varchar(50)" json:"paid_via"`
	TipAmount   float64       `gorm:"type:decimal(15,2)" json:"tip_amount"`

	// Relationships
	Account Account       `gorm:"foreignKey:AccountID" json:"-"`
	Items   []PaymentItem `gorm:"foreignKey:PaymentID" json:"items,omitempty"`
}

// PaymentItem is an optional line item attached to a payment request.
type PaymentItem struct {
	ID        uint `gorm:"primarykey" json:"id"`
	PaymentID uint `gorm:"index" json:"payment_id"`

	Name     string  `gorm:"type:varchar(255)" json:"name"`
	Image    string  `gorm:"type:varchar(500)" json:"image"`
	Amount   float64 `gorm:"type:decimal(15,2)" json:"amount"`
	Quantity int     `gorm:"default:1" json:"quantity"`
}
