package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
)

// Payment records money collected for a meal order.
//
// A PENDING row with a nil MealOrderID is a tracking payment: it reserves an
// external order reference before capture and is replaced by per-order rows
// when the capture is reconciled. Rows are hard-deleted; MealOrderID and
// ExternalOrderRef are unique, and NULLs do not collide.
type Payment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID           uint          `gorm:"index;not null" json:"user_id"`
	MealOrderID      *uint         `gorm:"uniqueIndex" json:"meal_order_id"`
	Amount           float64       `gorm:"type:decimal(10,2)" json:"amount"`
	Currency         string        `gorm:"type:varchar(8);default:'CAD'" json:"currency"`
	ExternalOrderRef *string       `gorm:"type:varchar(128);uniqueIndex" json:"external_order_ref"`
	PayerRef         *string       `gorm:"type:varchar(128)" json:"payer_ref"`
	Status           PaymentStatus `gorm:"type:varchar(20);default:'PENDING';index" json:"status"`
	CompletedAt      *time.Time    `json:"completed_at"`

	User      User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MealOrder *MealOrder `gorm:"foreignKey:MealOrderID" json:"meal_order,omitempty"`
}

// IsTracking reports whether the row is a multi-order placeholder
func (p Payment) IsTracking() bool {
	return p.MealOrderID == nil
}
