package models

import (
	"time"
)

type MealOrderStatus string

const (
	MealOrderStatusPending MealOrderStatus = "PENDING"
	MealOrderStatusPaid    MealOrderStatus = "PAID"
)

type PaymentMethod string

const (
	PaymentMethodPayPal PaymentMethod = "PAYPAL"
	PaymentMethodCash   PaymentMethod = "CASH"
)

// MealOrder is one user's order for one meal
type MealOrder struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID        uint            `gorm:"uniqueIndex:idx_meal_order_user_meal,priority:1;not null" json:"user_id"`
	MealID        uint            `gorm:"uniqueIndex:idx_meal_order_user_meal,priority:2;not null" json:"meal_id"`
	RetreatID     uint            `gorm:"index;not null" json:"retreat_id"`
	Status        MealOrderStatus `gorm:"type:varchar(20);default:'PENDING';index" json:"status"`
	PaymentMethod *PaymentMethod  `gorm:"type:varchar(20)" json:"payment_method"`

	// Relationships
	User      User                `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Meal      Meal                `gorm:"foreignKey:MealID" json:"meal,omitempty"`
	MenuItems []MealOrderMenuItem `gorm:"foreignKey:MealOrderID;constraint:OnDelete:CASCADE" json:"menu_items,omitempty"`
	Payment   *Payment            `gorm:"foreignKey:MealOrderID" json:"payment,omitempty"`
}

// MealOrderMenuItem is a menu item selection within an order
type MealOrderMenuItem struct {
	ID uint `gorm:"primarykey" json:"id"`

	MealOrderID uint `gorm:"index;not null" json:"meal_order_id"`
	MenuItemID  uint `gorm:"index;not null" json:"menu_item_id"`
	Quantity    *int `json:"quantity"`

	MenuItem MenuItem `gorm:"foreignKey:MenuItemID;constraint:OnDelete:CASCADE" json:"menu_item,omitempty"`
}
