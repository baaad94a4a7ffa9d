package models

import (
	"time"
)

// Meal is an orderable meal of a retreat, priced per portion
type Meal struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RetreatID   uint      `gorm:"index;not null" json:"retreat_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	Price       float64   `gorm:"type:decimal(10,2)" json:"price"`
	MealDate    time.Time `json:"meal_date"`
	Available   bool      `gorm:"default:true" json:"available"`

	// Relationships
	Retreat    Retreat     `gorm:"foreignKey:RetreatID" json:"retreat,omitempty"`
	MenuItems  []MenuItem  `gorm:"foreignKey:MealID;constraint:OnDelete:CASCADE" json:"menu_items,omitempty"`
	MealOrders []MealOrder `gorm:"foreignKey:MealID;constraint:OnDelete:CASCADE" json:"meal_orders,omitempty"`
}

// MenuItem is a selectable option of a meal. Items that require a quantity
// drive the price multiplier of an order.
type MenuItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MealID           uint    `gorm:"index;not null" json:"meal_id"`
	Name             string  `gorm:"type:varchar(255);not null" json:"name"`
	Description      *string `gorm:"type:text" json:"description"`
	RequiresQuantity bool    `gorm:"default:false" json:"requires_quantity"`

	Meal Meal `gorm:"foreignKey:MealID" json:"meal,omitempty"`
}
