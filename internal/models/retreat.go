package models

import (
	"time"
)

type RetreatStatus string

const (
	RetreatStatusUpcoming  RetreatStatus = "UPCOMING"
	RetreatStatusActive    RetreatStatus = "ACTIVE"
	RetreatStatusCompleted RetreatStatus = "COMPLETED"
	RetreatStatusCancelled RetreatStatus = "CANCELLED"
)

// Retreat is a scheduled gathering with meals and duties
type Retreat struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name              string        `gorm:"type:varchar(255);not null" json:"name"`
	Description       *string       `gorm:"type:text" json:"description"`
	Location          *string       `gorm:"type:varchar(255)" json:"location"`
	StartDate         time.Time     `gorm:"index" json:"start_date"`
	EndDate           time.Time     `json:"end_date"`
	MealOrderDeadline *time.Time    `json:"meal_order_deadline"`
	Status            RetreatStatus `gorm:"type:varchar(20);default:'UPCOMING'" json:"status"`

	// Relationships
	Meals         []Meal                `gorm:"foreignKey:RetreatID;constraint:OnDelete:CASCADE" json:"meals,omitempty"`
	Duties        []Duty                `gorm:"foreignKey:RetreatID;constraint:OnDelete:CASCADE" json:"duties,omitempty"`
	Registrations []RetreatRegistration `gorm:"foreignKey:RetreatID;constraint:OnDelete:CASCADE" json:"registrations,omitempty"`
}

// OrderingClosed reports whether the meal order deadline has passed at now
func (r Retreat) OrderingClosed(now time.Time) bool {
	return r.MealOrderDeadline != nil && r.MealOrderDeadline.Before(now)
}

type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "REGISTERED"
	RegistrationStatusCancelled  RegistrationStatus = "CANCELLED"
)

// RetreatRegistration records a user's attendance decision for a retreat
type RetreatRegistration struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    uint               `gorm:"uniqueIndex:idx_registration_user_retreat,priority:1;not null" json:"user_id"`
	RetreatID uint               `gorm:"uniqueIndex:idx_registration_user_retreat,priority:2;index;not null" json:"retreat_id"`
	Status    RegistrationStatus `gorm:"type:varchar(20);default:'REGISTERED'" json:"status"`

	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Retreat Retreat `gorm:"foreignKey:RetreatID" json:"retreat,omitempty"`
}
