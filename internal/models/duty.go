package models

import (
	"time"
)

type DutyStatus string

const (
	DutyStatusPending   DutyStatus = "PENDING"
	DutyStatusAssigned  DutyStatus = "ASSIGNED"
	DutyStatusCompleted DutyStatus = "COMPLETED"
)

// Duty is a task participants are asked to take on during a retreat
type Duty struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RetreatID   uint       `gorm:"index;not null" json:"retreat_id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Description *string    `gorm:"type:text" json:"description"`
	Status      DutyStatus `gorm:"type:varchar(20);default:'PENDING'" json:"status"`

	Retreat     Retreat          `gorm:"foreignKey:RetreatID" json:"retreat,omitempty"`
	Assignments []DutyAssignment `gorm:"foreignKey:DutyID;constraint:OnDelete:CASCADE" json:"assignments,omitempty"`
}

type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "ASSIGNED"
	AssignmentStatusCompleted AssignmentStatus = "COMPLETED"
)

// DutyAssignment links a user to a duty; COMPLETED means acknowledged
type DutyAssignment struct {
	ID uint `gorm:"primarykey" json:"id"`

	DutyID      uint             `gorm:"uniqueIndex:idx_assignment_duty_user,priority:1;not null" json:"duty_id"`
	UserID      uint             `gorm:"uniqueIndex:idx_assignment_duty_user,priority:2;index;not null" json:"user_id"`
	Status      AssignmentStatus `gorm:"type:varchar(20);default:'ASSIGNED'" json:"status"`
	AssignedAt  time.Time        `json:"assigned_at"`
	CompletedAt *time.Time       `json:"completed_at"`

	Duty Duty `gorm:"foreignKey:DutyID" json:"duty,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
