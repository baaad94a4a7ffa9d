package models

import (
	"time"
)

// UserRole represents the authority level of a user
type UserRole string

const (
	UserRoleAdmin       UserRole = "ADMIN"
	UserRoleParticipant UserRole = "PARTICIPANT"
)

// Valid reports whether r is a known role
func (r UserRole) Valid() bool {
	return r == UserRoleAdmin || r == UserRoleParticipant
}

// User represents a registered member of the organization
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email               string   `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name                *string  `gorm:"type:varchar(255)" json:"name"`
	Phone               string   `gorm:"type:varchar(50)" json:"phone"`
	Role                UserRole `gorm:"type:varchar(20);default:'PARTICIPANT'" json:"role"`
	ProfileCompleted    bool     `gorm:"default:false" json:"profile_completed"`
	DietaryRestrictions []string `gorm:"serializer:json" json:"dietary_restrictions"`

	// Relationships
	OAuthAccounts []OAuthAccount        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"oauth_accounts,omitempty"`
	Registrations []RetreatRegistration `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"registrations,omitempty"`
}

// DisplayName returns the name, falling back to the email address
func (u User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// OAuthProvider names an external identity provider
type OAuthProvider string

const (
	OAuthProviderGoogle   OAuthProvider = "GOOGLE"
	OAuthProviderFirebase OAuthProvider = "FIREBASE"
)

// OAuthAccount links a user to an identity at an external provider
type OAuthAccount struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID     uint          `gorm:"index;not null" json:"user_id"`
	Provider   OAuthProvider `gorm:"type:varchar(20);uniqueIndex:idx_oauth_provider_id,priority:1;not null" json:"provider"`
	ProviderID string        `gorm:"type:varchar(255);uniqueIndex:idx_oauth_provider_id,priority:2;not null" json:"provider_id"`
}
