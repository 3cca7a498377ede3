package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string `gorm:"not null" json:"-"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`
	TokenVersion  int    `gorm:"default:1" json:"-"`

	// Password reset
	OTP          string    `json:"-"`
	OTPExpiresAt time.Time `json:"-"`
	OTPVerified  bool      `gorm:"default:false" json:"-"`

	// Google OAuth fields
	GoogleID       *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	GoogleImageURL *string `json:"google_image_url,omitempty"`

	// Profile information
	Name     *string `json:"name,omitempty"`
	Company  *string `json:"company,omitempty"`
	Timezone string  `gorm:"default:'UTC'" json:"timezone"`
	Language string  `gorm:"default:'en'" json:"language"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`
	IsAdmin  bool `gorm:"default:false" json:"is_admin"`

	// Relations
	ContactLists []ContactList `gorm:"foreignKey:UserID" json:"contact_lists,omitempty"`
	Activities   []Activity    `gorm:"foreignKey:UserID" json:"activities,omitempty"`
}
