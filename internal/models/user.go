package models

import "time"

// User is an account. Sign-up and credentials live in the identity service;
// this table only mirrors what escrow needs to address a person.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string    `gorm:"size:255" json:"name"`
	Role      string    `gorm:"size:20;not null;index" json:"role"` // BUSINESS | FREELANCER | SERVICE_PROVIDER | ADMIN
	FCMToken  string    `gorm:"size:512" json:"-"`                  // For push notifications
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
