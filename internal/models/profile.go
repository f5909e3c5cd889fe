package models

import "time"

// FreelancerProfile is owned by exactly one account. PayoutAccountID is the
// connected gateway account funds are released to; empty until onboarding completes.
type FreelancerProfile struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	DisplayName     string    `gorm:"size:255" json:"display_name"`
	PayoutAccountID string    `gorm:"size:255" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (FreelancerProfile) TableName() string {
	return "freelancer_profiles"
}

type ServiceProviderProfile struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	CompanyName     string    `gorm:"size:255" json:"company_name"`
	PayoutAccountID string    `gorm:"size:255" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (ServiceProviderProfile) TableName() string {
	return "service_provider_profiles"
}
