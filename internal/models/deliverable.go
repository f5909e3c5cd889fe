package models

import "time"

// Deliverable is a file the payee attaches to a contract as evidence of work.
type Deliverable struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ContractID     uint      `gorm:"not null;index" json:"contract_id"`
	UploaderUserID uint      `gorm:"not null" json:"uploader_user_id"`
	FileURL        string    `gorm:"size:1024;not null" json:"file_url"`
	FileName       string    `gorm:"size:255" json:"file_name"`
	Note           string    `gorm:"type:text" json:"note"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Deliverable) TableName() string {
	return "contract_deliverables"
}
